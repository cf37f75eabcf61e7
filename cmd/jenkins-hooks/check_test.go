package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCheckConfig(t *testing.T, jenkinsURL string, port string) string {
	t.Helper()
	content := fmt.Sprintf(`
[jenkins]
url = %q
port = %s
api = "secret"
username = "bot"

[folders.team-a.service]
main = ["build", "deploy"]

[repos.legacy.branch_job_mapping]
main = "legacy-main"
`, jenkinsURL, port)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunCheckPrintsMapping(t *testing.T) {
	path := writeCheckConfig(t, "http://127.0.0.1", "8080")

	var out bytes.Buffer
	code := runCheck(context.Background(), path, false, &out)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Folder: team-a")
	assert.Contains(t, out.String(), "Folder: (root)")
	assert.Contains(t, out.String(), "main -> [build deploy]")
	assert.Contains(t, out.String(), "main -> [legacy-main]")
}

func TestRunCheckInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[jenkins]\n"), 0o600))

	var out bytes.Buffer
	assert.Equal(t, 1, runCheck(context.Background(), path, false, &out))
	assert.Contains(t, out.String(), "✗")
}

func TestRunCheckPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, _ := r.BasicAuth(); user != "bot" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	path := writeCheckConfig(t, u.Scheme+"://"+u.Hostname(), u.Port())

	var out bytes.Buffer
	assert.Equal(t, 0, runCheck(context.Background(), path, true, &out))
	assert.Contains(t, out.String(), "Jenkins is accessible")
}
