package webhook

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushHeader(event string) http.Header {
	h := http.Header{}
	h.Set(DefaultEventHeader, event)
	return h
}

func TestDecodePush(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d := NewDecoder("")
	d.Now = func() time.Time { return fixed }

	header := pushHeader("push")
	header.Set(DeliveryHeader, "delivery-1")

	event, err := d.Decode(header, []byte(`{"ref":"refs/heads/feature/x","repository":{"name":"service","private":true},"pusher":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "service", event.Repository)
	assert.Equal(t, "feature/x", event.Branch)
	assert.Equal(t, "refs/heads/feature/x", event.Ref)
	assert.Equal(t, "delivery-1", event.DeliveryID)
	assert.Equal(t, fixed, event.ReceivedAt)
}

func TestDecodeRefWithoutPrefix(t *testing.T) {
	event, err := NewDecoder("").Decode(pushHeader("push"), []byte(`{"ref":"custom-ref","repository":{"name":"service"}}`))
	require.NoError(t, err)
	assert.Equal(t, "custom-ref", event.Branch)
	assert.NotEmpty(t, event.DeliveryID)
}

func TestDecodeRejections(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		body   string
		want   error
	}{
		{name: "missing header", header: http.Header{}, body: `{}`, want: ErrMissingEvent},
		{name: "pull request", header: pushHeader("pull_request"), body: `{}`, want: ErrUnsupportedEvent},
		{name: "case mismatch", header: pushHeader("Push"), body: `{}`, want: ErrUnsupportedEvent},
		{name: "not json", header: pushHeader("push"), body: `ref=main`, want: ErrMalformedPayload},
		{name: "missing ref", header: pushHeader("push"), body: `{"repository":{"name":"service"}}`, want: ErrMalformedPayload},
		{name: "ref not a string", header: pushHeader("push"), body: `{"ref":1,"repository":{"name":"service"}}`, want: ErrMalformedPayload},
		{name: "missing repository", header: pushHeader("push"), body: `{"ref":"refs/heads/main"}`, want: ErrMalformedPayload},
		{name: "missing repository name", header: pushHeader("push"), body: `{"ref":"refs/heads/main","repository":{}}`, want: ErrMalformedPayload},
		{name: "trailing data", header: pushHeader("push"), body: `{"ref":"refs/heads/main","repository":{"name":"service"}} garbage{`, want: ErrMalformedPayload},
		{name: "two documents", header: pushHeader("push"), body: `{"ref":"refs/heads/main","repository":{"name":"service"}}{}`, want: ErrMalformedPayload},
		{name: "null body", header: pushHeader("push"), body: `null`, want: ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder("").Decode(tt.header, []byte(tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeCustomHeader(t *testing.T) {
	d := NewDecoder("X-Gitea-Event")
	header := http.Header{}
	header.Set("X-Gitea-Event", "push")

	event, err := d.Decode(header, []byte(`{"ref":"refs/heads/main","repository":{"name":"service"}}`))
	require.NoError(t, err)
	assert.Equal(t, "main", event.Branch)

	_, err = d.Decode(pushHeader("push"), []byte(`{}`))
	assert.ErrorIs(t, err, ErrMissingEvent)
}
