package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/jenkins-hooks/internal/config"
)

func main() {
	args := os.Args[1:]
	command := "run"
	if len(args) > 0 && (args[0] == "run" || args[0] == "check") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "check":
		os.Exit(checkCommand(args))
	default:
		os.Exit(runCommand(args))
	}
}

// configFlag registers --config and returns a resolver for its effective value.
func configFlag(fs *pflag.FlagSet) func() (string, error) {
	path := fs.StringP("config", "c", "", "path to the configuration file (default: config.toml next to the executable)")
	return func() (string, error) {
		if *path != "" {
			return *path, nil
		}
		return config.DefaultPath()
	}
}

// loadDotEnv loads .env files next to the config and in the working
// directory. Variables already set in the environment win.
func loadDotEnv(configPath string) {
	for _, candidate := range []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", candidate, err)
		}
	}
}
