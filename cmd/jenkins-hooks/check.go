package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/jenkins-hooks/internal/config"
	"github.com/jenkins-hooks/internal/jenkins"
)

func checkCommand(args []string) int {
	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	resolvePath := configFlag(fs)
	ping := fs.Bool("ping", false, "also verify that jenkins accepts the configured credentials")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	configPath, err := resolvePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	loadDotEnv(configPath)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return runCheck(ctx, configPath, *ping, os.Stdout)
}

// runCheck validates the configuration at path and prints the job mapping.
func runCheck(ctx context.Context, path string, ping bool, out io.Writer) int {
	fmt.Fprintln(out, "Checking configuration...")

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "✓ Configuration %s loaded and validated\n", path)
	if cfg.Jenkins.SkipTLSVerify {
		fmt.Fprintln(out, "⚠ TLS certificate verification is disabled for jenkins")
	}

	mapping := cfg.Mapping()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Job mapping:")
	for _, folder := range mapping.Folders() {
		projects, _ := mapping.ProjectsIn(folder)
		fmt.Fprintf(out, "  Folder: %s\n", folderDisplay(folder))
		for _, project := range projects {
			fmt.Fprintf(out, "    Project: %s\n", project)
			branches, _ := mapping.BranchesOf(folder, project)
			for _, branch := range branches {
				jobs, _ := mapping.Resolve(folder, project, branch)
				fmt.Fprintf(out, "      %s -> %v\n", branch, jobs)
			}
		}
	}

	if !ping {
		return 0
	}

	fmt.Fprintln(out)
	client, err := jenkins.New(
		cfg.Jenkins.BaseURL(),
		cfg.Jenkins.Username,
		cfg.Jenkins.API,
		jenkins.NewHTTPClient(cfg.Jenkins.SkipTLSVerify, cfg.Jenkins.Timeout.Duration),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	if err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return 1
	}
	if err := client.CheckAccessibility(ctx); err != nil {
		fmt.Fprintf(out, "✗ Jenkins is not accessible at %s: %v\n", cfg.Jenkins.BaseURL(), err)
		return 1
	}
	fmt.Fprintf(out, "✓ Jenkins is accessible at %s\n", cfg.Jenkins.BaseURL())
	return 0
}

func folderDisplay(folder string) string {
	if folder == config.RootFolder {
		return "(root)"
	}
	return folder
}
