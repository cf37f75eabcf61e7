package processor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jenkins-hooks/internal/config"
	"github.com/jenkins-hooks/internal/jenkins"
	"github.com/jenkins-hooks/pkg/webhook"
)

// JenkinsClient defines the subset of Jenkins functionality the processor depends on.
type JenkinsClient interface {
	Trigger(ctx context.Context, folder, job string) jenkins.Outcome
}

var (
	// ErrRepositoryNotMapped means no project carries the pushed repository's name.
	ErrRepositoryNotMapped = errors.New("repository is not mapped")
	// ErrBranchNotMapped means the project exists but has no entry for the branch.
	ErrBranchNotMapped = errors.New("branch is not mapped")
)

// Target is the result of resolving a push event against the job mapping.
type Target struct {
	Folder  string
	Project string
	Branch  string
	Jobs    []string
}

// Processor resolves push events to jobs and triggers them.
type Processor struct {
	mapping *config.JobMapping
	jenkins JenkinsClient
	logger  *slog.Logger
}

// New creates a processor over an immutable mapping.
func New(mapping *config.JobMapping, j JenkinsClient, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		mapping: mapping,
		jenkins: j,
		logger:  logger,
	}
}

// Resolve finds the folder and jobs configured for the event's repository and branch.
func (p *Processor) Resolve(event webhook.PushEvent) (Target, error) {
	folder, ok := p.mapping.Owner(event.Repository)
	if !ok {
		return Target{}, ErrRepositoryNotMapped
	}
	jobs, ok := p.mapping.Resolve(folder, event.Repository, event.Branch)
	if !ok {
		return Target{Folder: folder, Project: event.Repository, Branch: event.Branch}, ErrBranchNotMapped
	}
	return Target{
		Folder:  folder,
		Project: event.Repository,
		Branch:  event.Branch,
		Jobs:    jobs,
	}, nil
}

// Process resolves event and triggers every mapped job in declared order.
// Each trigger runs to completion before the next starts; a failed trigger
// does not stop the rest. The returned outcomes follow the job order.
func (p *Processor) Process(ctx context.Context, event webhook.PushEvent) []jenkins.Outcome {
	logger := p.logger.With(
		slog.String("delivery_id", event.DeliveryID),
		slog.String("repo", event.Repository),
		slog.String("branch", event.Branch),
	)

	target, err := p.Resolve(event)
	switch {
	case errors.Is(err, ErrRepositoryNotMapped):
		logger.Info("no project configured for repository")
		return nil
	case errors.Is(err, ErrBranchNotMapped):
		logger.Info("no job configured for branch", slog.String("folder", target.Folder))
		return nil
	}

	logger.Info("push matched",
		slog.String("folder", target.Folder),
		slog.Any("jobs", target.Jobs),
	)

	outcomes := make([]jenkins.Outcome, 0, len(target.Jobs))
	for _, job := range target.Jobs {
		outcome := p.jenkins.Trigger(ctx, target.Folder, job)
		outcomes = append(outcomes, outcome)

		attrs := []any{
			slog.String("folder", target.Folder),
			slog.String("job", job),
			slog.Int("status", outcome.StatusCode),
		}
		if !outcome.Success {
			errText := ""
			if outcome.Err != nil {
				errText = outcome.Err.Error()
			}
			logger.Error("failed to trigger build", append(attrs, slog.String("error", errText))...)
			continue
		}
		logger.Info("build triggered", attrs...)
	}
	return outcomes
}
