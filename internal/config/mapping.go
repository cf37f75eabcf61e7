package config

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// RootFolder is the folder assigned to repositories of the flat profile.
const RootFolder = ""

// JobMapping is the read-only folder -> project -> branch -> jobs table.
// It is never written after Load and is safe for concurrent readers.
type JobMapping struct {
	folders map[string]map[string]map[string][]string
	owners  map[string]string
}

// Folders returns every configured folder name, sorted.
func (m *JobMapping) Folders() []string {
	names := make([]string, 0, len(m.folders))
	for name := range m.folders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProjectsIn returns the sorted project names of a folder.
func (m *JobMapping) ProjectsIn(folder string) ([]string, bool) {
	projects, ok := m.folders[folder]
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(projects))
	for name := range projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, true
}

// BranchesOf returns the sorted branch names of a project.
func (m *JobMapping) BranchesOf(folder, project string) ([]string, bool) {
	branches, ok := m.folders[folder][project]
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, true
}

// Resolve returns a copy of the jobs mapped to folder/project/branch.
func (m *JobMapping) Resolve(folder, project, branch string) ([]string, bool) {
	jobs, ok := m.folders[folder][project][branch]
	if !ok {
		return nil, false
	}
	out := make([]string, len(jobs))
	copy(out, jobs)
	return out, true
}

// Owner returns the folder that owns project.
func (m *JobMapping) Owner(project string) (string, bool) {
	folder, ok := m.owners[project]
	return folder, ok
}

// NewJobMapping builds a mapping from the nested table, validating the same
// invariants Load enforces. Intended for callers that assemble configuration
// in code.
func NewJobMapping(folders map[string]FolderConfig) (*JobMapping, error) {
	cfg := &Config{Folders: folders}
	if errs := cfg.validateMapping(); errs != nil {
		return nil, invalid(errs)
	}
	return cfg.buildMapping(), nil
}

func (c *Config) buildMapping() *JobMapping {
	m := &JobMapping{
		folders: make(map[string]map[string]map[string][]string, len(c.Folders)+1),
		owners:  make(map[string]string),
	}
	for folder, projects := range c.Folders {
		m.folders[folder] = make(map[string]map[string][]string, len(projects))
		for project, branches := range projects {
			table := make(map[string][]string, len(branches))
			for branch, jobs := range branches {
				table[branch] = append([]string(nil), jobs...)
			}
			m.folders[folder][project] = table
			m.owners[project] = folder
		}
	}
	if len(c.Repos) > 0 {
		root, ok := m.folders[RootFolder]
		if !ok {
			root = make(map[string]map[string][]string, len(c.Repos))
			m.folders[RootFolder] = root
		}
		for repo, rc := range c.Repos {
			table := make(map[string][]string, len(rc.BranchJobMapping))
			for branch, job := range rc.BranchJobMapping {
				table[branch] = []string{job}
			}
			root[repo] = table
			m.owners[repo] = RootFolder
		}
	}
	return m
}

func (c *Config) validate() error {
	var errs error

	j := c.Jenkins
	if strings.TrimSpace(j.URL) == "" {
		errs = multierr.Append(errs, fmt.Errorf("jenkins.url is required"))
	}
	if j.Port <= 0 || j.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("jenkins.port must be in 1..65535, got %d", j.Port))
	}
	if strings.TrimSpace(j.API) == "" {
		errs = multierr.Append(errs, fmt.Errorf("jenkins.api or jenkins.api_env is required"))
	}
	if strings.TrimSpace(j.Username) == "" {
		errs = multierr.Append(errs, fmt.Errorf("jenkins.username or jenkins.username_env is required"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = multierr.Append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	errs = multierr.Append(errs, c.validateMapping())

	if errs != nil {
		return invalid(errs)
	}
	return nil
}

func (c *Config) validateMapping() error {
	var errs error
	if len(c.Folders) == 0 && len(c.Repos) == 0 {
		return fmt.Errorf("at least one folder or repo must be configured")
	}

	owners := make(map[string]string)
	claim := func(project, folder string) {
		if prev, ok := owners[project]; ok {
			errs = multierr.Append(errs, fmt.Errorf("project %q is configured in both folder %q and folder %q", project, prev, folder))
			return
		}
		owners[project] = folder
	}

	for _, folder := range sortedKeys(c.Folders) {
		projects := c.Folders[folder]
		if strings.TrimSpace(folder) == "" {
			errs = multierr.Append(errs, fmt.Errorf("folders: folder name must not be empty"))
			continue
		}
		if padded(folder) {
			errs = multierr.Append(errs, fmt.Errorf("folder %q: name must not have surrounding whitespace", folder))
			continue
		}
		if len(projects) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("folder %q must define at least one project", folder))
			continue
		}
		for _, project := range sortedKeys(projects) {
			branches := projects[project]
			if strings.TrimSpace(project) == "" {
				errs = multierr.Append(errs, fmt.Errorf("folder %q: project name must not be empty", folder))
				continue
			}
			if padded(project) {
				errs = multierr.Append(errs, fmt.Errorf("folder %q: project %q must not have surrounding whitespace", folder, project))
				continue
			}
			claim(project, folder)
			if len(branches) == 0 {
				errs = multierr.Append(errs, fmt.Errorf("project %s/%s must define at least one branch", folder, project))
				continue
			}
			for _, branch := range sortedKeys(branches) {
				jobs := branches[branch]
				if branch == "" {
					errs = multierr.Append(errs, fmt.Errorf("project %s/%s: branch name must not be empty", folder, project))
					continue
				}
				if len(jobs) == 0 {
					errs = multierr.Append(errs, fmt.Errorf("branch %s/%s/%s must map to at least one job", folder, project, branch))
					continue
				}
				for i, job := range jobs {
					if strings.TrimSpace(job) == "" {
						errs = multierr.Append(errs, fmt.Errorf("branch %s/%s/%s: job[%d] must not be empty", folder, project, branch, i))
					}
				}
			}
		}
	}

	for _, repo := range sortedKeys(c.Repos) {
		rc := c.Repos[repo]
		if strings.TrimSpace(repo) == "" {
			errs = multierr.Append(errs, fmt.Errorf("repos: repo name must not be empty"))
			continue
		}
		if padded(repo) {
			errs = multierr.Append(errs, fmt.Errorf("repo %q: name must not have surrounding whitespace", repo))
			continue
		}
		claim(repo, RootFolder)
		if len(rc.BranchJobMapping) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("repo %q: branch_job_mapping must not be empty", repo))
			continue
		}
		for _, branch := range sortedKeys(rc.BranchJobMapping) {
			if branch == "" {
				errs = multierr.Append(errs, fmt.Errorf("repo %q: branch name must not be empty", repo))
				continue
			}
			if strings.TrimSpace(rc.BranchJobMapping[branch]) == "" {
				errs = multierr.Append(errs, fmt.Errorf("repo %q branch %q: job must not be empty", repo, branch))
			}
		}
	}

	return errs
}

// padded reports whether name differs from its trimmed form. Names are used
// verbatim as map keys and URL segments.
func padded(name string) bool {
	return strings.TrimSpace(name) != name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
