// Package config persists the tool configuration: the single target
// repository slot and the list of source repositories. Paths are
// canonicalized and verified to be git repositories before they are stored,
// so the sync engine can consume them as-is.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/teamdman/vanity/gitrepo"
)

// HomeEnvVar overrides the directory the configuration file lives in.
const HomeEnvVar = "VANITY_HOME_DIR"

const (
	dirName  = "vanity"
	fileName = "config.yaml"

	fileMode = 0o644
	dirMode  = 0o755
)

// Config is the persisted tool configuration.
type Config struct {
	// ThisRepo is the target repository path. Single slot,
	// last-write-wins.
	ThisRepo string `yaml:"this_repo,omitempty"`

	// ReadRepos are the source repository paths, deduplicated after
	// canonicalization.
	ReadRepos []string `yaml:"read_repos,omitempty"`
}

// Path returns the configuration file location.
func Path() (string, error) {
	const errCtx = "resolving config path"

	if home := os.Getenv(HomeEnvVar); home != "" {
		return filepath.Join(home, fileName), nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return filepath.Join(base, dirName, fileName), nil
}

// Load reads the configuration file. A missing file yields an empty
// configuration, not an error.
func Load() (*Config, error) {
	const errCtx = "loading config"

	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}

		return nil, fmt.Errorf("%s: read %s: %w", errCtx, path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: parse %s: %w", errCtx, path, err)
	}

	return &cfg, nil
}

// Save writes the configuration file, creating its directory when needed.
func (c *Config) Save() error {
	const errCtx = "saving config"

	path, err := Path()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("%s: write %s: %w", errCtx, path, err)
	}

	return nil
}

// SetThisRepo canonicalizes path, verifies it is a git repository, and
// stores it as the target. Returns the canonical path.
func (c *Config) SetThisRepo(path string) (string, error) {
	canonical, err := canonicalizeRepoPath(path)
	if err != nil {
		return "", err
	}

	c.ThisRepo = canonical

	return canonical, nil
}

// AddReadRepo canonicalizes path, verifies it is a git repository, and
// appends it to the source list. Adding an already-present path is a no-op.
// Returns the canonical path.
func (c *Config) AddReadRepo(path string) (string, error) {
	canonical, err := canonicalizeRepoPath(path)
	if err != nil {
		return "", err
	}

	for _, existing := range c.ReadRepos {
		if existing == canonical {
			return canonical, nil
		}
	}

	c.ReadRepos = append(c.ReadRepos, canonical)

	return canonical, nil
}

// canonicalizeRepoPath resolves path to an absolute, symlink-free form and
// verifies a git repository lives there.
func canonicalizeRepoPath(path string) (string, error) {
	const errCtx = "canonicalizing repository path"

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", errCtx, path, err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", errCtx, path, err)
	}

	if _, err := gitrepo.Open(canonical); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return canonical, nil
}
