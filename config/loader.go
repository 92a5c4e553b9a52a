package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is searched for in the working directory and its parents.
	ProjectConfigFile = "specview.yaml"
	// UserConfigDir is relative to the home directory.
	UserConfigDir  = ".config/specview"
	UserConfigFile = "config.yaml"
)

// Loader resolves the effective configuration from every config layer.
type Loader struct {
	logger  *slog.Logger
	homeDir string
	workDir string
}

// NewLoader creates a Loader rooted at the current home and working directories.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger}
	if home, err := os.UserHomeDir(); err == nil {
		l.homeDir = home
	}
	if cwd, err := os.Getwd(); err == nil {
		l.workDir = cwd
	}
	return l
}

// Load applies, in order, the defaults, ~/.config/specview/config.yaml, the
// nearest specview.yaml and explicitPath (--config). Later layers override
// only the keys they set. A missing or broken user or project file is
// skipped; a broken explicit file is an error.
//
// Relative specs and output roots resolve against the directory of the
// project or explicit config file that was loaded last, else the working
// directory.
func (l *Loader) Load(explicitPath string) (*Config, error) {
	cfg := DefaultConfig()
	base := l.workDir

	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if err := cfg.apply(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	projectConfigPath := l.findProjectConfig()
	if projectConfigPath != "" {
		if err := cfg.apply(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			base = filepath.Dir(projectConfigPath)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	if explicitPath != "" {
		if err := cfg.apply(explicitPath); err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config file", slog.String("path", explicitPath))
		if abs, err := filepath.Abs(explicitPath); err == nil {
			base = filepath.Dir(abs)
		}
	}

	if base != "" {
		cfg.ResolvePaths(base)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnsureUserConfig writes the default user config unless one exists and
// returns its path.
func (l *Loader) EnsureUserConfig() (string, error) {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return "", errors.New("no home directory for user config")
	}

	if _, err := os.Stat(userConfigPath); err == nil {
		return userConfigPath, nil
	}

	if err := DefaultConfig().SaveToFile(userConfigPath); err != nil {
		return "", err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return userConfigPath, nil
}

func (l *Loader) userConfigPath() string {
	if l.homeDir == "" {
		return ""
	}
	return filepath.Join(l.homeDir, UserConfigDir, UserConfigFile)
}

// findProjectConfig walks up from the working directory.
func (l *Loader) findProjectConfig() string {
	if l.workDir == "" {
		return ""
	}

	dir := l.workDir
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
