package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment variables.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "gcr"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "GCR"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return expandEnvVars(cfg), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gerrit.port", 29418)
	v.SetDefault("gerrit.sshKeyPath", "~/.ssh/id_rsa")

	v.SetDefault("review.claudeCommand", "claude")
	v.SetDefault("review.timeoutSeconds", 60)
	v.SetDefault("review.maxLinesChanged", 5000)
	v.SetDefault("review.maxContentBytes", 10240)
	v.SetDefault("review.maxCommentBytes", 16384)
	v.SetDefault("review.interChangeDelaySeconds", 2)

	v.SetDefault("schedule.intervalMinutes", 30)
	v.SetDefault("schedule.morningTime", "09:00")
	v.SetDefault("schedule.afternoonTime", "14:00")
	v.SetDefault("schedule.checkSeconds", 60)
	v.SetDefault("schedule.errorRetrySeconds", 300)

	v.SetDefault("tracking.path", "reviewed_changes.txt")

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", "gcr-history.db")

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "")
}

func locateConfigFile(name string, paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{"yaml", "yml"} {
			candidate := filepath.Join(dir, fmt.Sprintf("%s.%s", name, ext))
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}

// expandEnvVars expands ${VAR} and $VAR syntax in configuration strings.
func expandEnvVars(cfg Config) Config {
	cfg.Gerrit.Host = expandEnvString(cfg.Gerrit.Host)
	cfg.Gerrit.Username = expandEnvString(cfg.Gerrit.Username)
	cfg.Gerrit.SSHKeyPath = expandPath(expandEnvString(cfg.Gerrit.SSHKeyPath))
	cfg.Gerrit.HTTPHost = expandEnvString(cfg.Gerrit.HTTPHost)
	cfg.Gerrit.QueryAge = expandEnvString(cfg.Gerrit.QueryAge)

	cfg.Review.ClaudeCommand = expandEnvString(cfg.Review.ClaudeCommand)
	cfg.Tracking.Path = expandPath(expandEnvString(cfg.Tracking.Path))
	cfg.Store.Path = expandPath(expandEnvString(cfg.Store.Path))

	cfg.Observability.Logging.Level = expandEnvString(cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = expandEnvString(cfg.Observability.Logging.Format)

	return cfg
}

var (
	bracedVarPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	bareVarPattern   = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
)

// expandEnvString replaces ${VAR} or $VAR with environment variable values.
// Unset variables are left untouched so misconfigurations stay visible.
func expandEnvString(s string) string {
	if s == "" {
		return s
	}

	s = bracedVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})

	return bareVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[1:]); val != "" {
			return val
		}
		return match
	})
}

// expandPath resolves a leading ~ to the user's home directory.
func expandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
