package config

// Config represents the full application configuration. It is constructed
// once at startup and handed to each component; nothing reads ambient state
// after loading.
type Config struct {
	Gerrit        GerritConfig        `yaml:"gerrit"`
	Review        ReviewConfig        `yaml:"review"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Tracking      TrackingConfig      `yaml:"tracking"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// GerritConfig describes how to reach the Gerrit server.
type GerritConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	SSHKeyPath string `yaml:"sshKeyPath"`

	// QueryAge limits polling to changes updated within the window,
	// in Gerrit age syntax (for example "2d"). Empty means no limit.
	QueryAge string `yaml:"queryAge"`

	// HTTPHost overrides the host used for REST file-content fetches.
	// Defaults to Host when empty.
	HTTPHost string `yaml:"httpHost"`
}

// ReviewConfig bounds the per-file review work.
type ReviewConfig struct {
	// ClaudeCommand is the review backend CLI binary.
	ClaudeCommand string `yaml:"claudeCommand"`

	// TimeoutSeconds bounds one backend invocation.
	TimeoutSeconds int `yaml:"timeoutSeconds"`

	// MaxLinesChanged skips files whose churn exceeds the cap.
	MaxLinesChanged int `yaml:"maxLinesChanged"`

	// MaxContentBytes drops full-file context above this size.
	MaxContentBytes int `yaml:"maxContentBytes"`

	// MaxCommentBytes is the hard ceiling for one posted comment.
	MaxCommentBytes int `yaml:"maxCommentBytes"`

	// InterChangeDelaySeconds is the pause between changes, successful or not.
	InterChangeDelaySeconds int `yaml:"interChangeDelaySeconds"`
}

// ScheduleConfig drives the polling loop.
type ScheduleConfig struct {
	IntervalMinutes   int    `yaml:"intervalMinutes"`
	MorningTime       string `yaml:"morningTime"`   // "HH:MM"
	AfternoonTime     string `yaml:"afternoonTime"` // "HH:MM"
	CheckSeconds      int    `yaml:"checkSeconds"`
	ErrorRetrySeconds int    `yaml:"errorRetrySeconds"`
}

// TrackingConfig locates the append-only reviewed-revisions ledger.
type TrackingConfig struct {
	Path string `yaml:"path"`
}

// StoreConfig configures the optional run-history store.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig selects log verbosity and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, error
	Format string `yaml:"format"` // json, human; empty picks by TTY
}
