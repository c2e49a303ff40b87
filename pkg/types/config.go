package types

import "errors"

// Config holds backend selection and parameters for Store.Attach.
type Config struct {
	Backend       string `json:"backend" yaml:"backend"`
	DataDir       string `json:"data_dir" yaml:"data_dir"`
	JournalMode   string `json:"journal_mode,omitempty" yaml:"journal_mode,omitempty"`
	Synchronous   string `json:"synchronous,omitempty" yaml:"synchronous,omitempty"`
	BusyTimeoutMS int    `json:"busy_timeout_ms,omitempty" yaml:"busy_timeout_ms,omitempty"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// InMemory is the DataDir value that selects a private in-memory database.
const InMemory = ":memory:"

// Defaults applied by GetJournalMode, GetSynchronous and GetBusyTimeoutMS.
const (
	DefaultJournalMode   = "WAL"
	DefaultSynchronous   = "NORMAL"
	DefaultBusyTimeoutMS = 5000
)

// Config validation errors.
var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrJournalModeUnknown = errors.New("unknown journal mode")
	ErrSynchronousUnknown = errors.New("unknown synchronous level")
	ErrBusyTimeoutInvalid = errors.New("busy timeout must not be negative")
)

var knownBackends = map[string]bool{
	BackendSQLite: true,
}

var knownJournalModes = map[string]bool{
	"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true,
}

var knownSynchronous = map[string]bool{
	"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.JournalMode != "" && !knownJournalModes[c.JournalMode] {
		return ErrJournalModeUnknown
	}
	if c.Synchronous != "" && !knownSynchronous[c.Synchronous] {
		return ErrSynchronousUnknown
	}
	if c.BusyTimeoutMS < 0 {
		return ErrBusyTimeoutInvalid
	}
	return nil
}

// GetJournalMode returns the journal mode, defaulting to WAL.
func (c Config) GetJournalMode() string {
	if c.JournalMode == "" {
		return DefaultJournalMode
	}
	return c.JournalMode
}

// GetSynchronous returns the synchronous level, defaulting to NORMAL.
func (c Config) GetSynchronous() string {
	if c.Synchronous == "" {
		return DefaultSynchronous
	}
	return c.Synchronous
}

// GetBusyTimeoutMS returns the busy timeout in milliseconds.
func (c Config) GetBusyTimeoutMS() int {
	if c.BusyTimeoutMS == 0 {
		return DefaultBusyTimeoutMS
	}
	return c.BusyTimeoutMS
}

// IsInMemory reports whether the config selects an in-memory database.
func (c Config) IsInMemory() bool {
	return c.DataDir == InMemory
}
