package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/cortex/internal/paths"
	"github.com/mesh-intelligence/cortex/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyJournalMode   = "journal_mode"
	cfgKeySynchronous   = "synchronous"
	cfgKeyBusyTimeoutMS = "busy_timeout_ms"
)

// loadConfig reads config.yaml from configDir. A missing file or directory
// is not an error; defaults apply.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyJournalMode, types.DefaultJournalMode)
	v.SetDefault(cfgKeySynchronous, types.DefaultSynchronous)
	v.SetDefault(cfgKeyBusyTimeoutMS, types.DefaultBusyTimeoutMS)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// storeConfig builds the backend configuration from flags and config.yaml.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.config.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg := types.Config{
		Backend:       a.config.GetString(cfgKeyBackend),
		DataDir:       dataDir,
		JournalMode:   a.config.GetString(cfgKeyJournalMode),
		Synchronous:   a.config.GetString(cfgKeySynchronous),
		BusyTimeoutMS: a.config.GetInt(cfgKeyBusyTimeoutMS),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, usageError(fmt.Errorf("config: %w", err))
	}
	return cfg, nil
}

// writeConfigIfMissing creates config.yaml with cfg if the file does not
// exist. An existing file is left untouched.
func writeConfigIfMissing(path string, cfg types.Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	return true, os.WriteFile(path, data, 0o644)
}
