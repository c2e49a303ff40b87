package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cortex/internal/paths"
	"github.com/mesh-intelligence/cortex/pkg/sqlite"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize cortex storage",
		Long:  "Create the configuration directory and config.yaml if missing, then create\nand migrate the database.",
		Args:  cobra.NoArgs,
		RunE:  a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	cfg, err := a.storeConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(a.configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	configPath := paths.ConfigFile(a.configDir)
	written, err := writeConfigIfMissing(configPath, cfg)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if err := a.withBackend(func(*sqlite.Backend) error { return nil }); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	result := struct {
		ConfigFile    string `json:"config_file"`
		ConfigWritten bool   `json:"config_written"`
		DataDir       string `json:"data_dir"`
	}{configPath, written, cfg.DataDir}

	return a.output(cmd, result, func(w io.Writer) {
		fmt.Fprintf(w, "Cortex initialized in %s\n", cfg.DataDir)
	})
}
