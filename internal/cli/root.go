// Package cli implements the cortex command-line interface. Every command
// attaches a file-backed store, runs one operation in a transaction and
// detaches again.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/cortex/internal/paths"
	"github.com/mesh-intelligence/cortex/pkg/cortex"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
}

// app carries the state shared by one command tree.
type app struct {
	flags rootFlags

	// Resolved by PersistentPreRunE.
	configDir string
	config    *viper.Viper
}

// NewRootCmd creates the top-level "cortex" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:     "cortex",
		Short:   "A dynamic-schema entity store",
		Long:    "Cortex stores entities whose shape is declared at runtime as entity\nschemas with typed attributes, on top of SQLite.",
		Version: cortex.Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.cortex-db)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.newVersionCmd(),
		a.newInitCmd(),
		a.newSchemaCmd(),
		a.newAttributeCmd(),
		a.newEntityCmd(),
		a.newValueCmd(),
		a.newLongformCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(NewRootCmd(), os.Args[1:], os.Stderr))
}

// run executes root with args and maps the outcome to an exit code.
func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "cortex:", err)
	return exitCode(err)
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(a.flags.logLevel)
	if err != nil {
		return usageError(fmt.Errorf("--log-level: %w", err))
	}
	log.SetLevel(level)

	a.configDir, err = paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	a.config, err = loadConfig(a.configDir)
	if err != nil {
		return err
	}
	return nil
}

// cliError attaches an exit code to an error.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// usageError marks err as caused by bad command-line input.
func usageError(err error) error {
	return &cliError{code: exitUserError, err: err}
}

func exitCode(err error) int {
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	if isUserError(err) {
		return exitUserError
	}
	return exitSysError
}
