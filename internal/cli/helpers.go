package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cortex/pkg/sqlite"
	"github.com/mesh-intelligence/cortex/pkg/types"
)

// userErrors are the store errors caused by the request rather than by the
// environment. They exit with exitUserError.
var userErrors = []error{
	types.ErrBadFormat,
	types.ErrPayloadNotObject,
	types.ErrUnknownAttribute,
	types.ErrMissingRequiredField,
	types.ErrListGivenForScalar,
	types.ErrBadReference,
	types.ErrInvalidName,
	types.ErrTypeMismatch,
	types.ErrInvalidQuantity,
	types.ErrInvalidAttributeType,
	types.ErrInvalidFieldRequest,
	types.ErrRequiredFieldViolation,
	types.ErrListArityViolation,
	types.ErrCardinalityViolation,
	types.ErrReferentialIntegrityViolation,
	types.ErrNotFound,
	types.ErrDuplicateName,
	types.ErrUnknownTarget,
	types.ErrUnsupported,
}

func isUserError(err error) bool {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// update attaches the store, runs fn in a read-write transaction and
// detaches.
func (a *app) update(fn func(tx types.Tx) error) error {
	return a.withBackend(func(b *sqlite.Backend) error { return b.Update(fn) })
}

// view is like update but the transaction is always rolled back.
func (a *app) view(fn func(tx types.Tx) error) error {
	return a.withBackend(func(b *sqlite.Backend) error { return b.View(fn) })
}

func (a *app) withBackend(fn func(b *sqlite.Backend) error) error {
	cfg, err := a.storeConfig()
	if err != nil {
		return err
	}
	backend := sqlite.NewBackend()
	if err := backend.Attach(cfg); err != nil {
		return fmt.Errorf("attach store: %w", err)
	}
	defer backend.Detach()
	return fn(backend)
}

// parseID parses a command-line identifier argument.
func parseID(what, s string) (types.ID, error) {
	id, err := types.ParseID(s)
	if err != nil {
		return types.ID{}, usageError(fmt.Errorf("%s: %w", what, err))
	}
	return id, nil
}

// output writes v as indented JSON in --json mode and calls text otherwise.
func (a *app) output(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if a.flags.jsonMode {
		return writeJSON(w, v)
	}
	text(w)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
