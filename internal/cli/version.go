package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cortex/pkg/cortex"
)

const modulePath = "github.com/mesh-intelligence/cortex"

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cortex version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := struct {
				Version string `json:"version"`
				Module  string `json:"module"`
			}{cortex.Version, modulePath}
			return a.output(cmd, v, func(w io.Writer) {
				fmt.Fprintf(w, "cortex v%s\nmodule: %s\n", v.Version, v.Module)
			})
		},
	}
}
