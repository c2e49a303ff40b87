package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cortex/pkg/sqlite"
	"github.com/mesh-intelligence/cortex/pkg/types"
)

func (a *app) newLongformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "longform",
		Short: "Edit the text blocks of long-form values",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <value-id>",
		Short: "Show the blocks of a long-form value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("value id", args[0])
			if err != nil {
				return err
			}
			var content *types.LongformContent
			err = a.view(func(tx types.Tx) error {
				content, err = sqlite.GetLongform(tx, id)
				return err
			})
			if err != nil {
				return err
			}
			return a.output(cmd, content, func(w io.Writer) {
				for _, b := range content.Blocks {
					fmt.Fprintf(w, "%s\t%s\n", b.ID, b.Content)
				}
			})
		},
	})

	cmd.AddCommand(
		a.newInsertBlockCmd("after", "Insert a block after another", sqlite.CreateBlockAfter),
		a.newInsertBlockCmd("before", "Insert a block before another", sqlite.CreateBlockBefore),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "set <block-id> <text>",
		Short: "Replace the content of a block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("block id", args[0])
			if err != nil {
				return err
			}
			content, err := readArg(cmd, args[1])
			if err != nil {
				return err
			}
			if err := a.update(func(tx types.Tx) error {
				return sqlite.SetBlockContent(tx, id, string(content))
			}); err != nil {
				return err
			}
			return a.output(cmd, map[string]string{"updated": id.String()}, func(w io.Writer) {
				fmt.Fprintf(w, "Updated block %s\n", id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete blocks no long-form value reaches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int64
			err := a.update(func(tx types.Tx) error {
				var err error
				n, err = sqlite.PruneOrphanBlocks(tx)
				return err
			})
			if err != nil {
				return err
			}
			return a.output(cmd, map[string]int64{"pruned": n}, func(w io.Writer) {
				fmt.Fprintf(w, "Pruned %d blocks\n", n)
			})
		},
	})

	return cmd
}

func (a *app) newInsertBlockCmd(use, short string, insert func(types.Tx, types.ID) (types.ID, error)) *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   use + " <block-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			anchor, err := parseID("block id", args[0])
			if err != nil {
				return err
			}
			var id types.ID
			err = a.update(func(tx types.Tx) error {
				if id, err = insert(tx, anchor); err != nil {
					return err
				}
				if content == "" {
					return nil
				}
				return sqlite.SetBlockContent(tx, id, content)
			})
			if err != nil {
				return err
			}
			return a.output(cmd, map[string]string{"id": id.String()}, func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "content of the new block")
	return cmd
}
