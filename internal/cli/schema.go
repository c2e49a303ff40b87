package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cortex/pkg/sqlite"
	"github.com/mesh-intelligence/cortex/pkg/types"
)

func (a *app) newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage entity schemas",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an entity schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schema *types.EntitySchema
			err := a.update(func(tx types.Tx) error {
				var err error
				schema, err = sqlite.CreateEntitySchema(tx, types.CreateEntitySchema{Name: args[0]})
				return err
			})
			if err != nil {
				return err
			}
			return a.output(cmd, schema, func(w io.Writer) {
				fmt.Fprintf(w, "Created schema %s %s\n", schema.Name, schema.ID)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show an entity schema and its attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("schema id", args[0])
			if err != nil {
				return err
			}
			var schema *types.EntitySchema
			err = a.view(func(tx types.Tx) error {
				schema, err = sqlite.GetEntitySchema(tx, id)
				return err
			})
			if err != nil {
				return err
			}
			return a.output(cmd, schema, func(w io.Writer) { printSchema(w, schema) })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List entity schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var schemas []types.EntitySchema
			err := a.view(func(tx types.Tx) error {
				var err error
				schemas, err = sqlite.ListEntitySchemas(tx)
				return err
			})
			if err != nil {
				return err
			}
			if schemas == nil {
				schemas = []types.EntitySchema{}
			}
			return a.output(cmd, schemas, func(w io.Writer) {
				for _, s := range schemas {
					fmt.Fprintf(w, "%s\t%s\t%d attributes\n", s.ID, s.Name, len(s.Attributes))
				}
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entity schema with its entities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("schema id", args[0])
			if err != nil {
				return err
			}
			if err := a.update(func(tx types.Tx) error { return sqlite.DeleteEntitySchema(tx, id) }); err != nil {
				return err
			}
			return a.output(cmd, map[string]string{"deleted": id.String()}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted schema %s\n", id)
			})
		},
	})

	return cmd
}

func printSchema(w io.Writer, s *types.EntitySchema) {
	fmt.Fprintf(w, "%s %s\n", s.Name, s.ID)
	for _, attr := range s.Attributes {
		typ := attr.Type.String()
		if attr.Type.IsReference() && attr.Type.Reference.Name != "" {
			typ = types.ReferenceTag + "(" + attr.Type.Reference.Name + ")"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", attr.ID, attr.Name, attr.Quantity, typ)
	}
}

func (a *app) newAttributeCmd() *cobra.Command {
	var (
		quantity string
		attrType string
		target   string
	)

	add := &cobra.Command{
		Use:   "add <schema-id> <name>",
		Short: "Declare an attribute on an entity schema",
		Long: `Declare an attribute on an entity schema.

--type is one of Text, RichText, Longform, Integer, Number or Reference.
Reference attributes need --target, the id or name of the referenced schema.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaID, err := parseID("schema id", args[0])
			if err != nil {
				return err
			}
			q, err := types.ParseQuantity(quantity)
			if err != nil {
				return usageError(fmt.Errorf("--quantity: %w", err))
			}

			var attr *types.AttributeSchema
			err = a.update(func(tx types.Tx) error {
				typ, err := resolveAttributeType(tx, attrType, target)
				if err != nil {
					return err
				}
				attr, err = sqlite.CreateAttributeSchema(tx, types.CreateAttributeSchema{
					EntitySchema: schemaID,
					Name:         args[1],
					Quantity:     q,
					Type:         typ,
				})
				return err
			})
			if err != nil {
				return err
			}
			return a.output(cmd, attr, func(w io.Writer) {
				fmt.Fprintf(w, "Added attribute %s %s\n", attr.Name, attr.ID)
			})
		},
	}
	add.Flags().StringVar(&quantity, "quantity", string(types.Required), "Required, Optional or List")
	add.Flags().StringVar(&attrType, "type", string(types.Text), "attribute type")
	add.Flags().StringVar(&target, "target", "", "referenced schema id or name (Reference only)")

	cmd := &cobra.Command{
		Use:   "attribute",
		Short: "Manage attribute schemas",
	}
	cmd.AddCommand(add)
	return cmd
}

// resolveAttributeType builds an AttributeType from the --type and --target
// flags. A target that is not an id is looked up by schema name.
func resolveAttributeType(tx types.Tx, typ, target string) (types.AttributeType, error) {
	if !strings.EqualFold(typ, types.ReferenceTag) {
		if target != "" {
			return types.AttributeType{}, usageError(fmt.Errorf("--target is only valid with --type %s", types.ReferenceTag))
		}
		simple, err := types.ParseSimpleType(typ)
		if err != nil {
			return types.AttributeType{}, usageError(fmt.Errorf("--type: %w", err))
		}
		return types.SimpleAttribute(simple), nil
	}

	if target == "" {
		return types.AttributeType{}, usageError(fmt.Errorf("--type %s requires --target", types.ReferenceTag))
	}
	if id, err := types.ParseID(target); err == nil {
		return types.ReferenceAttribute(id), nil
	}
	schemas, err := sqlite.ListEntitySchemas(tx)
	if err != nil {
		return types.AttributeType{}, err
	}
	for _, s := range schemas {
		if s.Name == target {
			return types.ReferenceAttribute(s.ID), nil
		}
	}
	return types.AttributeType{}, fmt.Errorf("schema %q: %w", target, types.ErrUnknownTarget)
}
