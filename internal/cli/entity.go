package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cortex/pkg/sqlite"
	"github.com/mesh-intelligence/cortex/pkg/types"
)

func (a *app) newEntityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Add, read and delete entities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <schema-id> <json>",
		Short: "Add an entity",
		Long: `Add an entity to a schema. The payload is a JSON object keyed by attribute
schema id; pass - to read it from stdin.

Example:
  cortex entity add 9b1f... '{"4e2a...": "hello"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaID, err := parseID("schema id", args[0])
			if err != nil {
				return err
			}
			payload, err := readArg(cmd, args[1])
			if err != nil {
				return err
			}
			var id types.ID
			err = a.update(func(tx types.Tx) error {
				id, err = sqlite.AddEntityJSON(tx, schemaID, payload)
				return err
			})
			if err != nil {
				return err
			}
			return a.output(cmd, map[string]string{"id": id.String()}, func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id> [request-json]",
		Short: "Read an entity",
		Long: `Read an entity. The optional field request is a JSON array whose items are
attribute ids, or {"attribute": id, "request": [...]} objects that expand a
reference. Without a request every attribute is returned unexpanded.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("entity id", args[0])
			if err != nil {
				return err
			}
			var req types.FieldRequest
			if len(args) == 2 {
				if req, err = parseRequest(args[1]); err != nil {
					return err
				}
			}
			var resp types.Response
			err = a.view(func(tx types.Tx) error {
				if req == nil {
					_, m, err := sqlite.LoadEntitySchemaMap(tx, id)
					if err != nil {
						return err
					}
					req = leafRequest(m)
				}
				resp, err = sqlite.GetEntity(tx, id, req)
				return err
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	})

	var listRequest string
	list := &cobra.Command{
		Use:   "list <schema-id>",
		Short: "List the entities of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaID, err := parseID("schema id", args[0])
			if err != nil {
				return err
			}
			if listRequest == "" {
				var ids []types.ID
				err = a.view(func(tx types.Tx) error {
					ids, err = sqlite.ListEntities(tx, schemaID)
					return err
				})
				if err != nil {
					return err
				}
				return a.output(cmd, ids, func(w io.Writer) {
					for _, id := range ids {
						fmt.Fprintln(w, id)
					}
				})
			}

			req, err := parseRequest(listRequest)
			if err != nil {
				return err
			}
			var resps map[types.ID]types.Response
			err = a.view(func(tx types.Tx) error {
				resps, err = sqlite.GetEntities(tx, schemaID, req)
				return err
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resps)
		},
	}
	list.Flags().StringVar(&listRequest, "request", "", "field request applied to every entity")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entity and its values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("entity id", args[0])
			if err != nil {
				return err
			}
			if err := a.update(func(tx types.Tx) error { return sqlite.DeleteEntity(tx, id) }); err != nil {
				return err
			}
			return a.output(cmd, map[string]string{"deleted": id.String()}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted entity %s\n", id)
			})
		},
	})

	return cmd
}

func (a *app) newValueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "value",
		Short: "Add and delete single attribute values",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <entity-id> <attribute-id> <json>",
		Short: "Add one value to an entity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := parseID("entity id", args[0])
			if err != nil {
				return err
			}
			attrID, err := parseID("attribute id", args[1])
			if err != nil {
				return err
			}
			raw, err := readArg(cmd, args[2])
			if err != nil {
				return err
			}
			payload, err := decodeJSON(raw)
			if err != nil {
				return err
			}
			var id types.ID
			err = a.update(func(tx types.Tx) error {
				id, err = sqlite.AddValue(tx, entityID, attrID, payload)
				return err
			})
			if err != nil {
				return err
			}
			return a.output(cmd, map[string]string{"id": id.String()}, func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <value-id>",
		Short: "Delete one attribute value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("value id", args[0])
			if err != nil {
				return err
			}
			if err := a.update(func(tx types.Tx) error { return sqlite.DeleteAttributeValue(tx, id) }); err != nil {
				return err
			}
			return a.output(cmd, map[string]string{"deleted": id.String()}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted value %s\n", id)
			})
		},
	})

	return cmd
}

// readArg returns the argument bytes, or stdin when the argument is "-".
func readArg(cmd *cobra.Command, arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return data, nil
}

// decodeJSON decodes a single JSON value keeping numbers exact.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, usageError(fmt.Errorf("decode payload: %w", err))
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, usageError(fmt.Errorf("decode payload: trailing data"))
	}
	return v, nil
}

func parseRequest(s string) (types.FieldRequest, error) {
	var req types.FieldRequest
	if err := json.Unmarshal([]byte(s), &req); err != nil {
		return nil, usageError(fmt.Errorf("%w: %w", types.ErrInvalidFieldRequest, err))
	}
	if req == nil {
		req = types.FieldRequest{}
	}
	return req, nil
}

// leafRequest requests every attribute of a schema as a leaf, ordered by
// attribute name.
func leafRequest(m types.SchemaMap) types.FieldRequest {
	attrs := make([]types.AttributeSchema, 0, len(m))
	for _, attr := range m {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })

	req := make(types.FieldRequest, 0, len(attrs))
	for _, attr := range attrs {
		req = append(req, types.Attr(attr.ID))
	}
	return req
}
