package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidahmann/cardkit/internal/cardtree"
	"github.com/davidahmann/cardkit/internal/dataid"
)

func newIDsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ids",
		Short: "Assign or extract ids on a JSON entry without a gateway",
	}
	cmd.AddCommand(newIDsAssignCmd(), newIDsExtractCmd())
	return cmd
}

func newIDsAssignCmd() *cobra.Command {
	var (
		kindName  string
		scopes    []string
		values    []string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "assign [FILE]",
		Short: "Stamp ids into an entry and print the result",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, entry, err := readEntry(cmd, kindName, args)
			if err != nil {
				return err
			}
			opts, err := assignOptions(scopes, values, overwrite)
			if err != nil {
				return err
			}
			out, err := cardtree.AssignIDs(entry, kind, opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "batch", "kind of the entry, e.g. batch, message, hero_card")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{string(dataid.ScopeAction)}, "scopes to assign")
	cmd.Flags().StringArrayVar(&values, "value", nil, "explicit id as SCOPE=VALUE")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace ids already present")
	return cmd
}

func newIDsExtractCmd() *cobra.Command {
	var (
		kindName string
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "extract [FILE]",
		Short: "List the ids an entry carries",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, entry, err := readEntry(cmd, kindName, args)
			if err != nil {
				return err
			}
			ids, err := cardtree.ExtractIDs(entry, kind)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), ids.Slice())
			}
			for _, id := range ids.Slice() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", id.Scope, id.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "batch", "kind of the entry, e.g. batch, message, hero_card")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print ids as JSON")
	return cmd
}

// readEntry decodes FILE, or stdin when FILE is absent or "-".
func readEntry(cmd *cobra.Command, kindName string, args []string) (cardtree.Kind, any, error) {
	kind, ok := cardtree.ParseKind(kindName)
	if !ok {
		return cardtree.KindInvalid, nil, usageError{err: fmt.Errorf("unknown kind %q", kindName)}
	}

	var (
		raw []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return kind, nil, fmt.Errorf("read entry: %w", err)
	}
	entry, err := cardtree.DecodeEntry(kind, raw)
	if err != nil {
		return kind, nil, err
	}
	return kind, entry, nil
}

func assignOptions(scopes []string, values []string, overwrite bool) (dataid.Options, error) {
	opts := dataid.Options{Overwrite: overwrite}
	for _, raw := range scopes {
		scope, err := dataid.ParseScope(raw)
		if err != nil {
			return opts, usageError{err: err}
		}
		opts.Scopes = append(opts.Scopes, scope)
	}
	for _, kv := range values {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			return opts, usageError{err: fmt.Errorf("--value wants SCOPE=VALUE, got %q", kv)}
		}
		scope, err := dataid.ParseScope(name)
		if err != nil {
			return opts, usageError{err: err}
		}
		opts = opts.WithValue(scope, value)
	}
	return opts, opts.Validate()
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(out, '\n'))
	return err
}
