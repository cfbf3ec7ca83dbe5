package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davidahmann/cardkit/internal/policy"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Check and print card policies",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "lint <policy_path>",
		Short: "Validate a policy file and print its hash",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := policy.Load(args[0])
			if err != nil {
				return err
			}
			hash, err := cfg.Hash()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok version=%s policy_hash=%s\n", cfg.Version, hash)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show [policy_path]",
		Short: "Print the effective policy, or the defaults when no file is given",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := policy.Default()
			if len(args) == 1 {
				var err error
				if cfg, err = policy.Load(args[0]); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), cfg)
		},
	})
	return cmd
}
