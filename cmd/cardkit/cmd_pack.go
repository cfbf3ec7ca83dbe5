package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/davidahmann/cardkit/internal/pack"
)

func newPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Work with exported conversation packs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify <zip_path>",
		Short: "Check a pack's checksums and print its manifest",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			files, err := pack.ReadZip(data)
			if err != nil {
				return err
			}
			manifest, err := pack.Verify(files)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid=true conversation=%s/%s revision=%d policy_hash=%s files=%d\n",
				manifest.Conversation.ChannelID, manifest.Conversation.ConversationID,
				manifest.Revision, manifest.PolicyHash, len(manifest.Files))
			return nil
		},
	})
	return cmd
}
