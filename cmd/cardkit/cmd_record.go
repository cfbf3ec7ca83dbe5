package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidahmann/cardkit/internal/tracking"
)

func newRecordCmd() *cobra.Command {
	var addr, token string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Read a conversation's tracking record from a gateway",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", envOrDefault("CARDKIT_ADDR", defaultAddr), "gateway address")
	cmd.PersistentFlags().StringVar(&token, "token", envOrDefault("CARDKIT_TOKEN", os.Getenv("CARDKIT_DEV_TOKEN")), "bearer token")

	var jsonOut bool
	show := &cobra.Command{
		Use:   "show <channel> <conversation>",
		Short: "Print the live ids of a conversation",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := fetch(addr, token, conversationPath(args[0], args[1]))
			if err != nil {
				return err
			}
			if jsonOut {
				_, err := cmd.OutOrStdout().Write(body)
				return err
			}
			var rec tracking.Record
			if err := json.Unmarshal(body, &rec); err != nil {
				return fmt.Errorf("invalid response: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "revision=%d messages=%d\n", rec.Revision, len(rec.Messages))
			for _, id := range rec.LiveIDs().Slice() {
				fmt.Fprintf(out, "live %s=%s\n", id.Scope, id.Value)
			}
			return nil
		},
	}
	show.Flags().BoolVar(&jsonOut, "json", false, "print raw JSON response")

	messages := &cobra.Command{
		Use:   "messages <channel> <conversation>",
		Short: "List the saved message descriptors of a conversation",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := fetch(addr, token, conversationPath(args[0], args[1])+"/messages")
			if err != nil {
				return err
			}
			var payload struct {
				Messages []tracking.SavedMessage `json:"messages"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return fmt.Errorf("invalid response: %w", err)
			}
			sort.Slice(payload.Messages, func(i, j int) bool {
				return payload.Messages[i].ID < payload.Messages[j].ID
			})
			out := cmd.OutOrStdout()
			for _, m := range payload.Messages {
				ids := make([]string, 0, len(m.IDs))
				for _, id := range m.IDs {
					ids = append(ids, id.String())
				}
				fmt.Fprintf(out, "%s ids=%s\n", m.ID, strings.Join(ids, ","))
			}
			return nil
		},
	}
	var outPath string
	export := &cobra.Command{
		Use:   "pack <channel> <conversation>",
		Short: "Download a checksummed zip of the conversation's tracking state",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := fetch(addr, token, conversationPath(args[0], args[1])+"/pack")
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = fmt.Sprintf("cardkit-%s-%s.zip", args[0], args[1])
			}
			if dir := filepath.Dir(outPath); dir != "." {
				if err := os.MkdirAll(dir, 0o750); err != nil {
					return fmt.Errorf("output dir: %w", err)
				}
			}
			if err := os.WriteFile(outPath, body, 0o600); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outPath)
			return nil
		},
	}
	export.Flags().StringVar(&outPath, "out", "", "output zip path")

	cmd.AddCommand(show, messages, export)
	return cmd
}

func conversationPath(channel, conversation string) string {
	return "/v1/conversations/" + url.PathEscape(channel) + "/" + url.PathEscape(conversation)
}

func fetch(addr, token, path string) ([]byte, error) {
	body, status, err := httpGet(http.DefaultClient, strings.TrimRight(addr, "/")+path, token)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("request failed (%d): %s", status, strings.TrimSpace(string(body)))
	}
	return body, nil
}
