package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// historyCmd prints the stored conversation
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the stored conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), clientCfg, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}
		defer s.Close()

		rendered := s.controller.RenderConversation()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rendered)
		}
		for _, r := range rendered {
			s.printer.message(r)
		}
		return nil
	},
}

// topicsCmd lists the stored topics
var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List conversation topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), clientCfg, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}
		defer s.Close()

		s.printer.topics(s.controller.State(), s.categoryLabel)
		return nil
	},
}

// logoutCmd wipes the stored conversation and topics
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the user and delete the stored conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), clientCfg, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}
		defer s.Close()

		s.controller.Logout(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out. Conversation and topics were removed.")
		return nil
	},
}
