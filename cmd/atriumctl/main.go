package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag string
	rootCmd = &cobra.Command{
		Use:   "atriumctl",
		Short: "CLI client for the assistant activity pipeline REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Assistant service base URL")

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "List recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return runListEvents(apiFlag, limit, os.Stdout)
		},
	}
	eventsCmd.Flags().IntP("limit", "n", 50, "Number of events to return")
	rootCmd.AddCommand(eventsCmd)

	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a domain event",
		RunE: func(cmd *cobra.Command, args []string) error {
			eventType, _ := cmd.Flags().GetString("type")
			entity, _ := cmd.Flags().GetString("entity")
			entityID, _ := cmd.Flags().GetString("entity-id")
			actor, _ := cmd.Flags().GetString("actor")
			title, _ := cmd.Flags().GetString("title")
			return runSubmitEvent(apiFlag, eventType, entity, entityID, actor, title, os.Stdout)
		},
	}
	submitCmd.Flags().StringP("type", "t", "", "Event type, e.g. meeting.completed (required)")
	submitCmd.Flags().StringP("entity", "e", "", "Entity category (required)")
	submitCmd.Flags().String("entity-id", "", "Entity identifier")
	submitCmd.Flags().String("actor", "system", "Actor string")
	submitCmd.Flags().String("title", "", "Payload title")
	_ = submitCmd.MarkFlagRequired("type")
	_ = submitCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(submitCmd)

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search memory entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, _ := cmd.Flags().GetString("query")
			limit, _ := cmd.Flags().GetInt("limit")
			return runSearchMemory(apiFlag, query, limit, os.Stdout)
		},
	}
	searchCmd.Flags().StringP("query", "q", "", "Search query text (required)")
	searchCmd.Flags().IntP("limit", "n", 20, "Number of entries to return")
	_ = searchCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(searchCmd)

	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "List critical alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return runListAlerts(apiFlag, limit, os.Stdout)
		},
	}
	alertsCmd.Flags().IntP("limit", "n", 20, "Number of alerts to return")
	rootCmd.AddCommand(alertsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
