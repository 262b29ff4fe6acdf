package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "erpcore-cli",
		Short: "ERP Core CLI tool",
		Long:  `A command line interface for interacting with the ERP Core API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the ERP Core API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(accountsCmd())
	rootCmd.AddCommand(journalCmd())
	rootCmd.AddCommand(reportsCmd())
	rootCmd.AddCommand(automationCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Chart of accounts operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var page struct {
				Items []struct {
					Code    string `json:"code"`
					Name    string `json:"name"`
					Class   string `json:"class"`
					Balance int64  `json:"balance"`
				} `json:"items"`
				Total int64 `json:"total"`
			}
			if err := getJSON("/api/v1/accounts/", nil, &page); err != nil {
				return err
			}
			fmt.Printf("%-10s %-30s %-12s %12s\n", "CODE", "NAME", "CLASS", "BALANCE")
			for _, a := range page.Items {
				fmt.Printf("%-10s %-30s %-12s %12d\n", a.Code, truncate(a.Name, 30), a.Class, a.Balance)
			}
			fmt.Printf("%d accounts\n", page.Total)
			return nil
		},
	})

	return cmd
}

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Journal entry operations",
	}

	var actor string

	getCmd := &cobra.Command{
		Use:   "get <entry-id>",
		Short: "Show a journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry map[string]any
			if err := getJSON("/api/v1/journal-entries/"+args[0], nil, &entry); err != nil {
				return err
			}
			printJSON(entry)
			return nil
		},
	}

	postCmd := &cobra.Command{
		Use:   "post <entry-id>",
		Short: "Post a draft journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry map[string]any
			body := map[string]any{"actor_id": actor}
			if err := postJSON("/api/v1/journal-entries/"+args[0]+"/post", body, &entry); err != nil {
				return err
			}
			printJSON(entry)
			return nil
		},
	}
	postCmd.Flags().StringVar(&actor, "actor", "cli", "Actor recorded as the poster")

	cmd.AddCommand(getCmd)
	cmd.AddCommand(postCmd)
	return cmd
}

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Financial reports",
	}

	var asOf string

	tbCmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if asOf != "" {
				q.Set("as_of", asOf)
			}
			var report map[string]any
			if err := getJSON("/api/v1/reports/trial-balance", q, &report); err != nil {
				return err
			}
			printJSON(report)
			return nil
		},
	}
	tbCmd.Flags().StringVar(&asOf, "as-of", "", "Report date (RFC 3339)")

	cmd.AddCommand(tbCmd)
	return cmd
}

func automationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "automation",
		Short: "Automation operations",
	}

	var (
		event      string
		entityKind string
		entityID   string
		data       string
	)

	triggerCmd := &cobra.Command{
		Use:   "trigger",
		Short: "Fire an automation trigger event",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := json.RawMessage("{}")
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				payload = json.RawMessage(data)
			}
			body := map[string]any{
				"event":       event,
				"entity_kind": entityKind,
				"entity_id":   entityID,
				"data":        payload,
			}
			var result map[string]any
			if err := postJSON("/api/v1/automations/trigger", body, &result); err != nil {
				return err
			}
			printJSON(result)
			return nil
		},
	}
	triggerCmd.Flags().StringVar(&event, "event", "", "Event name, e.g. ledger.entry.posted")
	triggerCmd.Flags().StringVar(&entityKind, "entity-kind", "", "Kind of the triggering entity")
	triggerCmd.Flags().StringVar(&entityID, "entity-id", "", "ID of the triggering entity")
	triggerCmd.Flags().StringVar(&data, "data", "", "Trigger payload as a JSON object")
	_ = triggerCmd.MarkFlagRequired("event")

	cmd.AddCommand(triggerCmd)
	return cmd
}

func getJSON(path string, query url.Values, out any) error {
	target := baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func postJSON(path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(baseURL+path, "application/json", bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func printJSON(v any) {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
		return
	}
	fmt.Println(string(encoded))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
