package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reins/internal/client"
	"reins/internal/config"
	"reins/internal/policy"
)

const policyRequestTimeout = 30 * time.Second

// newPolicyCmd manages the host's risk policy from the command line, outside
// the TUI.
func newPolicyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and update the host risk policy",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the host's current risk policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := buildRemote(configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), policyRequestTimeout)
			defer cancel()

			doc, err := remote.FetchPolicy(ctx)
			if err != nil {
				return fmt.Errorf("fetch policy: %w", err)
			}
			return printJSON(cmd, doc)
		},
	}

	push := &cobra.Command{
		Use:   "push <file>",
		Short: "Validate a policy document and upload it to the host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read policy file: %w", err)
			}
			var doc policy.Document
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("parse policy file: %w", err)
			}

			remote, err := buildRemote(configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), policyRequestTimeout)
			defer cancel()

			if err := remote.UpdatePolicy(ctx, doc); err != nil {
				return fmt.Errorf("update policy: %w", err)
			}
			cmd.Println("policy updated")
			return nil
		},
	}

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema policy documents must satisfy",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := policy.DocumentSchema()
			if err != nil {
				return fmt.Errorf("generate schema: %w", err)
			}
			return printJSON(cmd, json.RawMessage(raw))
		},
	}

	cmd.AddCommand(show, push, schema)
	return cmd
}

func buildRemote(configPath string) (*client.Client, error) {
	cfg, err := config.Load(config.LoadOptions{Path: strings.TrimSpace(configPath)})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	settings, err := cfg.HostSettings()
	if err != nil {
		return nil, fmt.Errorf("resolve host settings: %w", err)
	}
	remote, err := client.New(client.Config{
		BaseURL:        settings.BaseURL,
		APIToken:       settings.APIToken,
		RequestTimeout: settings.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create host client: %w", err)
	}
	return remote, nil
}

func printJSON(cmd *cobra.Command, value any) error {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	cmd.Println(string(out))
	return nil
}
