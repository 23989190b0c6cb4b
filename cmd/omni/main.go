// Package main provides the omni CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/omni-cli/omni/cli"
	"github.com/omni-cli/omni/llm"
)

var (
	// Global flags
	provider string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "omni",
		Short: "One CLI for OpenAI-compatible, Anthropic and Gemini providers",
		Long: `A CLI for asking questions against any configured AI completion provider.

Providers are registered once with 'config-add'; from then on omni
identifies the provider family (OpenAI-compatible, Anthropic, Gemini)
from the base URL or a live probe and adapts the request shape to it.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "Registered provider name (default: the registry default)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configAddCmd())
	rootCmd.AddCommand(providersCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func globalOptions() cli.Options {
	opts := cli.DefaultOptions()
	opts.Provider = provider
	opts.Verbose = verbose
	return opts
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an empty provider registry file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.InitConfig()
		},
	}
}

func configAddCmd() *cobra.Command {
	var baseURL string
	var apiKey string
	var model string
	var family string
	var makeDefault bool

	cmd := &cobra.Command{
		Use:   "config-add [name]",
		Short: "Register a provider in the config file",
		Long: `Register a provider under a name of your choosing.

The API key may be given as a literal or as ${ENV_VAR}, which is
expanded when the registry is loaded. The family is optional: when
omitted, omni identifies it from the base URL at request time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fam, err := llm.ParseFamily(family)
			if err != nil {
				return err
			}
			p := llm.ProviderConfig{
				Name:    args[0],
				BaseURL: baseURL,
				APIKey:  apiKey,
				Model:   model,
				Family:  fam,
			}
			return cli.AddProvider(p, makeDefault)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Provider base URL (required)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key or ${ENV_VAR} reference")
	cmd.Flags().StringVar(&model, "model", "", "Default model for this provider")
	cmd.Flags().StringVar(&family, "family", "", "Pin the provider family (openai_compatible, anthropic, gemini)")
	cmd.Flags().BoolVar(&makeDefault, "default", false, "Make this the default provider")
	cmd.MarkFlagRequired("base-url")

	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListProviders(globalOptions())
		},
	}
}

func detectCmd() *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "detect [base-url]",
		Short: "Identify the provider family behind a base URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.DetectURL(context.Background(), args[0], apiKey, globalOptions())
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key used for the probe request")

	return cmd
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check reachability of registered providers",
		Long: `Check every registered provider (or one, with --provider) by sending
a cheap request and reporting the result. Doctor never fails: an
unreachable provider is a row in the report, not an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Doctor(context.Background(), globalOptions())
		},
	}
}

func askCmd() *cobra.Command {
	var model string
	var systemPrompt string
	var maxTokens int
	var temperature float64
	var noHistory bool
	var dbPath string

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a prompt to a provider and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := llm.AskRequest{
				Prompt:       args[0],
				SystemPrompt: systemPrompt,
				Model:        model,
			}
			if cmd.Flags().Changed("max-tokens") {
				req.MaxTokens = &maxTokens
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &temperature
			}

			opts := globalOptions()
			opts.NoHistory = noHistory
			if dbPath != "" {
				opts.DBPath = dbPath
			}
			return cli.Ask(context.Background(), req, opts)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Model override (default: the provider's configured model)")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "System prompt")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum tokens in the answer")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip recording the ask in history")
	cmd.Flags().StringVar(&dbPath, "db", "", "History database path")

	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	var dbPath string
	var purge bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent asks",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := globalOptions()
			if dbPath != "" {
				opts.DBPath = dbPath
			}
			if purge {
				return cli.PurgeHistory(context.Background(), opts)
			}
			return cli.History(context.Background(), limit, opts)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to show")
	cmd.Flags().StringVar(&dbPath, "db", "", "History database path")
	cmd.Flags().BoolVar(&purge, "purge", false, "Delete all history records")

	return cmd
}
