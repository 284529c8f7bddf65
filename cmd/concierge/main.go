// Package main provides the concierge CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/concierge/cli"
	"github.com/richinex/concierge/config"
)

// Global flags
var opts cli.Options

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "concierge",
		Short: "Support concierge answering from a knowledge base with provider fallback",
		Long: `Answer client questions from an ingested knowledge base.

When the knowledge base has no match, the question goes to the configured
LLM providers in a fixed fallback order (openai, anthropic, gemini,
deepseek). Only providers with an API key in the environment are used.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.Provider, "provider", "p", "",
		fmt.Sprintf("Preferred LLM provider (%s)", strings.Join(config.SupportedProviders(), ", ")))
	rootCmd.PersistentFlags().StringVarP(&opts.Identity, "identity", "i", "", "Client identity used for entitlements")
	rootCmd.PersistentFlags().StringVarP(&opts.Language, "lang", "l", "", "Reply language (es, en)")
	rootCmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "Database path (default $CONCIERGE_DB or .concierge/concierge.db)")
	rootCmd.PersistentFlags().BoolVar(&opts.Polish, "polish", false, "Ask the answering provider for a tone rewrite")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(demosCmd())
	rootCmd.AddCommand(assignCmd())
	rootCmd.AddCommand(unassignCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(cmd.Context(), args[0], opts, cmd.OutOrStdout())
		},
	}
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "Session ID for conversation persistence")

	return cmd
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Ingest .md and .txt files into the knowledge base",
		Long: `Ingest every .md and .txt file below dir.

Files are split into overlapping chunks. Re-ingesting a file replaces its
previous chunks. A language suffix in the file name (guide.es.md,
guide.en.md) limits its chunks to that language.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ingest(cmd.Context(), args[0], opts, cmd.OutOrStdout())
		},
	}
}

func demosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demos",
		Short: "List the demo catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Demos(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

func assignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign [identity] [demo-id]",
		Short: "Grant a client access to a demo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Assign(cmd.Context(), args[0], args[1], opts, cmd.OutOrStdout())
		},
	}
}

func unassignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unassign [identity] [demo-id]",
		Short: "Revoke a client's access to a demo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Unassign(cmd.Context(), args[0], args[1], opts, cmd.OutOrStdout())
		},
	}
}
