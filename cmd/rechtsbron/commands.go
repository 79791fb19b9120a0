package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"rechtsbron/internal/app"
	"rechtsbron/internal/grounding"
	"rechtsbron/internal/grounding/handler"
	"rechtsbron/internal/mcpserver"
	"rechtsbron/internal/platform/config"
	"rechtsbron/internal/platform/logger"
	"rechtsbron/internal/sources"
)

// globalFlags override the environment configuration.
type globalFlags struct {
	provider  string
	indexPath string
	knowledge string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "rechtsbron",
		Short:         "Legal context and source aggregation for Dutch legal questions",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       app.Version,
	}
	root.PersistentFlags().StringVar(&flags.provider, "provider", "", "search provider: google, bing or index (overrides SEARCH_PROVIDER)")
	root.PersistentFlags().StringVar(&flags.indexPath, "index", "", "local JSON index path; empty uses the embedded index (overrides SEARCH_INDEX_PATH)")
	root.PersistentFlags().StringVar(&flags.knowledge, "knowledge", "", "knowledge YAML path (overrides KNOWLEDGE_PATH)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		newAnalyzeCmd(flags),
		newSearchCmd(flags),
		newGroundCmd(flags),
		newTermsCmd(flags),
		newClassifyCmd(),
		newServeCmd(flags),
		newMCPCmd(flags),
	)
	return root
}

// build loads the configuration, applies flag overrides and assembles the
// engine. Logs go to stderr so stdout carries only command output.
func build(flags *globalFlags) (*app.App, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if flags.provider != "" {
		cfg.Search.Provider = strings.ToLower(flags.provider)
	}
	if flags.indexPath != "" {
		cfg.Search.IndexPath = flags.indexPath
	}
	if flags.knowledge != "" {
		cfg.Knowledge.Path = flags.knowledge
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	log := logger.NewWithWriter(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return app.New(cfg, log)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAnalyzeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [question]",
		Short: "Detect the legal domains of a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(flags)
			if err != nil {
				return err
			}
			defer a.Close()
			return writeJSON(cmd.OutOrStdout(), a.Service.Analyze(strings.Join(args, " ")))
		},
	}
}

func newSearchCmd(flags *globalFlags) *cobra.Command {
	var (
		extra  []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search every source category and print the grouped sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			results, text := a.Service.Search(cmd.Context(), strings.Join(args, " "), extra)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), handler.FromResults(results, text))
			}
			for _, cat := range results.FailedCategories() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s failed: %v\n", cat, results.Failures[cat])
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&extra, "extra", "e", nil, "extra terms to add to the query")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the structured result")
	return cmd
}

func newGroundCmd(flags *globalFlags) *cobra.Command {
	var (
		draft  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ground [question]",
		Short: "Build the legal context and source block for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Service.Build(cmd.Context(), grounding.Request{
				Question:    strings.Join(args, " "),
				DraftAnswer: draft,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), handler.FromResult(res))
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), res.Context)
			return err
		},
	}
	cmd.Flags().StringVar(&draft, "draft", "", "draft answer mined for article references")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the structured result")
	return cmd
}

func newTermsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "terms [text]",
		Short: "Extract article references, law names and ECLI identifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(flags)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, term := range a.Service.Terms(strings.Join(args, " ")) {
				fmt.Fprintln(cmd.OutOrStdout(), term)
			}
			return nil
		},
	}
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [url...]",
		Short: "Name the publisher of each URL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", raw, sources.Classify(raw))
			}
			return nil
		},
	}
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := build(flags)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.Config.Server.Addr = addr
			}
			return a.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides RECHTSBRON_ADDR)")
	return cmd
}

func newMCPCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := build(flags)
			if err != nil {
				return err
			}
			defer a.Close()
			return server.ServeStdio(mcpserver.New(a.Service, a.Classifier, a.Logger, app.Version))
		},
	}
}
