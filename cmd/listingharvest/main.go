// cmd/listingharvest/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/internal/errors"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	errorService := errors.NewService()
	root := newRootCmd()

	if err := root.Execute(); err != nil {
		verbose, _ := root.PersistentFlags().GetBool("verbose")
		errorService = errorService.WithVerbose(verbose)
		fmt.Fprint(os.Stderr, errorService.FormatErrorForCLI(err))
		os.Exit(errorService.GetExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "listingharvest",
		Short: "Harvest product listings into a records service",
		Long: `listingharvest walks the listing pages for a search term, extracts every
item page with bounded concurrency, cleans the records and submits the new
ones to a records service, skipping those already stored.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "f", "", "configuration file (YAML)")
	root.PersistentFlags().String("env-file", ".env", "file with KEY=VALUE pairs loaded before the configuration")
	root.PersistentFlags().BoolP("verbose", "v", false, "debug logging and technical error details")

	root.AddCommand(newRunCmd(), newValidateCmd(), newTemplateCmd(), newVersionCmd())
	return root
}

// loadConfig reads the env file and the configuration file, falling back to
// the defaults when no file is given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newValidateCmd() *cobra.Command {
	var term string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if term != "" {
				cfg.Search.Term = term
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration is valid\n")
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				fmt.Fprintf(out, "  Term: %s\n", cfg.Search.Term)
				fmt.Fprintf(out, "  Pages: %d\n", cfg.Search.MaxPages)
				fmt.Fprintf(out, "  Fetch mode: %s (concurrency %d)\n", cfg.Fetch.Mode, cfg.Fetch.Concurrency)
				fmt.Fprintf(out, "  Sink: %s\n", cfg.Sink.Type)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&term, "term", "t", "", "search term, if the file has none")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template",
		Short: "Print a configuration template with every default",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateTemplate()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "listingharvest %s\n", version)
			fmt.Fprintf(out, "Build time: %s\n", buildTime)
			fmt.Fprintf(out, "Git commit: %s\n", gitCommit)
		},
	}
}
