// Command bookforge builds documents authored in an XML markup vocabulary
// into HTML, LaTeX, and PDF, scaffolds new projects, previews built output,
// and publishes it to static-site hosting.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bookforge/bookforge/internal/project"
)

// Set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var verbosity string

// projectRoot is the located project directory, empty when none exists. The
// root command chdirs into it so every relative path in the manifest resolves
// from the project root, whatever directory the user invoked from.
var projectRoot string

var rootCmd = &cobra.Command{
	Use:   "bookforge",
	Short: "Build, preview, and publish documents authored in XML",
	Long: `bookforge is the command-line front end for building documents from an
XML authoring format into HTML, LaTeX, and PDF. It resolves per-target build
configuration from the project manifest (project.xml) and dispatches to the
external transformation engine.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setLogLevel(verbosity); err != nil {
			return err
		}
		// Scaffolding commands locate (and refuse over) projects themselves;
		// changing directory under them would reroot their relative paths.
		if cmd.Name() == "new" || cmd.Name() == "init" {
			return nil
		}
		root, err := project.Locate(".")
		if err != nil {
			if errors.Is(err, project.ErrNoManifest) {
				return nil
			}
			return err
		}
		projectRoot = root
		log.Info().Str("dir", root).Msg("project found")
		return os.Chdir(root)
	},
}

func setLogLevel(v string) error {
	switch v {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		return fmt.Errorf("unknown verbosity %q, want debug, info, warn, or error", v)
	}
	return nil
}

// exitCode maps resolution failures to exit 2 so scripts can tell "your
// invocation or manifest is wrong" apart from tool failures (exit 1).
func exitCode(err error) int {
	switch {
	case errors.Is(err, project.ErrNoManifest),
		errors.Is(err, project.ErrInvalidManifest),
		errors.Is(err, project.ErrTargetNotFound),
		errors.Is(err, project.ErrFormatWithoutManifest):
		return 2
	}
	return 1
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "info",
		"log verbosity: debug, info, warn, or error")
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(exitCode(err))
	}
}
