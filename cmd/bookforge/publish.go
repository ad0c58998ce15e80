package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bookforge/bookforge/internal/project"
	"github.com/bookforge/bookforge/internal/publish"
)

var publishCmd = &cobra.Command{
	Use:   "publish [TARGET]",
	Short: "Publish built HTML to the docs/ directory for static hosting",
	Long: `Copy the built HTML output of TARGET into the docs/ subdirectory,
commit, and push. Requires the project to be under git version control with
an origin remote configured for static-site hosting from docs/.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if projectRoot == "" {
			return fmt.Errorf("publish needs a project: %w", project.ErrNoManifest)
		}
		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		b, settings, err := resolveBuild(target)
		if err != nil {
			return err
		}
		if b.Format != project.FormatHTML {
			return fmt.Errorf("%w: target %q builds %s; publish an html target", errTargetNotHTML, b.Name, b.Format)
		}
		if _, err := os.Stat(b.OutputDir); err != nil {
			log.Info().Str("target", b.Name).Msg("no built output yet, building first")
			if err := runBuild(cmd.Context(), b, settings); err != nil {
				return err
			}
		}
		p := &publish.Publisher{Root: projectRoot}
		return p.Publish(cmd.Context(), b.Name, b.OutputDir)
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
}
