package main

import (
	"errors"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bookforge/bookforge/internal/project"
	"github.com/bookforge/bookforge/internal/templates"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a project manifest in the current directory",
	Long: `Generate a project manifest (project.xml) in the current directory,
for retrofitting an existing source tree to this tool. Edit the <target>
elements to point at your source and publication files.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := filepath.Abs(".")
		if err != nil {
			return err
		}
		if root, err := project.Locate(cwd); err == nil {
			log.Warn().Str("dir", root).Msg("a project already exists here")
			log.Warn().Msg("no manifest will be generated")
			return nil
		} else if !errors.Is(err, project.ErrNoManifest) {
			return err
		}
		if err := templates.WriteManifest(cwd); err != nil {
			return err
		}
		log.Info().Msgf("success: open %s to edit your manifest", filepath.Join(cwd, project.ManifestName))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
