package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bookforge/bookforge/internal/project"
	"github.com/bookforge/bookforge/internal/templates"
)

var (
	newDirectory string
	newName      string
	newURL       string
)

var newCmd = &cobra.Command{
	Use:   "new [" + strings.Join(templates.Kinds(), "|") + "]",
	Short: "Generate the files for a new project",
	Long: `Generate the files for a new project from an embedded template
(book by default) or, with --url-template, from a zipped template downloaded
from a URL.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := "book"
		if len(args) == 1 {
			kind = args[0]
		}
		if newURL == "" && !templates.Known(kind) {
			return fmt.Errorf("unknown template %q, want one of %s", kind, strings.Join(templates.Kinds(), ", "))
		}

		dir := newDirectory
		if dir == "" {
			if newName != "" {
				dir = templates.Slug(newName)
			} else {
				dir = "new-" + kind
			}
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		if root, err := project.Locate(abs); err == nil {
			log.Warn().Str("dir", root).Msg("a project already exists here")
			log.Warn().Msg("no new project will be generated")
			return nil
		} else if !errors.Is(err, project.ErrNoManifest) {
			return err
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return err
		}

		if newURL != "" {
			log.Info().Str("dir", abs).Str("url", newURL).Msg("generating project from URL template")
			if err := templates.ScaffoldFromZipURL(cmd.Context(), nil, newURL, abs); err != nil {
				return err
			}
		} else {
			log.Info().Str("dir", abs).Str("template", kind).Msg("generating new project")
			if err := templates.Scaffold(kind, abs); err != nil {
				return err
			}
		}
		log.Info().Msgf("success: open %s to edit your document", filepath.Join(abs, "source", "main.xml"))
		log.Info().Msgf("then try `bookforge build` and `bookforge view` from within %s", abs)
		return nil
	},
}

func init() {
	newCmd.Flags().StringVarP(&newDirectory, "directory", "d", "",
		"directory to create for the project (default: derived from --name or the template)")
	newCmd.Flags().StringVarP(&newName, "name", "n", "",
		"project name; its slug becomes the directory when --directory is unset")
	newCmd.Flags().StringVarP(&newURL, "url-template", "u", "",
		"download a zipped template from this URL instead of using an embedded one")
	rootCmd.AddCommand(newCmd)
}
