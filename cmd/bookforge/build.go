package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bookforge/bookforge/internal/assets"
	"github.com/bookforge/bookforge/internal/engine"
	"github.com/bookforge/bookforge/internal/exercises"
	"github.com/bookforge/bookforge/internal/project"
	"github.com/bookforge/bookforge/internal/source"
	"github.com/bookforge/bookforge/internal/templates"
)

var buildFlags struct {
	source         string
	output         string
	publication    string
	params         []string
	diagrams       bool
	diagramsFormat string
	exercises      bool
	onlyAssets     bool
	pdf            bool
	force          bool
	engineCmd      string
	pdfEngineCmd   string
}

var buildCmd = &cobra.Command{
	Use:   "build [TARGET]",
	Short: "Build the specified target",
	Long: `Process source files into the format the target specifies.

Images coded in the source (latex-image and friends) are only regenerated
with the --diagrams option. Server-rendered exercises are only reprocessed
with the --exercises option.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		b, settings, err := resolveBuild(target)
		if err != nil {
			return err
		}
		return runBuild(cmd.Context(), b, settings)
	},
}

func init() {
	f := buildCmd.Flags()
	f.StringVarP(&buildFlags.source, "input", "i", "", "path to the main source file")
	f.StringVarP(&buildFlags.output, "output", "o", "", "path to the output directory")
	f.StringVarP(&buildFlags.publication, "publication", "p", "", "publication file, relative to the project root")
	f.StringArrayVar(&buildFlags.params, "param", nil,
		"stringparam for the engine, as key:value (repeatable)")
	f.BoolVarP(&buildFlags.diagrams, "diagrams", "d", false,
		"regenerate images coded in the source (latex-image etc.)")
	f.StringVar(&buildFlags.diagramsFormat, "diagrams-format", "svg",
		"output format for generated images: "+strings.Join(assets.Formats, ", "))
	f.BoolVarP(&buildFlags.exercises, "exercises", "w", false,
		"reprocess server-rendered exercises into a fresh representations file")
	f.BoolVar(&buildFlags.onlyAssets, "only-assets", false,
		"produce requested diagrams or exercises but skip the main build")
	f.BoolVar(&buildFlags.pdf, "pdf", false,
		"compile LaTeX output to PDF with the configured TeX engine")
	f.BoolVar(&buildFlags.force, "force", false,
		"rebuild even when inputs are unchanged since the last build")
	f.StringVar(&buildFlags.engineCmd, "engine", os.Getenv("BOOKFORGE_ENGINE"),
		"XSL engine executable (default xsltproc)")
	f.StringVar(&buildFlags.pdfEngineCmd, "pdf-engine", os.Getenv("BOOKFORGE_PDF_ENGINE"),
		"TeX engine executable (default pdflatex)")
	rootCmd.AddCommand(buildCmd)
}

// loadSettings assembles tool settings: flags first, then the optional
// config file beside the manifest, then built-in defaults.
func loadSettings(root string) project.Settings {
	s := project.Settings{
		Engine:    buildFlags.engineCmd,
		PDFEngine: buildFlags.pdfEngineCmd,
	}
	if root != "" {
		path := filepath.Join(root, project.ConfigName)
		if _, err := os.Stat(path); err == nil {
			fc, err := project.LoadFileConfig(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("ignoring unreadable config file")
			} else {
				project.ApplyFileConfig(&s, fc)
			}
		}
	}
	s.FillDefaults()
	return s
}

// resolveBuild merges flags, manifest, and defaults into one build
// configuration plus the tool settings, and materializes the publication
// file fallback.
func resolveBuild(target string) (project.Build, project.Settings, error) {
	var m *project.Manifest
	if projectRoot != "" {
		var err error
		m, err = project.LoadManifest(projectRoot)
		if err != nil {
			return project.Build{}, project.Settings{}, err
		}
	} else {
		log.Warn().Msg("no project manifest found; run `bookforge init` to generate one")
	}

	params, err := project.ParseParams(buildFlags.params)
	if err != nil {
		return project.Build{}, project.Settings{}, err
	}
	settings := loadSettings(projectRoot)
	for k, v := range settings.Params {
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}

	b, err := project.Resolve(m, project.Overrides{
		Target:      target,
		Source:      buildFlags.source,
		OutputDir:   buildFlags.output,
		Publication: buildFlags.publication,
		Params:      params,
	})
	if err != nil {
		return project.Build{}, project.Settings{}, err
	}
	if err := materializePublication(&b); err != nil {
		return project.Build{}, project.Settings{}, err
	}
	return b, settings, nil
}

// materializePublication substitutes the embedded default publication file
// when none was resolved or the resolved one does not exist.
func materializePublication(b *project.Build) error {
	if b.Publication != "" {
		if _, err := os.Stat(b.Publication); err == nil {
			return nil
		}
		log.Error().Str("path", b.Publication).Msg("publication file does not exist; building with the built-in default")
		b.PublicationDefaulted = true
	}
	f, err := os.CreateTemp("", "bookforge-publication-*.xml")
	if err != nil {
		return fmt.Errorf("materialize default publication: %w", err)
	}
	if _, err := f.Write(templates.DefaultPublication()); err != nil {
		f.Close()
		return fmt.Errorf("materialize default publication: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	b.Publication = f.Name()
	return nil
}

// runBuild validates the source and dispatches the requested passes.
func runBuild(ctx context.Context, b project.Build, settings project.Settings) error {
	// Hard stop on malformed XML; schema conformance only warns.
	if err := source.CheckWellFormed(b.Source); err != nil {
		return fmt.Errorf("source is not well-formed: %w", err)
	}
	if err := source.ValidateSchema(ctx, b.Source, source.FindSchema(b.Root)); err != nil {
		log.Warn().Err(err).Msg("source does not conform to the schema; building anyway")
	}

	effective, err := source.Expand(b.Source)
	if err != nil {
		return fmt.Errorf("expand includes: %w", err)
	}
	report, err := source.Scan(effective)
	if err != nil {
		log.Warn().Err(err).Msg("asset scan failed; asset advisories unavailable")
	}

	pub, err := engine.LoadPublication(b.Publication)
	if err != nil {
		return err
	}
	if err := pub.EnsureAssetDirs(b.Source); err != nil {
		return err
	}

	if buildFlags.diagrams {
		diagrams, err := assets.ExtractDiagrams(effective)
		if err != nil {
			return fmt.Errorf("extract diagrams: %w", err)
		}
		g := &assets.Generator{
			LatexEngine: settings.PDFEngine,
			OutDir:      filepath.Join(pub.GeneratedDir(b.Source), "latex-image"),
		}
		if err := g.Generate(ctx, diagrams, buildFlags.diagramsFormat); err != nil {
			return err
		}
	} else if report.NeedsDiagramPass(b.Format) {
		log.Warn().Msg("source has generated images that will not be (re)built; rerun with --diagrams if updates are needed")
	}

	if buildFlags.exercises {
		if err := runExercises(ctx, b, settings, effective); err != nil {
			return err
		}
	} else if report.Exercises > 0 {
		log.Warn().Msg("source has server-rendered exercises; rerun with --exercises to refresh their representations")
	}

	bd := &engine.Builder{
		Command:   settings.Engine,
		PDFEngine: settings.PDFEngine,
		XSLDir:    xslDir(b.Root),
	}
	return bd.Build(ctx, b, effective, engine.Options{
		OnlyAssets: buildFlags.onlyAssets,
		CompilePDF: buildFlags.pdf,
		Force:      buildFlags.force,
	})
}

func runExercises(ctx context.Context, b project.Build, settings project.Settings, effective []byte) error {
	exs, err := exercises.Extract(effective)
	if err != nil {
		return fmt.Errorf("extract exercises: %w", err)
	}
	if len(exs) == 0 {
		log.Info().Msg("no server-rendered exercises in source")
		return nil
	}
	server := settings.ExercisesServer
	if s, ok := b.Params["server"]; ok && s != "" {
		server = s
	} else {
		log.Warn().Str("server", server).Msg("no server param supplied, using default render server")
	}
	cacheDir := ""
	if b.Root != "" {
		cacheDir = filepath.Join(b.Root, ".bookforge-cache", "exercises")
	}
	c := &exercises.Client{
		Server:            server,
		MaxAttempts:       2,
		PerRequestTimeout: 60 * time.Second,
	}
	if cacheDir != "" {
		cache := &exercises.Cache{Dir: cacheDir}
		if settings.ExercisesMaxAge > 0 {
			if n, err := cache.PurgeByAge(settings.ExercisesMaxAge); err != nil {
				log.Warn().Err(err).Msg("exercise cache purge failed")
			} else if n > 0 {
				log.Info().Int("removed", n).Msg("purged stale exercise cache entries")
			}
		}
		c.Cache = cache
	}
	rendered, err := c.RenderAll(ctx, exs)
	if err != nil {
		return err
	}
	out := filepath.Join(filepath.Dir(b.Source), exercises.RepresentationsName)
	if err := exercises.WriteRepresentations(out, rendered); err != nil {
		return err
	}
	log.Info().Str("out", out).Int("count", len(rendered)).Msg("wrote exercise representations")
	return nil
}

// xslDir locates the engine stylesheets: BOOKFORGE_XSL wins, then the
// project's own xsl directory.
func xslDir(root string) string {
	if d := os.Getenv("BOOKFORGE_XSL"); d != "" {
		return d
	}
	if root != "" {
		return filepath.Join(root, "xsl")
	}
	return "xsl"
}

// errTargetNotHTML guards view/publish flows that only make sense for HTML.
var errTargetNotHTML = errors.New("target does not produce HTML output")
