package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bookforge/bookforge/internal/project"
	"github.com/bookforge/bookforge/internal/server"
)

var viewFlags struct {
	access    string
	port      int
	directory string
	watch     bool
}

var viewCmd = &cobra.Command{
	Use:   "view [TARGET]",
	Short: "Preview built documents in your browser",
	Long: `Start a local server to preview built documents. TARGET is the name
of a <target> in the project manifest; with --directory an arbitrary
directory is served instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if viewFlags.access != server.AccessPrivate && viewFlags.access != server.AccessPublic {
			return fmt.Errorf("unknown access level %q, want public or private", viewFlags.access)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		settings := loadSettings(projectRoot)
		port := viewFlags.port
		if port == 0 {
			port = settings.ViewPort
		}
		access := viewFlags.access
		if !cmd.Flags().Changed("access") && settings.ViewAccess != "" {
			access = settings.ViewAccess
		}

		if viewFlags.directory != "" {
			dir, err := filepath.Abs(viewFlags.directory)
			if err != nil {
				return err
			}
			return serve(ctx, dir, port, access)
		}

		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		b, settings, err := resolveBuild(target)
		if err != nil {
			return err
		}
		if _, err := os.Stat(b.OutputDir); err != nil {
			log.Warn().Str("dir", b.OutputDir).Msgf("target %q has no built output; run `bookforge build %s` first", b.Name, b.Name)
		}

		if viewFlags.watch {
			if b.Format != project.FormatHTML {
				log.Warn().Str("format", b.Format).Msg("watch mode only rebuilds HTML targets; serving without watch")
			} else {
				w := &server.Watcher{
					Dir: filepath.Dir(b.Source),
					OnChange: func(ctx context.Context) error {
						return runBuild(ctx, b, settings)
					},
				}
				go func() {
					if err := w.Run(ctx); err != nil {
						log.Error().Err(err).Msg("watch loop stopped")
					}
				}()
			}
		}
		return serve(ctx, b.OutputDir, port, access)
	},
}

func serve(ctx context.Context, dir string, port int, access string) error {
	s := &server.Server{Dir: dir, Port: port, Access: access}
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func init() {
	f := viewCmd.Flags()
	f.StringVarP(&viewFlags.access, "access", "a", server.AccessPrivate,
		"allow other machines on your network to browse: public or private")
	f.IntVarP(&viewFlags.port, "port", "p", 0,
		"port for the local server (default 8000)")
	f.StringVarP(&viewFlags.directory, "directory", "d", "",
		"serve files from this directory instead of a target's output")
	f.BoolVarP(&viewFlags.watch, "watch", "w", false,
		"rebuild the target when source files change (HTML targets only)")
	rootCmd.AddCommand(viewCmd)
}
