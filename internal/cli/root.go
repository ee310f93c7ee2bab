// Package cli implements the gslide2media command surface: the root export
// command, the history commands, and the auth commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gslide2media/gslide2media/internal/app"
	"github.com/gslide2media/gslide2media/internal/meta"
	"github.com/gslide2media/gslide2media/internal/options"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagVerbose  bool
	flagQuiet    bool
	flagStoreDir string
)

// Export flags, bound on the root command.
var (
	flagPresentations []string
	flagFolders       []string
	flagCustom        []string
	flagFormats       []string
	flagDPI           int
	flagJPEGQuality   int
	flagScreenWidth   int
	flagScreenHeight  int
	flagAspectRatio   string
	flagFPS           int
	flagSlideDuration int
	flagTotalDuration int
	flagDownloadDir   string
	flagSetLabel      string
	flagRunLabel      string
	flagDepth         int
	flagWorkers       int
)

// Execute runs the CLI and returns the error to surface from main.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// newRootCmd builds the fully-assembled command tree.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gslide2media",
		Short:   "Export Google Slides presentations as images, documents, and video",
		Version: version,
		// Errors and usage are printed by main, not by cobra.
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runExport,
	}

	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.PersistentFlags().StringVar(&flagStoreDir, "store-dir", "", "metadata store directory (default: home directory)")

	cmd.Flags().StringSliceVarP(&flagPresentations, "presentation", "p", nil, "presentation id to export (repeatable)")
	cmd.Flags().StringSliceVarP(&flagFolders, "folder", "f", nil, "folder id to export recursively (repeatable)")
	cmd.Flags().StringSliceVar(&flagCustom, "slides", nil, "custom selection 'presentationID=slideID,slideID' (repeatable)")
	cmd.Flags().StringSliceVar(&flagFormats, "format", nil, "export formats: "+formatList())
	cmd.Flags().IntVar(&flagDPI, "dpi", 0, "raster dpi for png/jpeg output")
	cmd.Flags().IntVar(&flagJPEGQuality, "jpeg-quality", options.DefaultJPEGQuality, "jpeg quality (1-100)")
	cmd.Flags().IntVar(&flagScreenWidth, "screen-width", 0, "target screen width in pixels")
	cmd.Flags().IntVar(&flagScreenHeight, "screen-height", 0, "target screen height in pixels")
	cmd.Flags().StringVar(&flagAspectRatio, "aspect-ratio", "", "target aspect ratio, e.g. 16:9")
	cmd.Flags().IntVar(&flagFPS, "fps", options.DefaultFPS, "mp4 frames per second")
	cmd.Flags().IntVar(&flagSlideDuration, "slide-duration", options.DefaultSlideDuration, "mp4 seconds per slide")
	cmd.Flags().IntVar(&flagTotalDuration, "total-duration", 0, "mp4 total seconds, split across slides")
	cmd.Flags().StringVarP(&flagDownloadDir, "download-dir", "d", "", "output directory (default: working directory)")
	cmd.Flags().StringVar(&flagSetLabel, "set-label", "", "label this option set in history")
	cmd.Flags().StringVarP(&flagRunLabel, "label", "l", "", "rerun the labeled option set from history")
	cmd.Flags().IntVar(&flagDepth, "depth", options.DefaultMaxWalkDepth, "maximum folder recursion depth")
	cmd.Flags().IntVar(&flagWorkers, "workers", options.DefaultWorkers, "concurrent presentation exports")

	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newAuthCmd())

	return cmd
}

// runExport is the root command: build an option set from flags, falling
// back to the interactive history prompt when no source was given.
func runExport(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	store, err := openStore(logger)
	if err != nil {
		return err
	}

	var opts *options.Options
	switch {
	case flagRunLabel != "":
		opts, err = store.Lookup(flagRunLabel)
		if err != nil {
			return err
		}
	case noSourceFlags(cmd):
		opts, err = promptForOptions(store)
		if err != nil {
			return err
		}
	default:
		opts, err = optionsFromFlags(cmd)
		if err != nil {
			return err
		}
	}

	summary, err := app.Run(cmd.Context(), app.Config{
		Store:  store,
		Logger: logger,
		Notify: printAuthURL,
	}, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files (%d skipped as duplicates)\n", summary.Written, summary.Skipped)
	if summary.Failed() {
		for _, f := range summary.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s (%s): %v\n", f.Path, f.PresentationID, f.Err)
		}
		return fmt.Errorf("%d of the selected presentations failed", len(summary.Failures))
	}
	return nil
}

// optionsFromFlags builds an option set from the export flags.
func optionsFromFlags(cmd *cobra.Command) (*options.Options, error) {
	formats, err := options.ParseFormats(flagFormats)
	if err != nil {
		return nil, err
	}
	custom, err := parseCustom(flagCustom)
	if err != nil {
		return nil, err
	}

	o := options.New()
	o.PresentationIDs = flagPresentations
	o.FolderIDs = flagFolders
	o.Custom = custom
	o.Formats = formats
	o.DPI = flagDPI
	o.JPEGQuality = flagJPEGQuality
	o.ScreenWidth = flagScreenWidth
	o.ScreenHeight = flagScreenHeight
	o.AspectRatio = flagAspectRatio
	o.FPS = flagFPS
	o.MP4SlideDurationSecs = flagSlideDuration
	o.MP4TotalDurationSecs = flagTotalDuration
	o.DownloadDirectory = flagDownloadDir
	o.MaxWalkDepth = flagDepth
	o.Workers = flagWorkers
	o.Source = options.SourceCLI
	if flagSetLabel != "" {
		o.SetLabel(flagSetLabel)
	}

	// An explicit total duration overrides the per-slide default; both set
	// explicitly is a conflict caught by validation.
	if flagTotalDuration != 0 && !cmd.Flags().Changed("slide-duration") {
		o.MP4SlideDurationSecs = 0
	}
	return o, nil
}

// parseCustom parses "presentationID=slideID,slideID" selections.
func parseCustom(specs []string) ([]options.CustomPresentation, error) {
	out := make([]options.CustomPresentation, 0, len(specs))
	for _, spec := range specs {
		id, slideList, ok := strings.Cut(spec, "=")
		if !ok || id == "" || slideList == "" {
			return nil, fmt.Errorf("invalid --slides value %q, want 'presentationID=slideID,slideID'", spec)
		}
		out = append(out, options.CustomPresentation{
			PresentationID: id,
			SlideIDs:       strings.Split(slideList, ","),
		})
	}
	return out, nil
}

func noSourceFlags(cmd *cobra.Command) bool {
	return !cmd.Flags().Changed("presentation") &&
		!cmd.Flags().Changed("folder") &&
		!cmd.Flags().Changed("slides")
}

// promptForOptions runs the interactive history selection.
func promptForOptions(store *meta.Store) (*options.Options, error) {
	if !Interactive() {
		return nil, ErrNotInteractive
	}
	named, unnamed := store.Collate()
	if len(named) == 0 && len(unnamed) == 0 {
		return nil, app.ErrNoSources
	}

	opts, err := NewTerminalPrompter().Select(named, unnamed)
	if err != nil {
		return nil, err
	}
	opts.Source = options.SourceInteractive
	return opts, nil
}

func openStore(logger *slog.Logger) (*meta.Store, error) {
	return meta.Open(meta.Config{Dir: flagStoreDir, Logger: logger})
}

// buildLogger creates the process logger. --verbose and --quiet win over the
// default info level.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	if flagQuiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printAuthURL(authURL string) {
	fmt.Fprintf(os.Stderr, "Visit this URL to authorize gslide2media:\n\n  %s\n\n", authURL)
}

func formatList() string {
	names := make([]string, len(options.AllFormats))
	for i, f := range options.AllFormats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
