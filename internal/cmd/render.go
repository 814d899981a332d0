package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisegradient/internal/config"
	"github.com/MeKo-Tech/noisegradient/internal/framestore"
	"github.com/MeKo-Tech/noisegradient/internal/gradient"
	"github.com/MeKo-Tech/noisegradient/internal/render"
	"github.com/MeKo-Tech/noisegradient/internal/worker"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render an animation",
	Long: `Render a sequence of frames of the noise field. Clock snapshots are computed
in order first; frames are then rendered in parallel and written as a PNG
folder, an animated GIF or a SQLite frame archive.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	def := config.Default()
	renderCmd.Flags().Int("frames", def.Animation.Frames, "Number of frames to render")
	renderCmd.Flags().Float64("fps", def.Animation.FPS, "Frames per second")
	renderCmd.Flags().String("format", "folder", "Output format: folder, gif or archive")
	renderCmd.Flags().StringP("out", "o", "./frames", "Output directory (folder) or file (gif, archive)")
	renderCmd.Flags().IntP("workers", "w", 0, "Frames rendered in parallel (default: number of CPUs)")
	renderCmd.Flags().Bool("progress", true, "Show progress bar")
	renderCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some frames fail")
	renderCmd.Flags().String("name", "noisegradient", "Archive name (archive format)")
	renderCmd.Flags().String("description", "", "Archive description (archive format)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"animation.frames", "frames"},
		{"animation.fps", "fps"},
		{"output.format", "format"},
		{"output.path", "out"},
		{"output.workers", "workers"},
		{"output.progress", "progress"},
		{"output.allow_failures", "allow-failures"},
		{"output.name", "name"},
		{"output.description", "description"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, renderCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// outputOptions describe where and how frames are written.
type outputOptions struct {
	Format      string
	Path        string
	Name        string
	Description string
	Workers     int
	Progress    bool
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := outputOptions{
		Format:      viper.GetString("output.format"),
		Path:        viper.GetString("output.path"),
		Name:        viper.GetString("output.name"),
		Description: viper.GetString("output.description"),
		Workers:     viper.GetInt("output.workers"),
		Progress:    viper.GetBool("output.progress"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	results, err := renderAnimation(ctx, cfg, out)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error("Frame rendering failed", "frame", r.Task.Index, "error", r.Err)
		}
	}
	if failed > 0 {
		if viper.GetBool("output.allow_failures") {
			logger.Warn("Some frames failed to render, but continuing due to --allow-failures flag", "failed_count", failed)
			return nil
		}
		return fmt.Errorf("%d of %d frames failed: %w", failed, cfg.Animation.Frames, worker.FirstError(results))
	}
	return nil
}

// renderAnimation schedules, renders and writes all frames of cfg. The
// writer is closed before returning, so its output is complete.
func renderAnimation(ctx context.Context, cfg config.Config, out outputOptions) ([]worker.Result, error) {
	lut, err := gradient.RasterizeString(cfg.Gradient, cfg.LUTWidth)
	if err != nil {
		return nil, err
	}
	field, err := cfg.Field()
	if err != nil {
		return nil, err
	}
	clocks, err := cfg.Clocks()
	if err != nil {
		return nil, err
	}
	tasks, err := render.Schedule(clocks, cfg.Animation.Frames, cfg.Animation.FPS)
	if err != nil {
		return nil, err
	}

	workers := out.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	// Frames already run in parallel; rows share what is left of the CPUs.
	opts := cfg.RenderOptions()
	opts.Workers = render.RowWorkers(min(workers, len(tasks)), opts.Workers)
	rnd, err := render.New(field, lut, opts, logger)
	if err != nil {
		return nil, err
	}

	writer, err := newFrameWriter(cfg, lut, out)
	if err != nil {
		return nil, err
	}

	logger.Info("Starting animation render",
		"frames", len(tasks),
		"fps", cfg.Animation.FPS,
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"noise", cfg.Noise.Kind,
		"workers", workers,
		"row_workers", opts.Workers,
		"format", out.Format,
		"out", out.Path,
	)

	progress := worker.NewProgress(len(tasks), cfg.Animation.FPS, out.Progress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Generator:  &render.Job{Renderer: rnd, Out: writer},
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()
	logger.Info(progress.Summary())

	if err := writer.Close(); err != nil {
		return results, fmt.Errorf("failed to finish %s output: %w", out.Format, err)
	}
	worker.SortByIndex(results)
	return results, nil
}

// newFrameWriter opens the output for the requested format.
func newFrameWriter(cfg config.Config, lut *gradient.LookupTable, out outputOptions) (render.FrameWriter, error) {
	level, err := render.ParseCompression(cfg.Render.PNGCompression)
	if err != nil {
		return nil, err
	}

	switch out.Format {
	case "folder", "":
		return render.NewFolderWriter(out.Path, level)
	case "gif":
		return render.NewGIFWriter(out.Path, lut, cfg.Animation.FPS)
	case "archive":
		if dir := filepath.Dir(out.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		w, err := framestore.New(out.Path, framestore.Metadata{
			Name:        out.Name,
			Gradient:    cfg.Gradient,
			NoiseKind:   cfg.Noise.Kind,
			Description: out.Description,
			Seed:        cfg.Noise.Seed,
			Width:       cfg.Width,
			Height:      cfg.Height,
			FPS:         cfg.Animation.FPS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create frame archive: %w", err)
		}
		w.SetCompression(level)
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (want folder, gif or archive)", out.Format)
	}
}
