package cmd

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisegradient/internal/framestore"
	"github.com/MeKo-Tech/noisegradient/internal/gradient"
	"github.com/MeKo-Tech/noisegradient/internal/render"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert between frame folders, frame archives and GIFs",
	Long: `Convert rendered frames. A frame folder (frame_00000.png, ...) is packed
into a SQLite frame archive; a frame archive is unpacked into a folder or
encoded as an animated GIF.`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("input", "i", "", "Input frame folder or archive (required)")
	convertCmd.Flags().StringP("output", "o", "", "Output path (required)")
	convertCmd.Flags().String("to", "", "Output format: folder, gif or archive (default: archive for folder input, gif for archive input)")
	convertCmd.Flags().Float64("convert-fps", 0, "Frame rate for folder input, or to override the archive's (default: archive value or --fps default)")
	convertCmd.Flags().String("name", "noisegradient", "Archive name")
	convertCmd.Flags().String("description", "", "Archive description")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"convert.input", "input"},
		{"convert.output", "output"},
		{"convert.to", "to"},
		{"convert.fps", "convert-fps"},
		{"convert.name", "name"},
		{"convert.description", "description"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, convertCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

type convertOptions struct {
	Input       string
	Output      string
	To          string
	Gradient    string
	Name        string
	Description string
	FPS         float64
}

func runConvert(cmd *cobra.Command, args []string) error {
	opts := convertOptions{
		Input:       viper.GetString("convert.input"),
		Output:      viper.GetString("convert.output"),
		To:          viper.GetString("convert.to"),
		FPS:         viper.GetFloat64("convert.fps"),
		Name:        viper.GetString("convert.name"),
		Description: viper.GetString("convert.description"),
		Gradient:    viper.GetString("gradient"),
	}
	return convertFrames(opts)
}

func convertFrames(opts convertOptions) error {
	if opts.Input == "" || opts.Output == "" {
		return fmt.Errorf("--input and --output are required")
	}
	info, err := os.Stat(opts.Input)
	if err != nil {
		return fmt.Errorf("input does not exist: %s", opts.Input)
	}
	if info.IsDir() {
		if opts.To != "" && opts.To != "archive" {
			return fmt.Errorf("folder input can only be converted to an archive, not %q", opts.To)
		}
		return folderToArchive(opts)
	}
	return archiveToFrames(opts)
}

type frameFile struct {
	path  string
	index int
}

var frameFilePattern = regexp.MustCompile(`^frame_(\d+)\.png$`)

// scanFrameFolder lists frame_NNNNN.png files in index order.
func scanFrameFolder(dir string) ([]frameFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var frames []frameFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := frameFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		frames = append(frames, frameFile{index: idx, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].index < frames[j].index })
	return frames, nil
}

func folderToArchive(opts convertOptions) error {
	frames, err := scanFrameFolder(opts.Input)
	if err != nil {
		return fmt.Errorf("failed to scan frame folder: %w", err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("no frames found in %s", opts.Input)
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = viper.GetFloat64("animation.fps")
	}
	if fps <= 0 {
		return fmt.Errorf("a positive frame rate is required for folder input")
	}

	first, err := os.ReadFile(frames[0].path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", frames[0].path, err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(first))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", frames[0].path, err)
	}

	logger.Info("Packing frame folder into archive", "input", opts.Input, "output", opts.Output, "frames", len(frames))

	w, err := framestore.New(opts.Output, framestore.Metadata{
		Name:        opts.Name,
		Gradient:    opts.Gradient,
		Description: opts.Description,
		Width:       cfg.Width,
		Height:      cfg.Height,
		FPS:         fps,
	})
	if err != nil {
		return fmt.Errorf("failed to create frame archive: %w", err)
	}

	interval := time.Duration(float64(time.Second) / fps)
	for i, f := range frames {
		data, err := os.ReadFile(f.path)
		if err != nil {
			logger.Error("Failed to read frame", "path", f.path, "error", err)
			continue
		}
		if err := w.WriteFrameData(f.index, time.Duration(f.index)*interval, data); err != nil {
			logger.Error("Failed to write frame", "frame", f.index, "error", err)
			continue
		}
		if (i+1)%100 == 0 {
			logger.Info("Progress", "converted", i+1, "total", len(frames))
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to flush frames: %w", err)
	}
	logger.Info("Conversion complete", "output", opts.Output, "frames", len(frames))
	return nil
}

func archiveToFrames(opts convertOptions) error {
	r, err := framestore.OpenReader(opts.Input)
	if err != nil {
		return err
	}
	defer r.Close()

	meta, err := r.Metadata()
	if err != nil {
		return err
	}
	frames, err := r.Frames()
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("archive %s contains no frames", opts.Input)
	}

	fps := opts.FPS
	if fps <= 0 {
		fps = meta.FPS
	}

	var out render.FrameWriter
	switch opts.To {
	case "gif", "":
		src := meta.Gradient
		if src == "" {
			src = opts.Gradient
		}
		lut, err := gradient.RasterizeString(src, gradient.DefaultWidth)
		if err != nil {
			return fmt.Errorf("gif palette: %w", err)
		}
		if out, err = render.NewGIFWriter(opts.Output, lut, fps); err != nil {
			return err
		}
	case "folder":
		if out, err = render.NewFolderWriter(opts.Output, png.DefaultCompression); err != nil {
			return err
		}
	default:
		return fmt.Errorf("archive input can be converted to folder or gif, not %q", opts.To)
	}

	logger.Info("Unpacking frame archive", "input", opts.Input, "output", opts.Output, "frames", len(frames), "name", meta.Name)

	for _, f := range frames {
		img, elapsed, err := r.DecodeFrame(f.Index)
		if err != nil {
			out.Close() // nolint:errcheck
			return err
		}
		if _, err := out.WriteFrame(f.Index, elapsed, img); err != nil {
			out.Close() // nolint:errcheck
			return err
		}
	}
	if err := out.Close(); err != nil {
		return err
	}

	logger.Info("Conversion complete", "output", opts.Output, "frames", len(frames))
	return nil
}
