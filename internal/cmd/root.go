package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisegradient/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "noisegradient",
	Short: "Animated noise fields colored by CSS gradients",
	Long: `noisegradient renders a time-evolving multi-octave noise field and maps
every sample through a CSS linear-gradient lookup table.

Frames can be written as PNG folders, animated GIFs or a single SQLite frame
archive, or previewed live over HTTP.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	def := config.Default()
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	pf.Bool("verbose", false, "Enable verbose logging")
	pf.String("log-format", "text", "Log format (text, json, logfmt)")

	pf.String("gradient", def.Gradient, "CSS linear-gradient used to color the field")
	pf.Int("lut-width", def.LUTWidth, "Number of samples in the gradient lookup table")
	pf.Int("width", def.Width, "Frame width in pixels")
	pf.Int("height", def.Height, "Frame height in pixels")

	pf.String("noise", def.Noise.Kind, "Noise source (simplex, opensimplex, perlin)")
	pf.Int64("seed", def.Noise.Seed, "Noise permutation seed")
	pf.Float64("scale", def.Noise.Scale, "Zoom control in [0, 20); larger values zoom in")
	pf.Float64("frequency-offset", def.Noise.FrequencyOffset, "Per-octave phase multiplier")
	pf.Float64("offset-x", def.Noise.OffsetX, "Horizontal pan in pixels")
	pf.Float64("offset-y", def.Noise.OffsetY, "Vertical pan in pixels")

	pf.Int("row-workers", def.Render.Workers, "Rows sampled concurrently per frame (default: number of CPUs)")
	pf.Float64("render-scale", def.Render.RenderScale, "Sample at this fraction of the frame size and upscale (0..1]")
	pf.Float64("blur", def.Render.Blur, "Gaussian blur sigma applied after upscaling")
	pf.String("png-compression", def.Render.PNGCompression, "PNG compression (default, speed, best, none)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"verbose", "verbose"},
		{"log-format", "log-format"},
		{"gradient", "gradient"},
		{"lut_width", "lut-width"},
		{"width", "width"},
		{"height", "height"},
		{"noise.kind", "noise"},
		{"noise.seed", "seed"},
		{"noise.scale", "scale"},
		{"noise.frequency_offset", "frequency-offset"},
		{"noise.offset_x", "offset-x"},
		{"noise.offset_y", "offset-y"},
		{"render.workers", "row-workers"},
		{"render.render_scale", "render-scale"},
		{"render.blur", "blur"},
		{"render.png_compression", "png-compression"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, pf.Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("NOISEGRADIENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadConfig decodes the merged flags, environment and config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
