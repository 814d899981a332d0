package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisegradient/internal/gradient"
	"github.com/MeKo-Tech/noisegradient/internal/render"
)

var lutCmd = &cobra.Command{
	Use:   "lut [gradient]",
	Short: "Write a gradient lookup table as PNG",
	Long:  `Rasterize a CSS linear-gradient into a lookup-table texture (lut-width x lut-height).`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLUT,
}

func init() {
	rootCmd.AddCommand(lutCmd)

	lutCmd.Flags().StringP("out", "o", "lut.png", "Output PNG path")
	lutCmd.Flags().Int("lut-height", 2, "Height of the texture in pixels")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"lut.out", "out"},
		{"lut.height", "lut-height"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, lutCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runLUT(cmd *cobra.Command, args []string) error {
	src := viper.GetString("gradient")
	if len(args) == 1 {
		src = args[0]
	}
	return writeLUT(src, viper.GetInt("lut_width"), viper.GetInt("lut.height"),
		viper.GetString("render.png_compression"), viper.GetString("lut.out"))
}

func writeLUT(src string, width, height int, compression, out string) error {
	level, err := render.ParseCompression(compression)
	if err != nil {
		return err
	}
	lut, err := gradient.RasterizeString(src, width)
	if err != nil {
		return err
	}
	data, err := render.EncodePNG(lut.Image(height), level)
	if err != nil {
		return err
	}
	if err := render.WriteFileAtomic(out, data); err != nil {
		return err
	}

	logger.Info("Lookup table written", "path", out, "width", lut.Width, "height", max(1, height))
	return nil
}
