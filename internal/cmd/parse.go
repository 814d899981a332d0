package cmd

import (
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisegradient/internal/gradient"
)

var parseCmd = &cobra.Command{
	Use:   "parse [gradient]",
	Short: "Print a parsed gradient as JSON",
	Long: `Parse a CSS linear-gradient string and print its angle, stops, resolved
stop positions and resolved colors. Without an argument the configured
gradient is parsed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

type parsedStop struct {
	Position *float64 `json:"position,omitempty"`
	Color    string   `json:"color"`
	RGBA     string   `json:"rgba"`
	Resolved float64  `json:"resolved_position"`
}

type parsedGradient struct {
	CSS   string       `json:"css"`
	Hash  string       `json:"hash"`
	Stops []parsedStop `json:"stops"`
	Angle float64      `json:"angle"`
}

func runParse(cmd *cobra.Command, args []string) error {
	src := viper.GetString("gradient")
	if len(args) == 1 {
		src = args[0]
	}
	return writeParsed(cmd.OutOrStdout(), src)
}

func writeParsed(w io.Writer, src string) error {
	g, err := gradient.Parse(src)
	if err != nil {
		return err
	}

	positions := gradient.ResolvePositions(g.Stops)
	out := parsedGradient{
		CSS:   g.String(),
		Hash:  strconv.FormatUint(g.Hash(), 16),
		Angle: g.Angle,
		Stops: make([]parsedStop, len(g.Stops)),
	}
	for i, s := range g.Stops {
		c, err := gradient.ParseColor(s.Color)
		if err != nil {
			return fmt.Errorf("stop %d: %w", i, err)
		}
		out.Stops[i] = parsedStop{
			Position: s.Position,
			Color:    s.Color,
			RGBA:     hexRGBA(c),
			Resolved: positions[i],
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func hexRGBA(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
