package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

var logger *slog.Logger

// newLogger builds a slog logger backed by a charmbracelet/log handler.
func newLogger(w io.Writer, verbose bool, format string) (*slog.Logger, error) {
	var formatter log.Formatter
	switch strings.ToLower(format) {
	case "", "text":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q (want text, json or logfmt)", format)
	}

	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	return slog.New(handler), nil
}

func initLogging() {
	l, err := newLogger(os.Stderr, viper.GetBool("verbose"), viper.GetString("log-format"))
	if err != nil {
		l, _ = newLogger(os.Stderr, viper.GetBool("verbose"), "text")
		l.Warn("falling back to text logs", "error", err)
	}
	logger = l
	slog.SetDefault(l)
}
