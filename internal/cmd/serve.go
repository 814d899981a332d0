package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisegradient/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve live previews of the animated field",
	Long: `Start an HTTP server that renders the current frame on request. The clocks
run on wall time; speeds can be changed and the clocks reset over HTTP. When a
config file is in use it is watched and reloaded on change.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Int("max-concurrent-renders", runtime.NumCPU(), "Max concurrent frame renders (default: number of CPUs)")
	serveCmd.Flags().Duration("render-timeout", 30*time.Second, "Timeout per frame render")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for served images")
	serveCmd.Flags().Int("max-dimension", 4096, "Largest width or height a request may ask for")
	serveCmd.Flags().Bool("watch-config", true, "Reload the config file when it changes")
	serveCmd.Flags().String("archive", "", "Frame archive to serve under /archive/")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.max_concurrent_renders", "max-concurrent-renders")
	mustBind("serve.render_timeout", "render-timeout")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.max_dimension", "max-dimension")
	mustBind("serve.watch_config", "watch-config")
	mustBind("serve.archive", "archive")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	addr := viper.GetString("serve.addr")
	maxConc := viper.GetInt("serve.max_concurrent_renders")

	preview, err := server.NewPreview(cfg, server.PreviewConfig{
		CacheControl:         viper.GetString("serve.cache_control"),
		PNGCompression:       cfg.Render.PNGCompression,
		MaxConcurrentRenders: maxConc,
		RenderTimeout:        viper.GetDuration("serve.render_timeout"),
		MaxDimension:         viper.GetInt("serve.max_dimension"),
	}, logger)
	if err != nil {
		return err
	}

	if path := viper.GetString("serve.archive"); path != "" {
		archive, err := server.NewArchiveHandler(server.ArchiveConfig{Path: path}, logger)
		if err != nil {
			return err
		}
		defer archive.Close()
		preview.Mount("/archive", archive.Routes())
		logger.Info("Serving frame archive", "path", path)
	}

	if viper.GetBool("serve.watch_config") && viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				return
			}
			next, err := loadConfig()
			if err != nil {
				logger.Warn("Ignoring invalid config change", "file", e.Name, "error", err)
				return
			}
			if err := preview.Reload(next); err != nil {
				logger.Warn("Failed to apply config change", "file", e.Name, "error", err)
				return
			}
			logger.Info("Config reloaded", "file", e.Name)
		})
		viper.WatchConfig()
		logger.Info("Watching config file", "file", viper.ConfigFileUsed())
	}

	srv := &http.Server{Addr: addr, Handler: preview.Handler(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("preview server listening",
			"addr", addr,
			"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
			"noise", cfg.Noise.Kind,
			"max_concurrent_renders", maxConc,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down preview server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
