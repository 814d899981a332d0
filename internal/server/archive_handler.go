package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chirender "github.com/go-chi/render"

	"github.com/MeKo-Tech/noisegradient/internal/framestore"
)

// ArchiveHandler serves frames from a frame archive.
type ArchiveHandler struct {
	reader       *framestore.Reader
	logger       *slog.Logger
	cacheControl string
}

// ArchiveConfig configures the archive handler.
type ArchiveConfig struct {
	Path         string
	CacheControl string
}

// ArchiveInfo is the JSON body of the archive index.
type ArchiveInfo struct {
	Metadata framestore.Metadata    `json:"metadata"`
	Frames   []framestore.FrameInfo `json:"frames"`
}

// NewArchiveHandler opens the archive at cfg.Path.
func NewArchiveHandler(cfg ArchiveConfig, logger *slog.Logger) (*ArchiveHandler, error) {
	reader, err := framestore.OpenReader(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame archive: %w", err)
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "public, max-age=3600"
	}

	return &ArchiveHandler{
		reader:       reader,
		logger:       logger,
		cacheControl: cfg.CacheControl,
	}, nil
}

// Routes mounts the archive index at / and frames at /{index}.png.
func (h *ArchiveHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.serveIndex)
	r.Get("/{frame}", h.serveFrame)
	return r
}

func (h *ArchiveHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	meta, err := h.reader.Metadata()
	if err != nil {
		h.log().Error("Failed to read archive metadata", "error", err)
		http.Error(w, "failed to read archive", http.StatusInternalServerError)
		return
	}
	frames, err := h.reader.Frames()
	if err != nil {
		h.log().Error("Failed to list archive frames", "error", err)
		http.Error(w, "failed to read archive", http.StatusInternalServerError)
		return
	}
	chirender.JSON(w, r, ArchiveInfo{Metadata: meta, Frames: frames})
}

func (h *ArchiveHandler) serveFrame(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "frame")
	if !strings.HasSuffix(name, ".png") {
		http.NotFound(w, r)
		return
	}
	index, err := strconv.Atoi(strings.TrimSuffix(name, ".png"))
	if err != nil || index < 0 {
		http.NotFound(w, r)
		return
	}

	data, _, err := h.reader.ReadFrame(index)
	if errors.Is(err, framestore.ErrFrameNotFound) {
		http.Error(w, "Frame not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log().Error("Failed to read frame", "frame", index, "error", err)
		http.Error(w, "failed to read frame", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

// Close closes the archive reader.
func (h *ArchiveHandler) Close() error {
	return h.reader.Close()
}

func (h *ArchiveHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
