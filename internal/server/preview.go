// Package server serves live previews of the animated gradient field.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	chirender "github.com/go-chi/render"

	"github.com/MeKo-Tech/noisegradient/internal/config"
	"github.com/MeKo-Tech/noisegradient/internal/gradient"
	"github.com/MeKo-Tech/noisegradient/internal/noise"
	"github.com/MeKo-Tech/noisegradient/internal/render"
)

// PreviewConfig tunes the HTTP side of the preview server.
type PreviewConfig struct {
	CacheControl         string
	PNGCompression       string
	MaxConcurrentRenders int
	RenderTimeout        time.Duration
	// MaxDimension caps the width and height a request may ask for.
	MaxDimension int
}

// Preview renders frames on request. Its clocks run on wall time: every frame
// request advances them to the current instant before sampling.
type Preview struct {
	logger   *slog.Logger
	now      func() time.Duration
	sem      chan struct{}
	cache    *gradient.Cache
	clocks   *noise.Clocks
	field    *noise.Field
	compress png.CompressionLevel
	conf     config.Config
	cfg      PreviewConfig
	mu       sync.Mutex
	mounts   map[string]http.Handler

	// overrides holds tables for ?gradient= requests so they never evict
	// the configured gradient's table.
	overrides *gradient.Cache

	activeRenders atomic.Int32
	queuedRenders atomic.Int32
	totalRendered atomic.Int64
	totalFailed   atomic.Int64
}

// Status is the JSON body of /status.
type Status struct {
	Render RenderStatus        `json:"render"`
	Clocks []ClockStatus       `json:"clocks"`
	Cache  gradient.CacheStats `json:"cache"`

	// Overrides counts tables built for per-request gradients.
	Overrides gradient.CacheStats `json:"overrides"`
}

// RenderStatus contains current render counters.
type RenderStatus struct {
	ActiveRenders int   `json:"active_renders"`
	QueuedRenders int   `json:"queued_renders"`
	TotalRendered int64 `json:"total_rendered"`
	TotalFailed   int64 `json:"total_failed"`
	MaxConcurrent int   `json:"max_concurrent"`
}

// ClockStatus describes one clock channel.
type ClockStatus struct {
	Name      string  `json:"name"`
	Seed      float64 `json:"seed"`
	Speed     float64 `json:"speed"`
	ElapsedMs float64 `json:"elapsed_ms"`
	Value     float64 `json:"value"`
}

// GradientResponse is the JSON body of /gradient.
type GradientResponse struct {
	CSS   string               `json:"css"`
	Stops []gradient.ColorStop `json:"stops"`
	Angle float64              `json:"angle"`
	Hash  string               `json:"hash"`
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// NewPreview builds a preview server for conf.
func NewPreview(conf config.Config, cfg PreviewConfig, logger *slog.Logger) (*Preview, error) {
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = 1
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = 4096
	}
	level, err := render.ParseCompression(cfg.PNGCompression)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	p := &Preview{
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Duration { return time.Since(start) },
		sem:      make(chan struct{}, cfg.MaxConcurrentRenders),
		compress: level,
	}
	if err := p.Reload(conf); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload swaps in a new configuration. Clocks keep running when the channel
// set is unchanged: speeds are updated and channels whose configured seed
// changed restart from the new seed. Otherwise the clocks are rebuilt from
// the new channel list.
func (p *Preview) Reload(conf config.Config) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	field, err := conf.Field()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cache, overrides := p.cache, p.overrides
	if cache == nil || cache.Width() != conf.LUTWidth {
		cache = gradient.NewCache(conf.LUTWidth)
		overrides = gradient.NewCache(conf.LUTWidth)
	}
	if _, _, err := cache.Get(conf.Gradient); err != nil {
		return err
	}

	if p.clocks != nil && sameChannels(p.clocks, conf.Channels) {
		now := p.now()
		p.clocks.Tick(now)
		prev := p.conf.Seeds()
		for _, cc := range conf.Channels {
			ch, _ := p.clocks.Channel(cc.Name)
			ch.Speed = cc.Speed
			if cc.Seed != prev[cc.Name] {
				ch.Reset(cc.Seed)
				ch.Start(now)
			}
		}
	} else {
		clocks, err := conf.Clocks()
		if err != nil {
			return err
		}
		clocks.Start(p.now())
		p.clocks = clocks
	}

	p.conf = conf
	p.field = field
	p.cache = cache
	p.overrides = overrides
	p.log().Info("preview configuration loaded",
		"gradient", conf.Gradient,
		"noise", conf.Noise.Kind,
		"channels", p.clocks.Names(),
	)
	return nil
}

func sameChannels(c *noise.Clocks, chans []config.ChannelConfig) bool {
	names := c.Names()
	if len(names) != len(chans) {
		return false
	}
	for i, ch := range chans {
		if names[i] != ch.Name {
			return false
		}
	}
	return true
}

// Handler returns the preview router.
func (p *Preview) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(p.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/frame.png", p.serveFrame)
	r.Get("/lut.png", p.serveLUT)
	r.Get("/gradient", p.serveGradient)
	r.Get("/status", p.serveStatus)
	r.Get("/status/stream", p.serveStatusStream)
	r.Route("/clocks", func(r chi.Router) {
		r.Get("/", p.serveClocks)
		r.Post("/reset", p.resetClocks)
		r.Post("/{name}/speed", p.setSpeed)
	})
	for pattern, h := range p.mounts {
		r.Mount(pattern, h)
	}
	return r
}

// Mount attaches an additional handler under pattern. It must be called
// before Handler.
func (p *Preview) Mount(pattern string, h http.Handler) {
	if p.mounts == nil {
		p.mounts = make(map[string]http.Handler)
	}
	p.mounts[pattern] = h
}

func (p *Preview) serveFrame(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	conf, field := p.conf, p.field
	p.mu.Unlock()

	q := r.URL.Query()
	params := field.Params()
	var err error
	if params.Scale, err = floatParam(q, "scale", params.Scale, noise.SpatialScale); err != nil {
		p.renderError(w, r, http.StatusBadRequest, err)
		return
	}
	if params.FrequencyOffset, err = floatParam(q, "f", params.FrequencyOffset, nil); err != nil {
		p.renderError(w, r, http.StatusBadRequest, err)
		return
	}
	if params.OffsetX, err = floatParam(q, "x", params.OffsetX, nil); err != nil {
		p.renderError(w, r, http.StatusBadRequest, err)
		return
	}
	if params.OffsetY, err = floatParam(q, "y", params.OffsetY, nil); err != nil {
		p.renderError(w, r, http.StatusBadRequest, err)
		return
	}
	width, err := p.dimParam(q.Get("width"), conf.Width)
	if err != nil {
		p.renderError(w, r, http.StatusBadRequest, err)
		return
	}
	height, err := p.dimParam(q.Get("height"), conf.Height)
	if err != nil {
		p.renderError(w, r, http.StatusBadRequest, err)
		return
	}

	lut, err := p.lookupTable(q.Get("gradient"))
	if err != nil {
		p.renderError(w, r, statusFor(err), err)
		return
	}
	opts := conf.RenderOptions()
	opts.Width, opts.Height = width, height
	opts.Workers = render.RowWorkers(p.cfg.MaxConcurrentRenders, opts.Workers)
	rnd, err := render.New(field.WithParams(params), lut, opts, p.logger)
	if err != nil {
		p.renderError(w, r, http.StatusBadRequest, err)
		return
	}

	p.queuedRenders.Add(1)
	select {
	case p.sem <- struct{}{}:
		p.queuedRenders.Add(-1)
		defer func() { <-p.sem }()
	case <-r.Context().Done():
		p.queuedRenders.Add(-1)
		p.renderError(w, r, http.StatusRequestTimeout, errors.New("request cancelled"))
		return
	}

	snap := p.tick()

	ctx, cancel := context.WithTimeout(r.Context(), p.cfg.RenderTimeout)
	defer cancel()

	p.activeRenders.Add(1)
	img, err := rnd.Render(ctx, snap)
	p.activeRenders.Add(-1)
	if err != nil {
		p.totalFailed.Add(1)
		p.renderError(w, r, http.StatusInternalServerError, fmt.Errorf("render frame: %w", err))
		return
	}
	data, err := render.EncodePNG(img, p.compress)
	if err != nil {
		p.totalFailed.Add(1)
		p.renderError(w, r, http.StatusInternalServerError, err)
		return
	}
	p.totalRendered.Add(1)
	p.writePNG(w, data)
}

// lookupTable returns the table for a per-request gradient, or for the
// configured gradient when src is empty or equal to it.
func (p *Preview) lookupTable(src string) (*gradient.LookupTable, error) {
	p.mu.Lock()
	conf, cache, overrides := p.conf, p.cache, p.overrides
	p.mu.Unlock()

	if src == "" || src == conf.Gradient {
		lut, _, err := cache.Get(conf.Gradient)
		return lut, err
	}
	lut, _, err := overrides.Get(src)
	return lut, err
}

// tick advances the clocks to now and returns their snapshot.
func (p *Preview) tick() noise.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clocks.Tick(p.now())
	return p.clocks.Snapshot()
}

func (p *Preview) serveLUT(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	conf := p.conf
	p.mu.Unlock()

	q := r.URL.Query()
	height, err := p.dimParam(q.Get("height"), 2)
	if err != nil {
		p.renderError(w, r, http.StatusBadRequest, err)
		return
	}

	var lut *gradient.LookupTable
	if ws := q.Get("width"); ws != "" {
		width, err := p.dimParam(ws, conf.LUTWidth)
		if err != nil {
			p.renderError(w, r, http.StatusBadRequest, err)
			return
		}
		src := q.Get("gradient")
		if src == "" {
			src = conf.Gradient
		}
		lut, err = gradient.RasterizeString(src, width)
		if err != nil {
			p.renderError(w, r, statusFor(err), err)
			return
		}
	} else {
		if lut, err = p.lookupTable(q.Get("gradient")); err != nil {
			p.renderError(w, r, statusFor(err), err)
			return
		}
	}

	data, err := render.EncodePNG(lut.Image(height), p.compress)
	if err != nil {
		p.renderError(w, r, http.StatusInternalServerError, err)
		return
	}
	p.writePNG(w, data)
}

func (p *Preview) serveGradient(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("gradient")
	if src == "" {
		p.mu.Lock()
		src = p.conf.Gradient
		p.mu.Unlock()
	}
	g, err := gradient.Parse(src)
	if err != nil {
		p.renderError(w, r, statusFor(err), err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	chirender.Status(r, http.StatusOK)
	chirender.JSON(w, r, GradientResponse{
		CSS:   g.String(),
		Stops: g.Stops,
		Angle: g.Angle,
		Hash:  strconv.FormatUint(g.Hash(), 16),
	})
}

// Status returns the current counters, cache stats and clock state.
func (p *Preview) Status() Status {
	p.mu.Lock()
	clocks := p.clockStatusLocked()
	cache := p.cache.Stats()
	overrides := p.overrides.Stats()
	p.mu.Unlock()

	return Status{
		Render: RenderStatus{
			ActiveRenders: int(p.activeRenders.Load()),
			QueuedRenders: int(p.queuedRenders.Load()),
			TotalRendered: p.totalRendered.Load(),
			TotalFailed:   p.totalFailed.Load(),
			MaxConcurrent: p.cfg.MaxConcurrentRenders,
		},
		Clocks:    clocks,
		Cache:     cache,
		Overrides: overrides,
	}
}

func (p *Preview) clockStatusLocked() []ClockStatus {
	names := p.clocks.Names()
	out := make([]ClockStatus, 0, len(names))
	for _, name := range names {
		ch, _ := p.clocks.Channel(name)
		out = append(out, ClockStatus{
			Name:      ch.Name,
			Seed:      ch.Seed,
			Speed:     ch.Speed,
			ElapsedMs: ch.ElapsedMs,
			Value:     ch.Value(),
		})
	}
	return out
}

func (p *Preview) serveStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	chirender.Status(r, http.StatusOK)
	chirender.JSON(w, r, p.Status())
}

// serveStatusStream pushes the status as server-sent events.
func (p *Preview) serveStatusStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		p.renderError(w, r, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	p.sendStatusEvent(w, flusher)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			p.sendStatusEvent(w, flusher)
		}
	}
}

func (p *Preview) sendStatusEvent(w http.ResponseWriter, flusher http.Flusher) {
	data, err := json.Marshal(p.Status())
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (p *Preview) serveClocks(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.clocks.Tick(p.now())
	clocks := p.clockStatusLocked()
	p.mu.Unlock()

	chirender.Status(r, http.StatusOK)
	chirender.JSON(w, r, clocks)
}

func (p *Preview) setSpeed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	speed, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
	if err != nil {
		p.renderError(w, r, http.StatusBadRequest, fmt.Errorf("invalid speed value %q", r.URL.Query().Get("value")))
		return
	}

	p.mu.Lock()
	// Accumulate the time spent at the old speed first.
	p.clocks.Tick(p.now())
	err = p.clocks.SetSpeed(name, speed)
	clocks := p.clockStatusLocked()
	p.mu.Unlock()
	if err != nil {
		p.renderError(w, r, http.StatusNotFound, err)
		return
	}

	p.log().Info("clock speed changed", "channel", name, "speed", speed)
	chirender.Status(r, http.StatusOK)
	chirender.JSON(w, r, clocks)
}

func (p *Preview) resetClocks(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.clocks.Reset(p.conf.Seeds())
	p.clocks.Start(p.now())
	clocks := p.clockStatusLocked()
	p.mu.Unlock()

	chirender.Status(r, http.StatusOK)
	chirender.JSON(w, r, clocks)
}

func (p *Preview) writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", p.cfg.CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (p *Preview) renderError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		p.log().Error("preview request failed", "path", r.URL.Path, "status", status, "error", err)
		msg = http.StatusText(status)
	}
	chirender.Status(r, status)
	chirender.JSON(w, r, ErrorResponse{Error: msg, Code: status})
}

// statusFor maps gradient and configuration errors to 400.
func statusFor(err error) int {
	var (
		parseErr *gradient.ParseError
		confErr  *gradient.ConfigurationError
		colorErr *gradient.ColorError
		noiseErr *noise.ConfigurationError
	)
	switch {
	case errors.As(err, &parseErr), errors.As(err, &confErr), errors.As(err, &colorErr), errors.As(err, &noiseErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func floatParam(q map[string][]string, key string, def float64, conv func(float64) float64) (float64, error) {
	vals := q[key]
	if len(vals) == 0 || vals[0] == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(vals[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, vals[0])
	}
	if conv != nil {
		v = conv(v)
	}
	return v, nil
}

func (p *Preview) dimParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 || v > p.cfg.MaxDimension {
		return 0, fmt.Errorf("invalid dimension %q (want 1..%d)", s, p.cfg.MaxDimension)
	}
	return v, nil
}

func (p *Preview) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		p.log().Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (p *Preview) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}
