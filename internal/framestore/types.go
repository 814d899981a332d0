// Package framestore stores rendered animation frames in a single SQLite file.
package framestore

import (
	"strconv"
	"time"
)

// Metadata describes how an archive was rendered.
type Metadata struct {
	Name        string  `json:"name,omitempty"`
	Gradient    string  `json:"gradient,omitempty"` // CSS linear-gradient source
	NoiseKind   string  `json:"noise,omitempty"`
	Description string  `json:"description,omitempty"`
	Seed        int64   `json:"seed"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	FPS         float64 `json:"fps,omitempty"`
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Gradient != "" {
		result["gradient"] = m.Gradient
	}
	if m.NoiseKind != "" {
		result["noise"] = m.NoiseKind
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	result["seed"] = strconv.FormatInt(m.Seed, 10)
	if m.Width > 0 {
		result["width"] = strconv.Itoa(m.Width)
	}
	if m.Height > 0 {
		result["height"] = strconv.Itoa(m.Height)
	}
	if m.FPS > 0 {
		result["fps"] = strconv.FormatFloat(m.FPS, 'f', -1, 64)
	}
	result["format"] = "png"

	return result
}

// metadataFromMap is the inverse of ToMap. Malformed numbers are left zero.
func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{
		Name:        values["name"],
		Gradient:    values["gradient"],
		NoiseKind:   values["noise"],
		Description: values["description"],
	}
	if v, err := strconv.ParseInt(values["seed"], 10, 64); err == nil {
		meta.Seed = v
	}
	if v, err := strconv.Atoi(values["width"]); err == nil {
		meta.Width = v
	}
	if v, err := strconv.Atoi(values["height"]); err == nil {
		meta.Height = v
	}
	if v, err := strconv.ParseFloat(values["fps"], 64); err == nil {
		meta.FPS = v
	}
	return meta
}

// FrameInfo identifies a stored frame.
type FrameInfo struct {
	Index   int           `json:"index"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

func durationToMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
