package framestore

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"
)

// ErrFrameNotFound is returned when an archive has no frame at an index.
var ErrFrameNotFound = errors.New("frame not found")

// Reader reads frames from an archive.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens an archive for reading.
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='frames'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain frames table")
	}

	return &Reader{db: db, path: path}, nil
}

// ReadFrame returns the PNG data and timestamp of one frame.
func (r *Reader) ReadFrame(index int) ([]byte, time.Duration, error) {
	var (
		data []byte
		ms   float64
	)
	err := r.db.QueryRow(
		"SELECT frame_data, elapsed_ms FROM frames WHERE frame_index=?", index,
	).Scan(&data, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%w: %d", ErrFrameNotFound, index)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query frame: %w", err)
	}
	return data, msToDuration(ms), nil
}

// DecodeFrame reads and decodes one frame.
func (r *Reader) DecodeFrame(index int) (image.Image, time.Duration, error) {
	data, elapsed, err := r.ReadFrame(index)
	if err != nil {
		return nil, 0, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode frame %d: %w", index, err)
	}
	return img, elapsed, nil
}

// Frames lists the stored frames in index order.
func (r *Reader) Frames() ([]FrameInfo, error) {
	rows, err := r.db.Query("SELECT frame_index, elapsed_ms FROM frames ORDER BY frame_index")
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var out []FrameInfo
	for rows.Next() {
		var (
			idx int
			ms  float64
		)
		if err := rows.Scan(&idx, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan frame row: %w", err)
		}
		out = append(out, FrameInfo{Index: idx, Elapsed: msToDuration(ms)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating frames: %w", err)
	}
	return out, nil
}

// Count returns the number of stored frames.
func (r *Reader) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM frames").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return n, nil
}

// Metadata reads the archive metadata.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value.String
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}
	return metadataFromMap(values), nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
