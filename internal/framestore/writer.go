package framestore

import (
	"bytes"
	"database/sql"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of frames to buffer before flushing to the database.
	DefaultBatchSize = 16
)

// FrameEntry is a single encoded frame waiting to be written.
type FrameEntry struct {
	Data    []byte // PNG data
	Index   int
	Elapsed time.Duration
}

// Writer writes frames to an archive. It is safe for concurrent use and
// accepts frames in any order; a frame index written twice keeps the last
// data.
type Writer struct {
	db          *sql.DB
	path        string
	batch       []FrameEntry
	metadata    Metadata
	batchSize   int
	compression png.CompressionLevel
	mu          sync.Mutex
}

// New creates a frame archive at path, or reuses the schema of an existing one.
func New(path string, metadata Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := insertMetadata(db, metadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Writer{
		db:          db,
		path:        path,
		batch:       make([]FrameEntry, 0, DefaultBatchSize),
		batchSize:   DefaultBatchSize,
		metadata:    metadata,
		compression: png.DefaultCompression,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL PRIMARY KEY,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS frames (
			frame_index INTEGER PRIMARY KEY,
			elapsed_ms REAL NOT NULL,
			frame_data BLOB NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	if _, err := db.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := db.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}
	return nil
}

// SetCompression sets the PNG level used by WriteFrame.
func (w *Writer) SetCompression(level png.CompressionLevel) {
	w.mu.Lock()
	w.compression = level
	w.mu.Unlock()
}

// WriteFrame encodes img as PNG and queues it. The returned location is
// "<path>#<index>".
func (w *Writer) WriteFrame(index int, elapsed time.Duration, img image.Image) (string, error) {
	w.mu.Lock()
	enc := png.Encoder{CompressionLevel: w.compression}
	w.mu.Unlock()

	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode frame %d: %w", index, err)
	}
	if err := w.WriteFrameData(index, elapsed, buf.Bytes()); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s#%d", w.path, index), nil
}

// WriteFrameData adds already encoded PNG data to the batch. When the batch
// is full, it is flushed.
func (w *Writer) WriteFrameData(index int, elapsed time.Duration, pngData []byte) error {
	if index < 0 {
		return fmt.Errorf("invalid frame index %d", index)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, FrameEntry{Index: index, Elapsed: elapsed, Data: pngData})
	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// Flush writes any buffered frames to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// flushLocked writes buffered frames in one transaction. Must be called with lock held.
func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO frames (frame_index, elapsed_ms, frame_data) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range w.batch {
		if _, err := stmt.Exec(f.Index, durationToMs(f.Elapsed), f.Data); err != nil {
			return fmt.Errorf("failed to insert frame %d: %w", f.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.batch = w.batch[:0]
	return nil
}

// Close flushes any remaining frames and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
