package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"synth-market/models"
)

var _ RawListingWriter = (*CSVWriter)(nil)

// CSVWriter writes listings to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"source", "id", "title", "price", "currency", "condition", "location", "url", "image_url", "timestamp",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRaw appends listings to the file.
func (c *CSVWriter) WriteRaw(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		if l == nil {
			continue
		}
		ts := ""
		if !l.Timestamp.IsZero() {
			ts = l.Timestamp.Format(time.RFC3339)
		}
		row := []string{
			l.Source,
			l.ID,
			l.Title,
			strconv.FormatFloat(l.Price, 'f', 2, 64),
			l.Currency,
			l.Condition,
			l.Location,
			l.URL,
			l.ImageURL,
			ts,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
