// Package export writes retrieval results to disk or a stream.
package export

import (
	"io"
	"strings"
	"time"

	"github.com/coachpo/shimmer/internal/retrieval"
)

// Document is one retrieval result ready for output.
type Document struct {
	Shim      string
	TimeStamp time.Time
	Result    retrieval.ResultSet
}

// Saver persists a Document.
type Saver interface {
	Save(doc Document, path string) error
	Encode(w io.Writer, doc Document) error
	Extension() string
}

// NewSaver returns the saver for format, or nil when the format is unsupported.
func NewSaver(format string) Saver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return &JSONSaver{Indent: true}
	case "parquet":
		return &ParquetSaver{}
	default:
		return nil
	}
}
