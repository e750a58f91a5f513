package export

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
)

// JSONSaver writes the shim response envelope.
type JSONSaver struct {
	Indent bool
}

type envelope struct {
	Shim      string `json:"shim"`
	TimeStamp int64  `json:"timeStamp"`
	Body      any    `json:"body"`
}

func (s *JSONSaver) Extension() string { return ".json" }

func (s *JSONSaver) Save(doc Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := s.Encode(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Encode writes normalized data points when present, raw provider documents otherwise.
func (s *JSONSaver) Encode(w io.Writer, doc Document) error {
	var body any = doc.Result.Raw
	if doc.Result.DataPoints != nil || doc.Result.Raw == nil {
		body = doc.Result.DataPoints
		if doc.Result.DataPoints == nil {
			body = []any{}
		}
	}
	enc := json.NewEncoder(w)
	if s.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(envelope{Shim: doc.Shim, TimeStamp: doc.TimeStamp.Unix(), Body: body}); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
