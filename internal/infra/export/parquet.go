package export

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"

	"github.com/coachpo/shimmer/internal/domain/schema"
)

// PointRow is the flattened parquet layout of a data point. Body holds the
// measure encoded as JSON.
type PointRow struct {
	ID         string `parquet:"id"`
	UserID     string `parquet:"user_id,optional"`
	SchemaID   string `parquet:"schema_id"`
	SourceName string `parquet:"source_name"`
	Modality   string `parquet:"modality,optional"`
	ExternalID string `parquet:"external_id,optional"`
	CreatedMs  int64  `parquet:"creation_ms"`
	StartMs    int64  `parquet:"start_ms,optional"`
	EndMs      int64  `parquet:"end_ms,optional"`
	Body       string `parquet:"body"`
}

// RawRow holds one unnormalized provider document.
type RawRow struct {
	Shim     string `parquet:"shim"`
	Index    int64  `parquet:"index"`
	Document string `parquet:"document"`
}

// ParquetSaver writes data points, or raw documents when nothing was normalized.
type ParquetSaver struct{}

func (s *ParquetSaver) Extension() string { return ".parquet" }

func (s *ParquetSaver) Save(doc Document, path string) error {
	if len(doc.Result.DataPoints) == 0 && len(doc.Result.Raw) > 0 {
		rows, err := rawRows(doc)
		if err != nil {
			return err
		}
		return parquet.WriteFile(path, rows)
	}
	rows, err := PointRows(doc.Result.DataPoints)
	if err != nil {
		return err
	}
	return parquet.WriteFile(path, rows)
}

func (s *ParquetSaver) Encode(w io.Writer, doc Document) error {
	if len(doc.Result.DataPoints) == 0 && len(doc.Result.Raw) > 0 {
		rows, err := rawRows(doc)
		if err != nil {
			return err
		}
		return parquet.Write(w, rows)
	}
	rows, err := PointRows(doc.Result.DataPoints)
	if err != nil {
		return err
	}
	return parquet.Write(w, rows)
}

// PointRows flattens data points into parquet rows.
func PointRows(points []schema.DataPoint) ([]PointRow, error) {
	rows := make([]PointRow, 0, len(points))
	for _, p := range points {
		body, err := json.Marshal(p.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body of %s: %w", p.Header.ID, err)
		}
		row := PointRow{
			ID:         p.Header.ID,
			UserID:     p.Header.UserID,
			SchemaID:   p.Header.BodySchemaID.String(),
			SourceName: p.Header.Provenance.SourceName,
			Modality:   string(p.Header.Provenance.Modality),
			CreatedMs:  p.Header.CreationTime.UnixMilli(),
			Body:       string(body),
		}
		if id, ok := p.ExternalID(); ok {
			row.ExternalID = id
		}
		row.StartMs, row.EndMs = frameMillis(p.Body)
		rows = append(rows, row)
	}
	return rows, nil
}

func frameMillis(m schema.Measure) (int64, int64) {
	frame, ok := m.EffectiveTimeFrame()
	if !ok {
		return 0, 0
	}
	if at, ok := frame.Instant(); ok {
		return at.UnixMilli(), at.UnixMilli()
	}
	interval, ok := frame.Interval()
	if !ok {
		return 0, 0
	}
	var start, end int64
	if t, ok := interval.Start(); ok {
		start = t.UnixMilli()
	}
	if t, ok := interval.End(); ok {
		end = t.UnixMilli()
	}
	return start, end
}

func rawRows(doc Document) ([]RawRow, error) {
	rows := make([]RawRow, 0, len(doc.Result.Raw))
	for i, node := range doc.Result.Raw {
		raw, err := node.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode raw document %d: %w", i, err)
		}
		rows = append(rows, RawRow{Shim: doc.Shim, Index: int64(i), Document: string(raw)})
	}
	return rows, nil
}
