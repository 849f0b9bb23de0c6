package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

// Archiver uploads daily summaries and execution outcomes to blob storage.
// The primary store keeps the authoritative copy; archives exist so reports
// survive database retention windows.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveSummary uploads one daily summary as JSON at reports/YYYY-MM-DD.json.
func (a *Archiver) ArchiveSummary(ctx context.Context, summary domain.DailySummary) error {
	buf, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal summary %s: %w", summary.Date, err)
	}

	path := fmt.Sprintf("reports/%s.json", summary.Date)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive summary upload: %w", err)
	}
	return nil
}

// ArchiveExecutions serializes the day's execution outcomes to JSONL and
// uploads them at archive/executions/YYYY-MM-DD.jsonl. Empty days are
// skipped and return a zero count.
func (a *Archiver) ArchiveExecutions(ctx context.Context, day time.Time, results []domain.ExecutionResult) (int64, error) {
	if len(results) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(results)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions marshal: %w", err)
	}

	path := fmt.Sprintf("archive/executions/%s.jsonl", day.UTC().Format("2006-01-02"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive executions upload: %w", err)
	}

	return int64(len(results)), nil
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
