package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// RunArchiver implements domain.RunArchiver: one JSONL object per run, one
// score per line.
type RunArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	prefix string
}

// NewRunArchiver creates a RunArchiver writing under prefix.
func NewRunArchiver(writer domain.BlobWriter, reader domain.BlobReader, prefix string) *RunArchiver {
	return &RunArchiver{writer: writer, reader: reader, prefix: strings.Trim(prefix, "/")}
}

// RunPath returns the object key of a run's archive:
//
//	<prefix>/runs/2024/01/02/20240102T000000.000000Z.jsonl
func (a *RunArchiver) RunPath(runAt time.Time) string {
	runAt = runAt.UTC()
	key := fmt.Sprintf("runs/%s/%s.jsonl",
		runAt.Format("2006/01/02"), runAt.Format("20060102T150405.000000Z"))
	if a.prefix == "" {
		return key
	}
	return a.prefix + "/" + key
}

// ArchiveRun uploads scores unless the run is already archived, and returns
// the object key either way.
func (a *RunArchiver) ArchiveRun(ctx context.Context, runAt time.Time, scores []domain.TrendScore) (string, error) {
	path := a.RunPath(runAt)

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive run check: %w", err)
	}
	if exists {
		return path, nil
	}

	buf, err := marshalJSONL(scores)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive run marshal: %w", err)
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType); err != nil {
		return "", fmt.Errorf("s3blob: archive run upload: %w", err)
	}
	return path, nil
}

// LoadRun reads an archived run back.
func (a *RunArchiver) LoadRun(ctx context.Context, runAt time.Time) ([]domain.TrendScore, error) {
	body, err := a.reader.Get(ctx, a.RunPath(runAt))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var scores []domain.TrendScore
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var s domain.TrendScore
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, fmt.Errorf("s3blob: decode archived score: %w", err)
		}
		scores = append(scores, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("s3blob: read archived run: %w", err)
	}
	return scores, nil
}

// marshalJSONL encodes records as newline-delimited JSON.
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

var _ domain.RunArchiver = (*RunArchiver)(nil)
