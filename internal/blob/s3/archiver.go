package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

const (
	defaultBatchSize    = 1000
	maxPositionSnapshot = 10000
	jsonlContentType    = "application/x-ndjson"
)

// Uploader is the write side the archiver needs. *Writer satisfies it.
type Uploader interface {
	domain.BlobWriter
	PutMultipart(ctx context.Context, path string, data io.Reader, contentType string, partSize int64) error
}

// AuditSource reads and prunes archived audit rows.
type AuditSource interface {
	domain.AuditArchiveStore
}

// PositionSource lists closed positions.
type PositionSource interface {
	ListClosedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Position, error)
}

// Archiver implements domain.Archiver. Audit entries are uploaded and then
// deleted from the primary store; closed positions are only copied, since
// the stats and dashboard read them.
type Archiver struct {
	uploader  Uploader
	audit     AuditSource
	positions PositionSource
	batchSize int
}

// NewArchiver creates an Archiver. positions may be nil.
func NewArchiver(uploader Uploader, audit AuditSource, positions PositionSource) *Archiver {
	return &Archiver{
		uploader:  uploader,
		audit:     audit,
		positions: positions,
		batchSize: defaultBatchSize,
	}
}

var (
	_ domain.Archiver   = (*Archiver)(nil)
	_ domain.BlobWriter = (*Writer)(nil)
	_ Uploader          = (*Writer)(nil)
)

// ArchiveAudit ships audit entries created before the cutoff in batches. A
// batch is deleted only after its upload succeeded, and only up to the
// highest id it contained.
func (a *Archiver) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for {
		entries, err := a.audit.ListBefore(ctx, before, a.batchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive audit query: %w", err)
		}
		if len(entries) == 0 {
			return total, nil
		}

		buf, err := marshalJSONL(entries)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive audit marshal: %w", err)
		}
		path := archivePath("audit", entries[0].CreatedAt)
		if err := a.upload(ctx, path, buf); err != nil {
			return total, fmt.Errorf("s3blob: archive audit upload: %w", err)
		}

		var maxID int64
		for _, e := range entries {
			if e.ID > maxID {
				maxID = e.ID
			}
		}
		if _, err := a.audit.DeleteBefore(ctx, before, maxID); err != nil {
			return total, fmt.Errorf("s3blob: archive audit prune: %w", err)
		}
		total += int64(len(entries))

		if len(entries) < a.batchSize {
			return total, nil
		}
	}
}

// ArchivePositions writes a snapshot of positions closed before the cutoff.
// The object key is derived from the cutoff day, so repeated runs on the same
// day overwrite one snapshot.
func (a *Archiver) ArchivePositions(ctx context.Context, before time.Time) (int64, error) {
	if a.positions == nil {
		return 0, nil
	}
	positions, err := a.positions.ListClosedBefore(ctx, before, maxPositionSnapshot)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions query: %w", err)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(positions)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions marshal: %w", err)
	}
	day := before.UTC().Truncate(24 * time.Hour)
	if err := a.upload(ctx, archivePath("positions", day), buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive positions upload: %w", err)
	}
	return int64(len(positions)), nil
}

func (a *Archiver) upload(ctx context.Context, path string, buf []byte) error {
	if int64(len(buf)) > minPartSize {
		return a.uploader.PutMultipart(ctx, path, bytes.NewReader(buf), jsonlContentType, minPartSize)
	}
	return a.uploader.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
}

// archivePath builds kind/yyyy/mm/dd/<unix>.jsonl from the UTC timestamp.
//
//	audit/2026/03/01/1772366400.jsonl
func archivePath(kind string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%s/%d.jsonl", kind, at.Format("2006/01/02"), at.Unix())
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
