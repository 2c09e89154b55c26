package postgres

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
)

func TestNormalizeTimeFillsZero(t *testing.T) {
	if got := normalizeTime(time.Time{}); got.IsZero() {
		t.Fatalf("expected zero time to be replaced")
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	got := normalizeTime(fixed)
	if !got.Equal(fixed) {
		t.Fatalf("expected equal instant, got %v", got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	raw, err := encodeMetadata(domain.Metadata{"team": "nlp"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	meta, err := decodeMetadata(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta["team"] != "nlp" {
		t.Fatalf("unexpected metadata %v", meta)
	}
}

func TestMetadataNilAndEmpty(t *testing.T) {
	raw, err := encodeMetadata(nil)
	if err != nil {
		t.Fatalf("encode nil: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("expected empty object, got %s", raw)
	}

	meta, err := decodeMetadata(nil)
	if err != nil {
		t.Fatalf("decode nil: %v", err)
	}
	if meta == nil || len(meta) != 0 {
		t.Fatalf("expected empty metadata, got %v", meta)
	}

	meta, err = decodeMetadata([]byte("null"))
	if err != nil {
		t.Fatalf("decode null: %v", err)
	}
	if meta == nil {
		t.Fatalf("expected non-nil metadata for JSON null")
	}
}

func TestHandleNotFound(t *testing.T) {
	if err := handleNotFound(sql.ErrNoRows); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	other := errors.New("connection reset")
	if err := handleNotFound(other); !errors.Is(err, other) {
		t.Fatalf("expected passthrough, got %v", err)
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty("   "); v.Valid {
		t.Fatalf("expected invalid for blank input")
	}
	v := nullIfEmpty(" job-1 ")
	if !v.Valid || v.String != "job-1" {
		t.Fatalf("unexpected value %+v", v)
	}
}
