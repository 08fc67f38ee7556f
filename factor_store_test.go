package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestFactorStore(t *testing.T) (*factorStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newFactorStore(client, "amf"), mr
}

func TestFactorStoreRoundTrip(t *testing.T) {
	store, _ := newTestFactorStore(t)
	ctx := context.Background()

	record := &factorRecord{
		FactorID:  "factor-1",
		Name:      "Phone",
		State:     FactorPendingVerification,
		CreatedAt: time.Now().Unix(),
	}
	if err := store.Save(ctx, "id-1", record); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *record {
		t.Fatalf("got %+v, want %+v", got, record)
	}
}

func TestFactorStoreMissing(t *testing.T) {
	store, _ := newTestFactorStore(t)

	_, err := store.Get(context.Background(), "nobody")
	if !errors.Is(err, errFactorRecordNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestFactorStoreDeleteIdempotent(t *testing.T) {
	store, _ := newTestFactorStore(t)
	ctx := context.Background()

	record := &factorRecord{FactorID: "factor-1", Name: "Phone", State: FactorActive, CreatedAt: 1}
	if err := store.Save(ctx, "id-1", record); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "id-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "id-1"); err != nil {
		t.Fatalf("repeated delete: %v", err)
	}
	if _, err := store.Get(ctx, "id-1"); !errors.Is(err, errFactorRecordNotFound) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestFactorRecordDecodeRejectsCorruptData(t *testing.T) {
	record := &factorRecord{FactorID: "factor-1", Name: "Phone", State: FactorActive, CreatedAt: 42}
	encoded, err := encodeFactorRecord(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := [][]byte{
		nil,
		{},
		{0xFF},
		encoded[:1],
		encoded[:len(encoded)/2],
		append([]byte{2}, encoded[1:]...),
	}
	for i, data := range cases {
		if _, err := decodeFactorRecord(data); !errors.Is(err, errFactorRecordCorrupt) {
			t.Fatalf("case %d: expected corrupt error, got %v", i, err)
		}
	}
}

func TestFactorRecordToFactor(t *testing.T) {
	record := &factorRecord{FactorID: "factor-1", Name: "Phone", State: FactorActive, CreatedAt: 1700000000}
	factor := record.toFactor()
	if factor.CreatedAt.Unix() != 1700000000 {
		t.Fatalf("created at = %v", factor.CreatedAt)
	}
	if factor.State != FactorActive || factor.FactorID != "factor-1" {
		t.Fatalf("unexpected factor %+v", factor)
	}

	var nilRecord *factorRecord
	if nilRecord.toFactor().State != FactorUnenrolled {
		t.Fatal("nil record must read as unenrolled")
	}
}
