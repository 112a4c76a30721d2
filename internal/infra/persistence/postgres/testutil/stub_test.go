package testutil

import (
	"context"
	"testing"
)

func TestStubUpsertAndSelect(t *testing.T) {
	db, conn := NewStubDB()
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, "meta", []byte(`{"revision":1}`)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, "meta", []byte(`{"revision":2}`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(conn.Tables["state"]) != 1 {
		t.Fatalf("expected upsert to replace the row, got %d rows", len(conn.Tables["state"]))
	}

	var payload []byte
	row := db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = 'meta'`)
	if err := row.Scan(&payload); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if string(payload) != `{"revision":2}` {
		t.Fatalf("unexpected payload %s", payload)
	}

	payload, ok := conn.Bucket("meta")
	if !ok || string(payload) != `{"revision":2}` {
		t.Fatalf("expected Bucket helper to read the stored payload, got %q %v", payload, ok)
	}
	conn.SetBucket("animals", []byte(`{}`))
	if _, ok := conn.Bucket("animals"); !ok {
		t.Fatalf("expected SetBucket to seed the row")
	}
}
