package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"sheltercore/internal/blob/core"
)

func TestPutGetDeleteList(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.Put(ctx, "animals/1/a.jpg", strings.NewReader("one"), core.PutOptions{ContentType: "image/jpeg"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "animals/1/a.jpg", strings.NewReader("two"), core.PutOptions{}); err == nil {
		t.Fatalf("expected create-only put to reject duplicates")
	}
	if _, err := store.Put(ctx, "animals/2/b.jpg", strings.NewReader("two"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	info, rc, err := store.Get(ctx, "animals/1/a.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "one" || info.ContentType != "image/jpeg" {
		t.Fatalf("unexpected blob %q %+v", data, info)
	}

	infos, err := store.List(ctx, "animals/")
	if err != nil || len(infos) != 2 {
		t.Fatalf("list: %v %+v", err, infos)
	}
	if infos[0].Key != "animals/1/a.jpg" {
		t.Fatalf("expected key-ordered listing, got %+v", infos)
	}

	removed, err := store.Delete(ctx, "animals/1/a.jpg")
	if err != nil || !removed {
		t.Fatalf("delete: %v %v", removed, err)
	}
	if _, _, err := store.Get(ctx, "animals/1/a.jpg"); err == nil {
		t.Fatalf("expected get after delete to fail")
	}
}

func TestPresignUnsupported(t *testing.T) {
	store := New()
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
