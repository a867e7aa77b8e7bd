package memory

import (
	"context"
	"testing"
)

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	key := []byte("key")
	if v, err := s.Get(ctx, key); err != nil || v != nil {
		t.Fatalf("expected absent key to return nil, nil, got %v, %v", v, err)
	}

	if err := s.Put(ctx, key, []byte("value")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := s.Get(ctx, key)
	if err != nil || string(v) != "value" {
		t.Fatalf("expected value, got %v, %v", v, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if v, err := s.Get(ctx, key); err != nil || v != nil {
		t.Fatalf("expected deleted key to return nil, nil, got %v, %v", v, err)
	}
}

func TestDistinctKeysDoNotAlias(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := []byte{0x01, 0x02}
	b := []byte{0x01, 0x03}

	if err := s.Put(ctx, a, []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, b, []byte("b")); err != nil {
		t.Fatal(err)
	}

	va, _ := s.Get(ctx, a)
	vb, _ := s.Get(ctx, b)
	if string(va) != "a" || string(vb) != "b" {
		t.Fatalf("keys must not alias: got %q, %q", va, vb)
	}
}
