package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "languages", []byte(`[1]`), time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(ctx, "languages")
	if err != nil || string(got) != "[1]" {
		t.Fatalf("got %q err=%v", got, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := m.Get(ctx, "languages"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryWithoutTTLNeverExpires(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "k", []byte("v"), 0)
	m.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatal(err)
	}
}
