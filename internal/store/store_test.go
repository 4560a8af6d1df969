package store

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory(0)
	defer s.Close()

	if err := s.Set(ctx, "k1", []byte(`{"a":1}`), time.Minute); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	got, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("Get = %q", got)
	}

	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if _, err := s.Get(ctx, "k1"); !IsNotFound(err) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory(time.Hour) // purge loop irrelevant; lazy expiry on Get
	defer s.Close()

	if err := s.Set(ctx, "short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := s.Get(ctx, "short"); !IsNotFound(err) {
		t.Fatalf("expected not-found after TTL, got %v", err)
	}
}

func TestMemory_MissingKeyIsNotFound(t *testing.T) {
	t.Parallel()
	s := NewMemory(0)
	defer s.Close()
	_, err := s.Get(context.Background(), "nope")
	if !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_PurgeExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory(time.Hour)
	defer s.Close()

	if err := s.Set(ctx, "gone", []byte("v"), 5*time.Millisecond); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	if err := s.Set(ctx, "kept", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := s.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired err: %v", err)
	}
	if _, err := s.Get(ctx, "kept"); err != nil {
		t.Fatalf("kept key lost: %v", err)
	}
}

func TestNew_DefaultsToMemory(t *testing.T) {
	t.Parallel()
	s, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping err: %v", err)
	}
}
