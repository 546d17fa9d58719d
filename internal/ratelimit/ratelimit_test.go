package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", rps: 1, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", rps: 1, burst: 2, calls: 5, wantPass: 2},
		{name: "zero burst is one", rps: 1, burst: 0, calls: 3, wantPass: 1},
		{name: "zero rps is unlimited", rps: 0, burst: 1, calls: 50, wantPass: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow("catalog.example") {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_Wait(t *testing.T) {
	rl := New(10, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx, "test"); err != nil {
		t.Errorf("first Wait() failed: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("first Wait() should be immediate")
	}

	start = time.Now()
	if err := rl.Wait(ctx, "test"); err != nil {
		t.Errorf("second Wait() failed: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 80*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Errorf("second Wait() took %v, want ~100ms", elapsed)
	}
}

func TestKeyedRateLimiter_WaitContextCanceled(t *testing.T) {
	rl := New(0.1, 1)
	rl.Allow("test")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx, "test")
	if err == nil {
		t.Fatal("Wait() should fail when context canceled")
	}
	if !errors.Is(err, domainerrors.ErrCanceled) {
		t.Errorf("Wait() error = %v, want CANCELED", err)
	}
}

func TestKeyedRateLimiter_HostsAreIndependent(t *testing.T) {
	rl := New(0.1, 1)
	ctx := context.Background()

	if err := rl.WaitURL(ctx, "https://Catalog.Example/catalog"); err != nil {
		t.Fatalf("WaitURL() failed: %v", err)
	}
	if rl.Allow("catalog.example") {
		t.Error("same host should share a bucket")
	}
	if !rl.Allow(HostKey("https://db.example/rest/v1/scenarios")) {
		t.Error("other host should be independent")
	}
	if rl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rl.Len())
	}
}

func TestHostKey(t *testing.T) {
	tests := map[string]string{
		"https://Example.COM/path?q=1": "example.com",
		"http://localhost:54321/rest":  "localhost:54321",
		"not a url":                    "not a url",
	}
	for in, want := range tests {
		if got := HostKey(in); got != want {
			t.Errorf("HostKey(%q) = %q, want %q", in, got, want)
		}
	}
}
