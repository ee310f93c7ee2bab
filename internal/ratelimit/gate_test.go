package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowConsumesBurst(t *testing.T) {
	g := New(Config{RequestsPerSecond: 1, BurstSize: 3})

	for i := 0; i < 3; i++ {
		if !g.Allow() {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	if g.Allow() {
		t.Fatal("request beyond burst should be denied")
	}
}

func TestBucketRefills(t *testing.T) {
	g := New(Config{RequestsPerSecond: 100, BurstSize: 1})

	if !g.Allow() {
		t.Fatal("first request should be allowed")
	}
	if g.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)
	if !g.Allow() {
		t.Fatal("bucket should have refilled")
	}
}

func TestWaitBlocksUntilToken(t *testing.T) {
	g := New(Config{RequestsPerSecond: 50, BurstSize: 1})
	ctx := context.Background()

	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	start := time.Now()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("Wait() returned after %v, expected pacing delay", elapsed)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	g := New(Config{RequestsPerSecond: 0.001, BurstSize: 1})
	g.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := g.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestDefaults(t *testing.T) {
	g := New(Config{})
	if g.Limit() != 10 {
		t.Errorf("Limit() = %d, want 10", g.Limit())
	}
	if g.Rate() != 5.0 {
		t.Errorf("Rate() = %v, want 5.0", g.Rate())
	}
	if g.Remaining() != 10 {
		t.Errorf("Remaining() = %d, want 10", g.Remaining())
	}
}
