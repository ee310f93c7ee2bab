package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDeferDoesNotInvoke(t *testing.T) {
	called := false
	c := Defer(func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	if called {
		t.Fatal("function invoked at construction time")
	}
	if c.Resolved() {
		t.Fatal("cell resolved before first Get")
	}
}

func TestGetMemoizes(t *testing.T) {
	var calls int32
	c := Defer(func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	})

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected exactly one invocation, got %d", n)
	}
	if !c.Resolved() {
		t.Fatal("cell should report resolved")
	}
}

func TestErrorIsMemoized(t *testing.T) {
	boom := errors.New("boom")
	var calls int32
	c := Defer(func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", boom
	})

	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background()); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("failed call retried: %d invocations", n)
	}
}

func TestConcurrentGetSingleInvocation(t *testing.T) {
	var calls int32
	c := Defer(func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 7, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.Get(context.Background()); err != nil || v != 7 {
				t.Errorf("got %d, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected exactly one invocation, got %d", n)
	}
}

func TestResolve(t *testing.T) {
	c := Resolve([]string{"a", "b"})
	if !c.Resolved() {
		t.Fatal("pre-resolved cell should report resolved")
	}
	v, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v) != 2 {
		t.Fatalf("unexpected value: %v", v)
	}
}
