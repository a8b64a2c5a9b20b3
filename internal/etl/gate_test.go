package etl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWriteGate_AcquireRelease(t *testing.T) {
	gate := NewWriteGate(time.Second)

	if gate.Busy() {
		t.Fatal("new gate is busy")
	}
	if err := gate.Acquire(context.Background(), "run-1"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	st := gate.Status()
	if !st.Busy || st.Holder != "run-1" {
		t.Errorf("Status = %+v, want busy held by run-1", st)
	}

	gate.Release()
	if gate.Busy() {
		t.Error("gate still busy after Release")
	}
	if st := gate.Status(); st.Holder != "" {
		t.Errorf("holder = %q after Release", st.Holder)
	}
}

func TestWriteGate_BusyTimeout(t *testing.T) {
	gate := NewWriteGate(100 * time.Millisecond)
	ctx := context.Background()

	if err := gate.Acquire(ctx, "first"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	start := time.Now()
	err := gate.Acquire(ctx, "second")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrImportBusy) {
		t.Errorf("expected ErrImportBusy, got %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("timeout too fast: %v", elapsed)
	}
}

func TestWriteGate_Serializes(t *testing.T) {
	gate := NewWriteGate(5 * time.Second)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gate.Acquire(context.Background(), "worker"); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer gate.Release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("observed %d concurrent writers, want 1", maxSeen)
	}
}

func TestWriteGate_TryAcquire(t *testing.T) {
	gate := NewWriteGate(time.Second)

	if !gate.TryAcquire("a") {
		t.Fatal("first TryAcquire should succeed")
	}
	if gate.TryAcquire("b") {
		t.Error("second TryAcquire should fail")
		gate.Release()
	}
	gate.Release()

	if !gate.TryAcquire("c") {
		t.Error("TryAcquire after Release should succeed")
	}
	gate.Release()
}

func TestWriteGate_ContextCancellation(t *testing.T) {
	gate := NewWriteGate(5 * time.Second)
	if err := gate.Acquire(context.Background(), "holder"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer gate.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- gate.Acquire(ctx, "waiter") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Acquire did not return after cancellation")
	}
}

func TestWriteGate_WaitForDrain(t *testing.T) {
	gate := NewWriteGate(time.Second)
	if err := gate.Acquire(context.Background(), "holder"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		gate.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := gate.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain: %v", err)
	}
}
