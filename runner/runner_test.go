package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestConstraintPool(t *testing.T) {
	cp := NewConstraintPool(4)

	a := cp.Acquire(2)
	b := cp.Acquire(2)

	if _, err := cp.TryAcquire(1); err != PoolErrorNotAvailable {
		t.Errorf("TryAcquire on full pool: %v", err)
	}

	a.Return()
	c, err := cp.TryAcquire(2)
	if err != nil {
		t.Fatalf("TryAcquire after return: %v", err)
	}
	b.Return()
	c.Return()

	// double Return must not corrupt accounting
	c.Return()
	if d, err := cp.TryAcquire(4); err != nil {
		t.Errorf("pool not fully released: %v", err)
	} else {
		d.Return()
	}
}

func TestConstraintPoolBlocking(t *testing.T) {
	cp := NewConstraintPool(1)
	first := cp.Acquire(1)

	var acquired atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		alloc := cp.Acquire(1)
		acquired.Store(true)
		alloc.Return()
	}()

	if acquired.Load() {
		t.Error("second acquire should be blocked")
	}
	first.Return()
	wg.Wait()
	if !acquired.Load() {
		t.Error("blocked acquire never woke up")
	}
}

func TestConstraintPoolOversizedAsk(t *testing.T) {
	cp := NewConstraintPool(2)
	// asks beyond the budget clamp instead of deadlocking
	a := cp.Acquire(10)
	a.Return()
}

func TestSingleMachineRunner(t *testing.T) {
	dir := t.TempDir()
	r := NewSingleMachineRunner(2, 1024)

	out := filepath.Join(dir, "touched")
	tool := &CommandLineTool{
		CommandLine: []string{"touch", out},
		BaseDir:     dir,
		NCpus:       1,
		MemMB:       16,
	}
	if _, err := r.RunCommand(context.Background(), tool); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("command did not run: %s", err)
	}
}

func TestSingleMachineRunnerFailure(t *testing.T) {
	r := NewSingleMachineRunner(2, 1024)
	tool := &CommandLineTool{
		CommandLine: []string{"false"},
		BaseDir:     t.TempDir(),
		NCpus:       1,
		MemMB:       16,
	}
	if _, err := r.RunCommand(context.Background(), tool); err == nil {
		t.Error("failing command reported success")
	}
}
