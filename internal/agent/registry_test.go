package agent

import (
	"errors"
	"testing"
	"time"
)

func newTestRegistry() *Registry {
	r := NewRegistry(PoolConfig{MemoryMB: 1024, CPU: 2.0})
	r.SetInitDelay(10 * time.Millisecond)
	return r
}

func TestSpawnAllTypes(t *testing.T) {
	r := NewRegistry(PoolConfig{MemoryMB: 8192, CPU: 16.0})
	r.SetInitDelay(time.Millisecond)

	for _, typ := range ValidTypes() {
		before := r.Usage()
		a, err := r.Spawn(typ, "", nil)
		if err != nil {
			t.Fatalf("Spawn(%s) failed: %v", typ, err)
		}
		if a.Status != StatusInitializing {
			t.Errorf("expected initializing status, got %s", a.Status)
		}
		profile, _ := ProfileFor(typ)
		after := r.Usage()
		if after.MemoryUsedMB-before.MemoryUsedMB != profile.Cost.MemoryMB {
			t.Errorf("%s: memory debit %d, want %d", typ, after.MemoryUsedMB-before.MemoryUsedMB, profile.Cost.MemoryMB)
		}
		if after.CPUUsed-before.CPUUsed != profile.Cost.CPU {
			t.Errorf("%s: cpu debit %f, want %f", typ, after.CPUUsed-before.CPUUsed, profile.Cost.CPU)
		}
		if len(a.Capabilities) == 0 {
			t.Errorf("%s: expected default capabilities", typ)
		}
	}
}

func TestSpawnInvalidType(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Spawn(Type("wizard"), "", nil)
	if err == nil {
		t.Fatal("expected error for invalid type")
	}
	var ite *InvalidAgentTypeError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidAgentTypeError, got %T", err)
	}
}

func TestSpawnInsufficientResources(t *testing.T) {
	r := NewRegistry(PoolConfig{MemoryMB: 300, CPU: 4.0})
	r.SetInitDelay(time.Millisecond)

	// Coder needs 512MB; pool only has 300.
	before := r.Usage()
	_, err := r.Spawn(TypeCoder, "", nil)
	var ire *InsufficientResourcesError
	if !errors.As(err, &ire) {
		t.Fatalf("expected InsufficientResourcesError, got %v", err)
	}
	if ire.Dimension != "memory" {
		t.Errorf("expected memory dimension, got %s", ire.Dimension)
	}
	after := r.Usage()
	if after != before {
		t.Errorf("ledger changed on failed spawn: %+v -> %+v", before, after)
	}
}

func TestSpawnRemoveRoundTrip(t *testing.T) {
	r := newTestRegistry()
	before := r.Usage()

	a, err := r.Spawn(TypeResearcher, "scout", nil)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if err := r.Remove(a.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	after := r.Usage()
	if after != before {
		t.Errorf("ledger not restored: %+v -> %+v", before, after)
	}
	if err := r.Remove(a.ID); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound on double remove, got %v", err)
	}
}

func TestDefaultNamesUniqueAcrossRemovals(t *testing.T) {
	r := newTestRegistry()

	first, err := r.Spawn(TypeResearcher, "", nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	second, err := r.Spawn(TypeResearcher, "", nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := r.Remove(first.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	third, err := r.Spawn(TypeResearcher, "", nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if third.Name == second.Name || third.Name == first.Name {
		t.Fatalf("default name %q reused after removal", third.Name)
	}
}

func TestSpawnTransitionsToActive(t *testing.T) {
	r := newTestRegistry()
	a, err := r.Spawn(TypeTester, "", nil)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		got, err := r.Get(a.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status == StatusActive {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("agent never became active")
}

func TestSpawnBatchPartialSuccess(t *testing.T) {
	// Enough for two researchers (256MB each) but not for one coder (512MB).
	r := NewRegistry(PoolConfig{MemoryMB: 600, CPU: 8.0})
	r.SetInitDelay(time.Millisecond)

	res := r.SpawnBatch(map[Type]int{
		TypeResearcher: 2,
		Type("wizard"): 1,
	})
	if len(res.Spawned) != 2 {
		t.Fatalf("expected 2 spawned, got %d", len(res.Spawned))
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error entry, got %d: %+v", len(res.Errors), res.Errors)
	}
	if res.Errors[0].Type != Type("wizard") {
		t.Errorf("unexpected error entry: %+v", res.Errors[0])
	}
}

func TestUpdateTouchesLastActive(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Spawn(TypeAnalyst, "", nil)

	time.Sleep(5 * time.Millisecond)
	status := StatusBusy
	updated, err := r.Update(a.ID, UpdateFields{Status: &status})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Status != StatusBusy {
		t.Errorf("status not applied: %s", updated.Status)
	}
	if !updated.LastActive.After(a.LastActive) {
		t.Error("LastActive not advanced")
	}

	if _, err := r.Update("missing", UpdateFields{}); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestRecordTaskResult(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Spawn(TypeCoder, "", nil)

	r.RecordTaskResult(a.ID, true)
	r.RecordTaskResult(a.ID, true)
	r.RecordTaskResult(a.ID, false)

	got, _ := r.Get(a.ID)
	if got.TaskCount != 3 {
		t.Errorf("task count = %d, want 3", got.TaskCount)
	}
	if got.SuccessRate < 0.66 || got.SuccessRate > 0.67 {
		t.Errorf("success rate = %f, want ~0.667", got.SuccessRate)
	}
}

func TestListFilter(t *testing.T) {
	r := NewRegistry(PoolConfig{MemoryMB: 8192, CPU: 16.0})
	r.SetInitDelay(time.Millisecond)
	r.Spawn(TypeCoder, "c1", nil)
	r.Spawn(TypeCoder, "c2", nil)
	r.Spawn(TypeTester, "t1", nil)

	if got := len(r.List(Filter{Type: TypeCoder})); got != 2 {
		t.Errorf("coder count = %d, want 2", got)
	}
	if got := len(r.List(Filter{})); got != 3 {
		t.Errorf("total count = %d, want 3", got)
	}
	if got := len(r.List(Filter{Status: StatusTerminated})); got != 0 {
		t.Errorf("terminated count = %d, want 0", got)
	}
}

func TestTaskBoardDAG(t *testing.T) {
	b := NewTaskBoard()
	t1 := b.Add("design", 1)
	t2 := b.Add("build", 1)
	t3 := b.Add("test", 1)

	if err := b.AddDependency(t2.ID, t1.ID); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	if err := b.AddDependency(t3.ID, t2.ID); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	// t1 -> t3 would close the cycle t1 <- t2 <- t3.
	if err := b.AddDependency(t1.ID, t3.ID); err == nil {
		t.Fatal("expected cycle rejection")
	}
	if err := b.AddDependency(t1.ID, t1.ID); err == nil {
		t.Fatal("expected self-dependency rejection")
	}
}

func TestTaskBoardCompletionRatio(t *testing.T) {
	b := NewTaskBoard()
	if got := b.CompletionRatio(); got != 0 {
		t.Errorf("empty board ratio = %f, want 0", got)
	}
	t1 := b.Add("a", 1)
	b.Add("b", 1)
	b.SetStatus(t1.ID, TaskCompleted, "")
	if got := b.CompletionRatio(); got != 50 {
		t.Errorf("ratio = %f, want 50", got)
	}
}
