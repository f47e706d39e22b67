package reactive

import (
	"sync"
	"testing"
)

func trackingContextCount() int {
	n := 0
	trackingContexts.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestCleanupGoroutineContextRemovesEntry(t *testing.T) {
	WithOwner(NewOwner(nil), func() {})

	gid := getGoroutineID()
	if _, ok := trackingContexts.Load(gid); !ok {
		t.Fatal("Expected a tracking context for the current goroutine")
	}

	CleanupGoroutineContext()

	if _, ok := trackingContexts.Load(gid); ok {
		t.Error("Expected the tracking context to be removed")
	}
}

func TestExitedGoroutinesDoNotAccumulateContexts(t *testing.T) {
	before := trackingContextCount()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer CleanupGoroutineContext()
			WithOwner(NewOwner(nil), func() {})
		}()
	}
	wg.Wait()

	if after := trackingContextCount(); after > before {
		t.Errorf("Expected no context growth after goroutines exited, got %d then %d", before, after)
	}
}
