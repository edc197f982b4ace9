package util

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSafeGo_NormalExecution(t *testing.T) {
	var wg sync.WaitGroup
	var done atomic.Bool
	wg.Add(1)
	SafeGo(func() {
		defer wg.Done()
		done.Store(true)
	})
	wg.Wait()
	if !done.Load() {
		t.Error("SafeGo: function was not executed")
	}
}

func TestSafeGo_PanicDoesNotPropagate(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	SafeGo(func() {
		defer wg.Done()
		panic("test panic")
	})

	// Reaching this point proves the panic did not propagate.
	wg.Wait()
}

func TestSafeGo_PanicWithNonStringValue(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	SafeGo(func() {
		defer wg.Done()
		panic(42)
	})
	wg.Wait()
}

func TestSafeGo_MultipleConcurrent(t *testing.T) {
	const n = 100
	var counter atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		SafeGo(func() {
			defer wg.Done()
			counter.Add(1)
		})
	}

	wg.Wait()
	if got := counter.Load(); got != n {
		t.Errorf("SafeGo concurrent: executed %d/%d", got, n)
	}
}
