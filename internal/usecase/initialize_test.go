package usecase

import (
	"sync"
	"testing"
)

func TestInitialize_Idempotent(t *testing.T) {
	first := Initialize()
	if first != nil {
		t.Fatalf("Initialize failed: %v", first)
	}

	// 繰り返し呼んでも初回の結果が返ること
	for i := 0; i < 3; i++ {
		if err := Initialize(); err != first {
			t.Errorf("want first result %v, got %v", first, err)
		}
	}
}

func TestInitialize_ConcurrentCalls(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = Initialize()
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		if err != results[0] {
			t.Errorf("call %d: want %v, got %v", i, results[0], err)
		}
	}
}
