package observable

import (
	"sync"
	"testing"
)

func TestValue_LastValueOnSubscribe(t *testing.T) {
	v := NewValue("a")
	v.Set("b")

	var got []string
	unsubscribe := v.Subscribe(func(s string) { got = append(got, s) })

	v.Set("c")
	unsubscribe()
	unsubscribe()
	v.Set("d")

	want := []string{"b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if v.Get() != "d" {
		t.Errorf("expected current value d, got %q", v.Get())
	}
}

func TestValue_ConcurrentSetsAreObservedInOrder(t *testing.T) {
	v := NewValue(0)

	var mu sync.Mutex
	var seen []int
	v.Subscribe(func(n int) {
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			v.Set(n)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()

	if len(seen) != 51 {
		t.Fatalf("expected 51 notifications (initial + 50 sets), got %d", len(seen))
	}
	if seen[len(seen)-1] != v.Get() {
		t.Errorf("last notification %d does not match current value %d", seen[len(seen)-1], v.Get())
	}
}
