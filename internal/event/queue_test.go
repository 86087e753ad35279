package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueue_PopEmpty(t *testing.T) {
	q := NewQueue()

	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue ok = true, want false")
	}
	if q.Check() {
		t.Error("Check() on fresh queue = true, want false")
	}
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	q.Post(BrokerConnected(0))
	q.Post(FileChanged())
	q.Post(BrokerConnected(5))

	want := []Kind{KindBrokerConnected, KindFileChanged, KindBrokerConnected}
	for i, kind := range want {
		ev, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() #%d ok = false, want true", i)
		}
		if ev.Kind != kind {
			t.Errorf("Pop() #%d kind = %v, want %v", i, ev.Kind, kind)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() after drain ok = true, want false")
	}
}

func TestQueue_CheckClearsSignal(t *testing.T) {
	q := NewQueue()
	q.Post(FileChanged())
	q.Post(FileChanged())

	if !q.Check() {
		t.Fatal("Check() after Post = false, want true")
	}
	if q.Check() {
		t.Error("second Check() = true, want false")
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (Check must not consume events)", q.Len())
	}
}

func TestQueue_WaitReturnsOnPost(t *testing.T) {
	q := NewQueue()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Post(FileChanged())
	}()

	start := time.Now()
	if err := q.Wait(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Wait() took %v, want prompt wake-up", elapsed)
	}
	if !q.Check() {
		t.Error("Check() after wake-up = false, want true")
	}
}

func TestQueue_WaitTimeout(t *testing.T) {
	q := NewQueue()

	start := time.Now()
	if err := q.Wait(context.Background(), 30*time.Millisecond); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("Wait() returned after %v, want at least the timeout", elapsed)
	}
	if q.Check() {
		t.Error("Check() after timeout = true, want false")
	}
}

func TestQueue_WaitAlreadySignaled(t *testing.T) {
	q := NewQueue()
	q.Post(FileChanged())

	// Drain the token without clearing the flag: Wait must still return at once.
	if err := q.Wait(context.Background(), time.Hour); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if err := q.Wait(context.Background(), time.Hour); err != nil {
		t.Fatalf("second Wait() error = %v", err)
	}
}

func TestQueue_WaitCancelled(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Wait(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestQueue_ConcurrentProducersKeepEveryEvent(t *testing.T) {
	q := NewQueue()
	const producers = 8
	const perProducer = 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(code byte) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Post(BrokerConnected(code))
			}
		}(byte(p))
	}
	wg.Wait()

	if !q.Check() {
		t.Fatal("Check() = false after concurrent posts")
	}

	// Each producer's events must come out in that producer's post order,
	// which for identical values means the per-producer counts add up.
	counts := make(map[byte]int)
	total := 0
	for ev, ok := q.Pop(); ok; ev, ok = q.Pop() {
		counts[ev.ResultCode]++
		total++
	}
	if total != producers*perProducer {
		t.Errorf("popped %d events, want %d", total, producers*perProducer)
	}
	for p := 0; p < producers; p++ {
		if counts[byte(p)] != perProducer {
			t.Errorf("producer %d: %d events, want %d", p, counts[byte(p)], perProducer)
		}
	}
}

func TestQueue_NoLostWakeup(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		done := make(chan struct{})
		go func() {
			q.Post(FileChanged())
			close(done)
		}()

		if err := q.Wait(ctx, 5*time.Second); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		<-done
		if !q.Check() {
			t.Fatalf("iteration %d: Check() = false after Post", i)
		}
		if _, ok := q.Pop(); !ok {
			t.Fatalf("iteration %d: Pop() ok = false after Post", i)
		}
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindBrokerConnected, "broker_connected"},
		{KindFileChanged, "file_changed"},
		{Kind(42), "unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
