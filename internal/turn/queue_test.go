package turn

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/secretary/internal/types"
)

func inboundTurn(session, text string) *Turn {
	return NewTurn(&types.InboundTurn{
		Source:     "test",
		SessionKey: types.SessionKey(session),
		Text:       text,
	})
}

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue(2)
	queue.Start(context.Background())
	defer queue.Stop()

	var running int32
	var maxSeen int32

	queue.SetProcessor(func(turn *Turn) error {
		current := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&maxSeen)
			if current <= old || atomic.CompareAndSwapInt32(&maxSeen, old, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})

	for i := 0; i < 5; i++ {
		if err := queue.Enqueue(inboundTurn(fmt.Sprintf("test:%d", i), "hi")); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(500 * time.Millisecond)

	if m := atomic.LoadInt32(&maxSeen); m > 2 {
		t.Errorf("expected max 2 concurrent, saw %d", m)
	}
}

func TestQueueSameSessionOrdering(t *testing.T) {
	queue := NewQueue(4)
	queue.Start(context.Background())
	defer queue.Stop()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	queue.SetProcessor(func(turn *Turn) error {
		mu.Lock()
		order = append(order, turn.Inbound.Text)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	})

	for i := 0; i < 3; i++ {
		if err := queue.Enqueue(inboundTurn("test:same", strconv.Itoa(i))); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for turns to process")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != strconv.Itoa(i) {
			t.Errorf("expected order[%d] = %d, got %s", i, i, v)
		}
	}
}

func TestQueueProcessorErrorRepliesFallback(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	defer queue.Stop()

	queue.SetProcessor(func(turn *Turn) error {
		return fmt.Errorf("boom")
	})

	replied := make(chan string, 1)
	turn := inboundTurn("test:err", "hi")
	turn.OnReply = func(response string) { replied <- response }
	if err := queue.Enqueue(turn); err != nil {
		t.Fatal(err)
	}

	select {
	case resp := <-replied:
		if resp == "" {
			t.Error("expected a fallback reply")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fallback reply")
	}
}

func TestQueueNoProcessor(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	defer queue.Stop()

	// Enqueue without setting a processor -- should not panic
	if err := queue.Enqueue(inboundTurn("test:noproc", "hi")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
}
