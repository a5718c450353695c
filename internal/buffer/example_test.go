package buffer_test

import (
	"fmt"

	"github.com/jittakal/logship/internal/buffer"
	"github.com/jittakal/logship/pkg/event"
)

func Example_eventBuffer() {
	// Create a buffer holding at most 3 entries
	buf := buffer.New(3)

	// Enqueue more entries than fit; the oldest are evicted
	for i := 0; i < 5; i++ {
		evicted := buf.Enqueue(&event.Entry{Event: event.Event{ID: fmt.Sprintf("evt-%d", i)}})
		for _, e := range evicted {
			fmt.Println("evicted", e.ID())
		}
	}

	// Take a chunk and put one entry back for another attempt
	chunk := buf.Take(2)
	buf.Requeue(chunk[1])

	for _, e := range buf.Drain() {
		fmt.Println("buffered", e.ID())
	}

	// Output:
	// evicted evt-0
	// evicted evt-1
	// buffered evt-3
	// buffered evt-4
}
