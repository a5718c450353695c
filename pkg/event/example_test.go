package event_test

import (
	"errors"
	"fmt"

	"github.com/jittakal/logship/pkg/event"
)

func ExampleParseLevel() {
	level, err := event.ParseLevel("warning")
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(level)
	// Output: WARN
}

func ExamplePartialFailure() {
	outcome := event.PartialFailure(map[string]error{
		"evt-2": errors.New("connection reset"),
	})

	fmt.Println(outcome.Kind, len(outcome.Failed))
	// Output: partial_failure 1
}

func ExampleDeliveryResult_SentIDs() {
	result := event.DeliveryResult{
		Sent: []*event.Entry{
			{Event: event.Event{ID: "evt-1"}},
			{Event: event.Event{ID: "evt-3"}},
		},
	}

	fmt.Println(result.SentIDs())
	// Output: [evt-1 evt-3]
}
