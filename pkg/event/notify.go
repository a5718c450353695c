package event

import "time"

// NotificationKind tags an observer notification.
type NotificationKind int

const (
	// ChunkFinished carries the per-event result of a resolved chunk.
	ChunkFinished NotificationKind = iota
	// Overflow reports entries evicted because the buffer was at capacity.
	Overflow
	// ShutdownDiscard reports entries dropped because a transport closed before delivering them.
	ShutdownDiscard
)

func (k NotificationKind) String() string {
	switch k {
	case ChunkFinished:
		return "chunk_finished"
	case Overflow:
		return "overflow"
	case ShutdownDiscard:
		return "shutdown_discard"
	default:
		return "unknown"
	}
}

// Notification is delivered to observers for every asynchronous outcome of a transport.
type Notification struct {
	Kind      NotificationKind
	Transport string

	// ChunkFinished
	ChunkID  uint64
	Result   DeliveryResult
	Duration time.Duration // time spent in the sink

	// Overflow and ShutdownDiscard
	Dropped []*Entry
	Requeue bool // overflow caused by re-admitting retried entries
	Err     error
}

// Count returns the number of dropped entries for Overflow and ShutdownDiscard notifications.
func (n Notification) Count() int {
	return len(n.Dropped)
}

// Observer receives transport notifications. Implementations must be safe for
// concurrent use and must not block for long: they run on dispatch and producer goroutines.
type Observer interface {
	Notify(n Notification)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(n Notification)

// Notify calls f(n).
func (f ObserverFunc) Notify(n Notification) {
	f(n)
}

type multiObserver []Observer

func (m multiObserver) Notify(n Notification) {
	for _, o := range m {
		o.Notify(n)
	}
}

// Observers fans a notification out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}
