package observability

import (
	"github.com/jittakal/logship/internal/rotation"
	"github.com/jittakal/logship/pkg/event"
)

// Discard reasons used as the reason label of EventsDiscarded.
const (
	ReasonRetryExhausted = "retry_exhausted"
	ReasonOverflow       = "overflow"
	ReasonShutdown       = "shutdown"
)

// DeliveryObserver returns an observer that turns transport notifications into metrics.
func (m *Metrics) DeliveryObserver() event.Observer {
	return event.ObserverFunc(func(n event.Notification) {
		switch n.Kind {
		case event.ChunkFinished:
			m.AddEventsSent(n.Transport, float64(len(n.Result.Sent)))
			m.AddEventsRetried(n.Transport, float64(len(n.Result.Retried)))
			if len(n.Result.Discarded) > 0 {
				m.AddEventsDiscarded(n.Transport, ReasonRetryExhausted, float64(len(n.Result.Discarded)))
			}
			m.ObserveDispatch(n.Transport, dispatchOutcome(n.Result), n.Duration.Seconds())
		case event.Overflow:
			m.AddEventsDiscarded(n.Transport, ReasonOverflow, float64(n.Count()))
		case event.ShutdownDiscard:
			m.AddEventsDiscarded(n.Transport, ReasonShutdown, float64(n.Count()))
		}
	})
}

func dispatchOutcome(r event.DeliveryResult) string {
	failed := len(r.Retried) + len(r.Discarded)
	switch {
	case failed == 0:
		return event.OutcomeAllSent.String()
	case len(r.Sent) == 0:
		return event.OutcomeChunkFailed.String()
	default:
		return event.OutcomePartialFailure.String()
	}
}

// RotationObserver returns an observer that counts rotations of the named file sink.
func (m *Metrics) RotationObserver(sink string) rotation.Observer {
	return rotation.ObserverFunc(func(n rotation.Notification) {
		switch n.Kind {
		case rotation.Rotated:
			m.IncRotations(sink)
			m.SetCurrentFileSize(sink, 0)
		case rotation.Pruned:
			m.AddArchivesPruned(sink, float64(len(n.Pruned)))
		case rotation.RotateFailed:
			m.IncRotationErrors(sink)
		}
	})
}
