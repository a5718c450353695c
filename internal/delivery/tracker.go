package delivery

import (
	"errors"
	"sync/atomic"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/event"
)

var errChunkFailed = errors.New("chunk delivery failed")

// TrackerStats is a snapshot of per-event outcome counters.
type TrackerStats struct {
	Sent      uint64
	Retried   uint64
	Discarded uint64
}

// Tracker classifies sink outcomes per event and enforces the retry limit.
type Tracker struct {
	maxRetries int

	sent      atomic.Uint64
	retried   atomic.Uint64
	discarded atomic.Uint64
}

// NewTracker creates a tracker. An event is discarded once it has failed more
// than maxRetries times; negative values are treated as zero.
func NewTracker(maxRetries int) *Tracker {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Tracker{maxRetries: maxRetries}
}

// MaxRetries returns the configured retry limit.
func (t *Tracker) MaxRetries() int {
	return t.maxRetries
}

// Resolve applies an outcome to every entry of the chunk.
//
// Failed entries have their attempt count incremented. Entries still within
// the retry limit are returned in chunk order for re-admission. Failure IDs
// that do not belong to the chunk are ignored.
func (t *Tracker) Resolve(transport string, chunk *event.Chunk, outcome event.Outcome) (event.DeliveryResult, []*event.Entry) {
	var result event.DeliveryResult
	var retry []*event.Entry

	for _, entry := range chunk.Entries {
		cause, failed := failureFor(outcome, entry.ID())
		if !failed {
			result.Sent = append(result.Sent, entry)
			continue
		}

		entry.Attempts++
		err := &apperrors.DispatchError{
			Transport: transport,
			ChunkID:   chunk.ID,
			EventID:   entry.ID(),
			Err:       cause,
		}

		if entry.Attempts > t.maxRetries {
			result.Discarded = append(result.Discarded, event.Failure{
				Entry: entry,
				Err: &apperrors.RetryExhaustedError{
					EventID:  entry.ID(),
					Attempts: entry.Attempts,
					Err:      err,
				},
			})
			continue
		}

		result.Retried = append(result.Retried, event.Failure{Entry: entry, Err: err})
		retry = append(retry, entry)
	}

	t.sent.Add(uint64(len(result.Sent)))
	t.retried.Add(uint64(len(result.Retried)))
	t.discarded.Add(uint64(len(result.Discarded)))

	return result, retry
}

// Stats returns the cumulative outcome counters.
func (t *Tracker) Stats() TrackerStats {
	return TrackerStats{
		Sent:      t.sent.Load(),
		Retried:   t.retried.Load(),
		Discarded: t.discarded.Load(),
	}
}

func failureFor(outcome event.Outcome, id string) (error, bool) {
	switch outcome.Kind {
	case event.OutcomeAllSent:
		return nil, false
	case event.OutcomeChunkFailed:
		if outcome.Err != nil {
			return outcome.Err, true
		}
		return errChunkFailed, true
	case event.OutcomePartialFailure:
		err, ok := outcome.Failed[id]
		if !ok {
			return nil, false
		}
		if err == nil {
			err = errChunkFailed
		}
		return err, true
	default:
		return errChunkFailed, true
	}
}
