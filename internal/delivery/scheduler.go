package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/jittakal/logship/pkg/event"
)

// Flush cuts up to ChunkSize entries from the buffer and dispatches them
// asynchronously. It returns false without side effects when the buffer is
// empty, a dispatch is already in flight, or the transport is closed.
func (t *Transport) Flush() bool {
	t.mu.Lock()
	if t.closed || t.inflight {
		t.mu.Unlock()
		return false
	}
	chunk := t.cutChunk()
	if chunk == nil {
		t.mu.Unlock()
		return false
	}
	t.inflight = true
	t.wg.Add(1)
	t.mu.Unlock()

	go t.dispatch(chunk)
	return true
}

// cutChunk must be called with t.mu held.
func (t *Transport) cutChunk() *event.Chunk {
	entries := t.buf.Take(t.cfg.ChunkSize)
	if len(entries) == 0 {
		return nil
	}
	t.nextChunkID++
	return &event.Chunk{ID: t.nextChunkID, Entries: entries, CreatedAt: time.Now()}
}

func (t *Transport) dispatch(chunk *event.Chunk) {
	defer t.wg.Done()

	start := time.Now()
	outcome := t.deliver(t.dispatchCtx, chunk)
	elapsed := time.Since(start)

	t.mu.Lock()
	result, retry := t.tracker.Resolve(t.cfg.Name, chunk, outcome)
	evicted := t.buf.Requeue(retry...)
	t.evicted += uint64(len(evicted))
	t.inflight = false
	t.mu.Unlock()

	if len(result.Discarded) > 0 {
		t.logger.Warn("Discarded events after exhausting retries",
			"chunk_id", chunk.ID,
			"count", len(result.Discarded))
	}

	t.notifyFinished(chunk.ID, result, elapsed)
	if len(evicted) > 0 {
		t.notifyOverflow(evicted, true)
	}
}

// deliver calls the sink with a per-chunk timeout, converting a panic into a
// chunk failure.
func (t *Transport) deliver(parent context.Context, chunk *event.Chunk) (outcome event.Outcome) {
	ctx, cancel := context.WithTimeout(parent, t.cfg.DispatchTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Sink panicked during delivery", "chunk_id", chunk.ID, "panic", r)
			outcome = event.ChunkFailed(fmt.Errorf("sink %s panicked: %v", t.sink.Name(), r))
		}
	}()

	start := time.Now()
	outcome = t.sink.Deliver(ctx, chunk)

	t.logger.Debug("Chunk delivered",
		"chunk_id", chunk.ID,
		"entries", chunk.Len(),
		"outcome", outcome.Kind.String(),
		"duration", time.Since(start))

	return outcome
}
