package delivery

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAutoFlushTimer_Fires(t *testing.T) {
	var calls atomic.Int32
	timer := NewAutoFlushTimer(5*time.Millisecond, func() { calls.Add(1) })

	timer.Start()
	assert.True(t, timer.Running())
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	timer.Stop()
	assert.False(t, timer.Running())
}

func TestAutoFlushTimer_StopIsSynchronous(t *testing.T) {
	var calls atomic.Int32
	timer := NewAutoFlushTimer(time.Millisecond, func() { calls.Add(1) })

	timer.Start()
	time.Sleep(10 * time.Millisecond)
	timer.Stop()

	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no tick may run after Stop returns")
}

func TestAutoFlushTimer_Disabled(t *testing.T) {
	var calls atomic.Int32
	timer := NewAutoFlushTimer(0, func() { calls.Add(1) })

	timer.Start()
	assert.False(t, timer.Running())
	time.Sleep(5 * time.Millisecond)
	timer.Stop()

	assert.Zero(t, calls.Load())
}

func TestAutoFlushTimer_RestartAndDoubleStop(t *testing.T) {
	var calls atomic.Int32
	timer := NewAutoFlushTimer(time.Millisecond, func() { calls.Add(1) })

	timer.Start()
	timer.Start()
	timer.Stop()
	timer.Stop()

	timer.Start()
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)
	timer.Stop()
}
