package workerpool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_RunsAllJobsBeforeStop(t *testing.T) {
	p := New(4, 8, zap.NewNop())
	p.Start()

	var n atomic.Int64
	for range 100 {
		require.NoError(t, p.Submit(func() { n.Add(1) }))
	}
	p.Stop()
	assert.EqualValues(t, 100, n.Load())
}

func TestPool_SurvivesPanic(t *testing.T) {
	p := New(1, 4, zap.NewNop())
	p.Start()

	var ran atomic.Bool
	require.NoError(t, p.Submit(func() { panic("boom") }))
	require.NoError(t, p.Submit(func() { ran.Store(true) }))
	p.Stop()
	assert.True(t, ran.Load())
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := New(1, 1, zap.NewNop())
	p.Start()
	p.Stop()
	p.Stop()

	assert.ErrorIs(t, p.Submit(func() {}), ErrStopped)
	assert.ErrorIs(t, p.TrySubmit(func() {}), ErrStopped)
}

func TestPool_TrySubmitQueueFull(t *testing.T) {
	p := New(1, 1, zap.NewNop())
	// 未启动, 队列只能放一个任务
	require.NoError(t, p.TrySubmit(func() {}))
	assert.ErrorIs(t, p.TrySubmit(func() {}), ErrQueueFull)

	p.Start()
	p.Stop()
}
