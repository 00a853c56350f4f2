package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePinger struct {
	mu  sync.Mutex
	err error
	n   int
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return f.err
}

func (f *fakePinger) set(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestSetOnline_FiresOnlyOnTransitionToOnline(t *testing.T) {
	m := NewMonitor(nil, 0, false, logging.Nop())

	var fired int
	m.OnOnline(func() { fired++ })

	m.SetOnline(false)
	assert.Equal(t, 0, fired)

	m.SetOnline(true)
	assert.True(t, m.IsOnline())
	assert.Equal(t, 1, fired)

	m.SetOnline(true)
	assert.Equal(t, 1, fired)

	m.SetOnline(false)
	assert.False(t, m.IsOnline())
	assert.Equal(t, 1, fired)

	m.SetOnline(true)
	assert.Equal(t, 2, fired)
}

func TestOnOnline_Unsubscribe(t *testing.T) {
	m := NewMonitor(nil, 0, false, nil)

	var fired int
	stop := m.OnOnline(func() { fired++ })
	stop()

	m.SetOnline(true)
	assert.Equal(t, 0, fired)
}

func TestProbe_ClassifiesErrors(t *testing.T) {
	p := &fakePinger{}
	m := NewMonitor(p, time.Hour, false, logging.Nop())

	m.Probe(context.Background())
	assert.True(t, m.IsOnline())

	p.set(common.ErrRemoteUnreachable)
	m.Probe(context.Background())
	assert.False(t, m.IsOnline())

	// The server answered, even if it said no.
	p.set(errors.Join(common.ErrRemoteRejected, common.ErrUnauthorized))
	m.Probe(context.Background())
	assert.True(t, m.IsOnline())
}

func TestRun_ProbesUntilCancelled(t *testing.T) {
	p := &fakePinger{err: common.ErrRemoteUnreachable}
	m := NewMonitor(p, 5*time.Millisecond, true, logging.Nop())

	var onlineEvents atomic.Int32
	m.OnOnline(func() { onlineEvents.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return !m.IsOnline() }, time.Second, time.Millisecond)

	p.set(nil)
	require.Eventually(t, func() bool { return m.IsOnline() }, time.Second, time.Millisecond)
	require.Equal(t, int32(1), onlineEvents.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestRun_WithoutPingerWaitsForCancel(t *testing.T) {
	m := NewMonitor(nil, time.Millisecond, true, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
	assert.True(t, m.IsOnline())
}
