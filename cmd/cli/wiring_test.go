package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/possync/internal/client/config"
	"github.com/dmitrijs2005/possync/internal/client/services"
	"github.com/dmitrijs2005/possync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type slowResumer struct {
	started chan struct{}
	release chan struct{}
	done    atomic.Int32
	once    sync.Once
}

func (r *slowResumer) Resume(ctx context.Context) error {
	r.once.Do(func() { close(r.started) })
	<-r.release
	r.done.Add(1)
	return errors.New("server busy")
}

type countingTrigger struct {
	n atomic.Int32
}

func (c *countingTrigger) TriggerSync() bool {
	c.n.Add(1)
	return true
}

func TestResumeOnOnline_FinishesBeforeReturning(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	online := make(chan struct{}, 1)
	r := &slowResumer{started: make(chan struct{}), release: make(chan struct{})}
	tr := &countingTrigger{}

	errc := make(chan error, 1)
	go func() { errc <- resumeOnOnline(ctx, online, r, tr, logging.Nop()) }()

	online <- struct{}{}
	<-r.started
	cancel()

	select {
	case <-errc:
		t.Fatal("returned while a resume was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(r.release)
	require.NoError(t, <-errc)
	assert.EqualValues(t, 1, r.done.Load())
	assert.EqualValues(t, 1, tr.n.Load())
}

func TestResumeOnOnline_TriggersPerSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	online := make(chan struct{})
	r := &slowResumer{started: make(chan struct{}), release: make(chan struct{})}
	close(r.release)
	tr := &countingTrigger{}

	errc := make(chan error, 1)
	go func() { errc <- resumeOnOnline(ctx, online, r, tr, logging.Nop()) }()

	online <- struct{}{}
	online <- struct{}{}
	assert.Eventually(t, func() bool { return tr.n.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errc)
}

func TestAppOptions_UsesConfiguredHistoryLimit(t *testing.T) {
	cfg := &config.Config{HistoryLimit: 7}
	opts := appOptions(cfg, services.Deps{Logger: logging.Nop()}, nil, nil, nil, func() bool { return true })

	assert.Equal(t, 7, opts.HistoryLimit)
	assert.NotNil(t, opts.Products)
	assert.NotNil(t, opts.Customers)
	assert.NotNil(t, opts.Sales)
	assert.True(t, opts.Online())
}
