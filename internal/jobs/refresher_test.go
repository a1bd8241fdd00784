package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maltedev/dampfi-automation/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls   atomic.Int32
	summary catalog.RefreshSummary
	err     error
	block   chan struct{}
}

func (c *countingRefresher) RefreshAll(ctx context.Context) (catalog.RefreshSummary, error) {
	c.calls.Add(1)
	if c.block != nil {
		<-c.block
	}
	return c.summary, c.err
}

func TestRefresherDisabled(t *testing.T) {
	products := &countingRefresher{}
	r := NewRefresher(products, 0, slog.Default())

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled refresher did not return")
	}
	assert.Zero(t, products.calls.Load())
	assert.False(t, r.Status().Enabled)
}

func TestRefresherTicks(t *testing.T) {
	products := &countingRefresher{summary: catalog.RefreshSummary{Total: 3, Refreshed: 3}}
	r := NewRefresher(products, 10*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return products.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	status := r.Status()
	assert.True(t, status.Enabled)
	assert.Equal(t, "10ms", status.Interval)
	require.NotNil(t, status.LastSummary)
	assert.Equal(t, 3, status.LastSummary.Refreshed)
	assert.NotNil(t, status.LastStarted)
}

func TestRefresherRecordsError(t *testing.T) {
	products := &countingRefresher{err: errors.New("database unavailable")}
	r := NewRefresher(products, time.Hour, slog.Default())

	assert.True(t, r.RunOnce(context.Background()))
	assert.Equal(t, "database unavailable", r.Status().LastError)
	assert.False(t, r.Status().Running)
}

func TestRefresherSkipsOverlappingRuns(t *testing.T) {
	products := &countingRefresher{block: make(chan struct{})}
	r := NewRefresher(products, time.Hour, slog.Default())

	first := make(chan bool)
	go func() { first <- r.RunOnce(context.Background()) }()

	require.Eventually(t, func() bool { return r.Status().Running }, time.Second, time.Millisecond)
	assert.False(t, r.RunOnce(context.Background()))

	close(products.block)
	assert.True(t, <-first)
	assert.Equal(t, int32(1), products.calls.Load())
}
