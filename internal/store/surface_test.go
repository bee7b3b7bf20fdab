package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurface_Lifecycle(t *testing.T) {
	s := NewSurface("page", 0)
	assert.Equal(t, StatusIdle, s.Snapshot().Status)

	_, ticket := s.Begin(context.Background())
	assert.True(t, s.Snapshot().Loading())

	require.True(t, s.Complete(ticket, 7))
	snap := s.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, 7, snap.Data)
	assert.Empty(t, snap.Error)
}

func TestSurface_FailKeepsStaleData(t *testing.T) {
	s := NewSurface("page", []string{})
	_, ticket := s.Begin(context.Background())
	s.Complete(ticket, []string{"row-1", "row-2"})

	_, ticket = s.Begin(context.Background())
	require.True(t, s.Fail(ticket, "Failed to fetch data"))

	snap := s.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "Failed to fetch data", snap.Error)
	assert.Equal(t, []string{"row-1", "row-2"}, snap.Data)
	assert.False(t, snap.Loading())
}

func TestSurface_BeginClearsError(t *testing.T) {
	s := NewSurface("page", 0)
	_, ticket := s.Begin(context.Background())
	s.Fail(ticket, "boom")

	s.Begin(context.Background())
	assert.Empty(t, s.Snapshot().Error)
}

func TestSurface_NewestRequestWins(t *testing.T) {
	s := NewSurface("page", "")
	firstCtx, first := s.Begin(context.Background())
	_, second := s.Begin(context.Background())

	assert.ErrorIs(t, firstCtx.Err(), context.Canceled, "superseded request is cancelled")

	require.True(t, s.Complete(second, "second"))
	assert.False(t, s.Complete(first, "first"), "late response of the older request is discarded")
	assert.False(t, s.Fail(first, "late failure"))

	snap := s.Snapshot()
	assert.Equal(t, "second", snap.Data)
	assert.Equal(t, StatusReady, snap.Status)
}

func TestSurface_StaysLoadingWhileNewestInFlight(t *testing.T) {
	s := NewSurface("page", "")
	_, first := s.Begin(context.Background())
	_, second := s.Begin(context.Background())

	s.Complete(first, "first")
	assert.True(t, s.Snapshot().Loading())
	assert.True(t, s.IsCurrent(second))
	assert.False(t, s.IsCurrent(first))
}

func TestSurface_ResetInvalidatesInFlight(t *testing.T) {
	s := NewSurface("search", "old")
	ctx, ticket := s.Begin(context.Background())

	s.Reset("")
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, s.Complete(ticket, "late"))
	assert.Equal(t, StatusIdle, s.Snapshot().Status)
	assert.Equal(t, "", s.Data())
}

func TestSurface_Observers(t *testing.T) {
	s := NewSurface("page", 0)

	var seen []Status
	unsubscribe := s.Subscribe(func(snap Snapshot[int]) {
		seen = append(seen, snap.Status)
	})

	_, ticket := s.Begin(context.Background())
	s.Complete(ticket, 1)
	assert.Equal(t, []Status{StatusLoading, StatusReady}, seen)

	unsubscribe()
	s.Begin(context.Background())
	assert.Len(t, seen, 2)
}

func TestSurface_ObserverMayReadSurface(t *testing.T) {
	s := NewSurface("page", 0)
	var got int
	s.Subscribe(func(snap Snapshot[int]) {
		got = s.Data()
	})

	_, ticket := s.Begin(context.Background())
	s.Complete(ticket, 42)
	assert.Equal(t, 42, got)
}

func TestSurface_SupersededDeliveryIsDropped(t *testing.T) {
	s := NewSurface("page", 0)

	var (
		mu   sync.Mutex
		seen []int
	)
	blocked := make(chan struct{})
	release := make(chan struct{})
	s.Subscribe(func(snap Snapshot[int]) {
		if snap.Status != StatusReady {
			return
		}
		mu.Lock()
		seen = append(seen, snap.Data)
		mu.Unlock()
		if snap.Data == 1 {
			close(blocked)
			<-release
		}
	})

	_, first := s.Begin(context.Background())
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		s.Complete(first, 1)
	}()
	<-blocked

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_, second := s.Begin(context.Background())
		s.Complete(second, 2)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-firstDone
	<-secondDone

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, 2, s.Data())
	assert.Equal(t, s.Data(), seen[len(seen)-1])
}

func TestSurface_StaleSnapshotNotDeliveredAfterNewer(t *testing.T) {
	s := NewSurface("page", 0)
	var seen []int
	s.Subscribe(func(snap Snapshot[int]) {
		seen = append(seen, snap.Data)
	})

	_, ticket := s.Begin(context.Background())
	s.mu.Lock()
	s.changedLocked()
	stale := s.snapshotLocked()
	observers := s.observersLocked()
	s.mu.Unlock()

	s.Complete(ticket, 5)
	s.notify(observers, stale)
	assert.Equal(t, []int{0, 5}, seen)
}

func TestSurface_Update(t *testing.T) {
	s := NewSurface("counter", 1)
	_, ticket := s.Begin(context.Background())
	require.True(t, s.Update(ticket, func(n int) int { return n + 1 }))
	assert.Equal(t, 2, s.Data())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "loading", StatusLoading.String())
	text, err := StatusError.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "error", string(text))
}

func TestSnapshot_Err(t *testing.T) {
	s := NewSurface("page", 0)
	assert.NoError(t, s.Snapshot().Err())

	_, ticket := s.Begin(context.Background())
	s.Fail(ticket, "Failed to fetch data for collection: issues")

	err := s.Snapshot().Err()
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch data for collection: issues", err.Error())
}
