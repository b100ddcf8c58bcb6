package dbpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPooledConnection() *PooledConnection {
	pc := newPooledConnection(&fakeConn{d: &fakeDriver{}})
	return pc
}

func TestIdleQueuePollEmpty(t *testing.T) {
	q := newIdleQueue(2)
	_, ok := q.poll()
	assert.False(t, ok)
}

func TestIdleQueueOfferThenPoll(t *testing.T) {
	q := newIdleQueue(2)
	pc := newTestPooledConnection()
	q.offer(pc)

	got, ok := q.poll()
	require.True(t, ok)
	assert.Same(t, pc, got)

	_, ok = q.poll()
	assert.False(t, ok)
}

func TestIdleQueueReceiveBlocksUntilOffer(t *testing.T) {
	q := newIdleQueue(2)
	pc := newTestPooledConnection()

	result := make(chan *PooledConnection, 1)
	go func() {
		c, err := q.receive(context.Background())
		require.NoError(t, err)
		result <- c
	}()

	select {
	case <-result:
		t.Fatal("receive returned before any connection was offered")
	case <-time.After(50 * time.Millisecond):
	}

	q.offer(pc)

	select {
	case got := <-result:
		assert.Same(t, pc, got)
	case <-time.After(time.Second):
		t.Fatal("receive never unblocked after offer")
	}
}

func TestIdleQueueReceiveRespectsContext(t *testing.T) {
	q := newIdleQueue(2)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// terminate() must wake any goroutine blocked in receive() with
// ErrPoolTerminated, rather than leaving it parked forever.
func TestIdleQueueTerminateWakesReceivers(t *testing.T) {
	q := newIdleQueue(2)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.receive(context.Background())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	q.terminate()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrPoolTerminated)
	case <-time.After(time.Second):
		t.Fatal("receive never woke up on terminate")
	}
}

// Connections already buffered at the moment of terminate() must still be
// found by poll() afterward — terminate must not strand them.
func TestIdleQueueTerminateMigratesBufferedConnections(t *testing.T) {
	q := newIdleQueue(2)
	pc := newTestPooledConnection()
	q.offer(pc)

	q.terminate()

	got, ok := q.poll()
	require.True(t, ok)
	assert.Same(t, pc, got)
}

// offer() made after terminate() must neither panic nor block, and must
// still be retrievable via poll().
func TestIdleQueueOfferAfterTerminate(t *testing.T) {
	q := newIdleQueue(2)
	q.terminate()

	pc := newTestPooledConnection()
	require.NotPanics(t, func() { q.offer(pc) })

	got, ok := q.poll()
	require.True(t, ok)
	assert.Same(t, pc, got)
}

// A producer racing terminate() must never observe a channel that closes
// mid-send: offer's read-then-send is not a single atomic step, so
// without closeMu an offer could read the live channel pointer just
// before terminate closes it and then panic sending on a closed channel.
// This hammers that race from many goroutines; it must complete cleanly
// regardless of interleaving.
func TestIdleQueueOfferNeverRacesTerminateClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		q := newIdleQueue(64)

		var wg sync.WaitGroup
		for j := 0; j < 32; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NotPanics(t, func() { q.offer(newTestPooledConnection()) })
			}()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			q.terminate()
		}()

		wg.Wait()
	}
}
