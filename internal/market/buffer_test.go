package market

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, close float64) Bar {
	return Bar{
		OpenTime: t0.Add(time.Duration(i) * time.Minute),
		Open:     close, High: close, Low: close, Close: close,
		Volume: 1,
	}
}

func TestBufferEvictsOldest(t *testing.T) {
	buf := NewBuffer(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, buf.Append(bar(i, float64(100+i))))
	}

	snap := buf.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, 102.0, snap[0].Close)
	assert.Equal(t, 104.0, snap[2].Close)
	for _, b := range snap {
		assert.True(t, b.Closed)
	}
}

func TestBufferRejectsOlderBarAndReplacesSameOpenTime(t *testing.T) {
	buf := NewBuffer(4)
	require.NoError(t, buf.Append(bar(1, 100)))
	require.NoError(t, buf.Append(bar(2, 101)))

	assert.ErrorIs(t, buf.Append(bar(0, 99)), ErrOutOfOrder)

	require.NoError(t, buf.Append(bar(2, 105)))
	snap := buf.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 105.0, snap[1].Close)
}

func TestBufferSnapshotIsCopy(t *testing.T) {
	buf := NewBuffer(2)
	require.NoError(t, buf.Append(bar(0, 100)))

	snap := buf.Snapshot()
	snap[0].Close = 1

	last, ok := buf.Last()
	require.True(t, ok)
	assert.Equal(t, 100.0, last.Close)
}

func TestBufferCurrentClearedByClose(t *testing.T) {
	buf := NewBuffer(2)
	buf.SetCurrent(bar(0, 100))

	cur, ok := buf.Current()
	require.True(t, ok)
	assert.False(t, cur.Closed)

	require.NoError(t, buf.Append(bar(0, 101)))
	_, ok = buf.Current()
	assert.False(t, ok)
}

func TestBufferChangedWakesWaiters(t *testing.T) {
	buf := NewBuffer(2)
	ch := buf.Changed()

	go func() { _ = buf.Append(bar(0, 100)) }()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("append did not wake waiter")
	}
	got, ok := buf.After(t0.Add(-time.Minute))
	require.True(t, ok)
	assert.Equal(t, 100.0, got.Close)
}

func TestBufferConcurrentReadersStayBoundedAndOrdered(t *testing.T) {
	buf := NewBuffer(16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = buf.Append(bar(i, float64(i+1)))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := buf.Snapshot()
				if len(snap) > buf.Cap() {
					t.Errorf("snapshot exceeds capacity: %d", len(snap))
					return
				}
				for j := 1; j < len(snap); j++ {
					if snap[j].OpenTime.Before(snap[j-1].OpenTime) {
						t.Errorf("snapshot out of order at %d", j)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, buf.Len())
}

func TestBarValid(t *testing.T) {
	good := Bar{Open: 10, High: 12, Low: 9, Close: 11, Volume: 5}
	assert.True(t, good.Valid())

	bad := good
	bad.High = 10.5
	assert.False(t, bad.Valid())

	zero := good
	zero.Close = 0
	assert.False(t, zero.Valid())
}

func TestParseTimeframe(t *testing.T) {
	d, err := ParseTimeframe("15m")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)

	_, err = ParseTimeframe("7m")
	assert.Error(t, err)
}
