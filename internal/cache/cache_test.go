package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock steps time manually so TTL expiry is deterministic.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(ttl time.Duration) (*Manager, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return New(ttl, WithClock(clk.now)), clk
}

func TestKey(t *testing.T) {
	require.Equal(t, "ns", Key("ns"))
	require.Equal(t, "ns:1", Key("ns", 1))
	require.Equal(t, "get_daily_transactions:01.06.2025,42", Key(NSDailyTransactions, "01.06.2025", 42))
}

func TestGetSet_TTLExpiry(t *testing.T) {
	m, clk := newTestCache(10 * time.Second)

	m.Set("k", "v")
	v, ok := m.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	clk.advance(9 * time.Second)
	_, ok = m.Get("k")
	require.True(t, ok, "entry should survive inside the TTL window")

	clk.advance(2 * time.Second)
	_, ok = m.Get("k")
	require.False(t, ok, "entry should expire after the TTL window")

	// The expired entry was evicted, not just hidden.
	st := m.Stats()
	require.Equal(t, 0, st.Size)
	require.Equal(t, int64(1), st.Invalidations)
}

func TestStats_Counters(t *testing.T) {
	m, _ := newTestCache(time.Minute)

	m.Set("a", 1)
	m.Get("a") // hit
	m.Get("a") // hit
	m.Get("b") // miss

	st := m.Stats()
	require.Equal(t, int64(2), st.Hits)
	require.Equal(t, int64(1), st.Misses)
	require.InDelta(t, 2.0/3.0, st.HitRate, 1e-9)
	require.Equal(t, 1, st.Size)
}

func TestStats_OldestAndLRU(t *testing.T) {
	m, clk := newTestCache(time.Hour)

	keys := []string{"k1", "k2", "k3", "k4", "k5", "k6"}
	for _, k := range keys {
		m.Set(k, k)
		clk.advance(time.Second)
	}
	for _, k := range keys {
		m.Get(k)
		clk.advance(time.Second)
	}
	m.Get("k1") // refresh access time, creation order unchanged

	st := m.Stats()
	require.Len(t, st.OldestKeys, 5)
	require.Equal(t, "k1", st.OldestKeys[0])
	require.Len(t, st.LeastRecentlyUsed, 5)
	require.Equal(t, "k2", st.LeastRecentlyUsed[0])
	require.Greater(t, st.AvgAge, time.Duration(0))
}

func TestInvalidatePattern(t *testing.T) {
	m, _ := newTestCache(time.Minute)

	m.Set(Key(NSGetTransaction, 1), "a")
	m.Set(Key(NSGetTransaction, 2), "b")
	m.Set(Key(NSDaySettings, 42), "c")

	m.InvalidatePattern(NSGetTransaction)

	_, ok := m.Get(Key(NSGetTransaction, 1))
	require.False(t, ok)
	_, ok = m.Get(Key(NSDaySettings, 42))
	require.True(t, ok, "unrelated namespace must survive")
	require.Equal(t, int64(2), m.Stats().Invalidations)
}

func TestInvalidateAll(t *testing.T) {
	m, _ := newTestCache(time.Minute)
	m.Set("a", 1)
	m.Set("b", 2)

	m.InvalidateAll()
	require.Equal(t, 0, m.Stats().Size)
	require.Equal(t, int64(2), m.Stats().Invalidations)
}

func TestOnWrite_Registry(t *testing.T) {
	m, _ := newTestCache(time.Minute)

	m.Set(Key(NSGetTransaction, 1), "tx")
	m.Set(Key(NSDailyStatistics, 42, "01.06.2025"), "stats")
	m.Set(Key(NSDaySettings, 42), "settings")
	m.Set(Key(NSIsDayOpen, 42), true)

	m.OnWrite(WriteAddTransaction)
	_, ok := m.Get(Key(NSGetTransaction, 1))
	require.False(t, ok, "transaction writes clear transaction reads")
	_, ok = m.Get(Key(NSDailyStatistics, 42, "01.06.2025"))
	require.False(t, ok, "transaction writes clear statistics")
	_, ok = m.Get(Key(NSDaySettings, 42))
	require.True(t, ok, "transaction writes leave settings alone")

	m.OnWrite(WriteSetDayStatus)
	_, ok = m.Get(Key(NSIsDayOpen, 42))
	require.False(t, ok, "day status writes clear the open flag")
	_, ok = m.Get(Key(NSDaySettings, 42))
	require.True(t, ok)

	m.OnWrite(WriteSaveDaySettings)
	_, ok = m.Get(Key(NSDaySettings, 42))
	require.False(t, ok)
}

func TestHooks(t *testing.T) {
	var hits, misses, invalidated int
	clk := &fakeClock{t: time.Now()}
	m := New(time.Minute, WithClock(clk.now), WithHooks(Hooks{
		OnHit:        func() { hits++ },
		OnMiss:       func() { misses++ },
		OnInvalidate: func(n int) { invalidated += n },
	}))

	m.Set("a", 1)
	m.Get("a")
	m.Get("b")
	m.Invalidate("a")

	require.Equal(t, 1, hits)
	require.Equal(t, 1, misses)
	require.Equal(t, 1, invalidated)
}

func TestThrough(t *testing.T) {
	m, _ := newTestCache(time.Minute)

	calls := 0
	fetch := func() ([]string, error) {
		calls++
		return []string{"row"}, nil
	}

	v, err := Through(m, "k", false, fetch)
	require.NoError(t, err)
	require.Equal(t, []string{"row"}, v)
	require.Equal(t, 1, calls)

	// Second read is served from cache.
	_, err = Through(m, "k", false, fetch)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// Force bypasses and refreshes the entry.
	_, err = Through(m, "k", true, fetch)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestThrough_DoesNotCacheEmptyOrErrors(t *testing.T) {
	m, _ := newTestCache(time.Minute)

	nilCalls := 0
	fetchNil := func() (*string, error) {
		nilCalls++
		return nil, nil
	}
	_, _ = Through(m, "nil", false, fetchNil)
	_, _ = Through(m, "nil", false, fetchNil)
	require.Equal(t, 2, nilCalls, "nil results must not be cached")

	emptyCalls := 0
	fetchEmpty := func() ([]int, error) {
		emptyCalls++
		return []int{}, nil
	}
	_, _ = Through(m, "empty", false, fetchEmpty)
	_, _ = Through(m, "empty", false, fetchEmpty)
	require.Equal(t, 2, emptyCalls, "empty collections must not be cached")

	errCalls := 0
	fetchErr := func() (int, error) {
		errCalls++
		return 0, errors.New("backend down")
	}
	_, err := Through(m, "err", false, fetchErr)
	require.Error(t, err)
	_, _ = Through(m, "err", false, fetchErr)
	require.Equal(t, 2, errCalls, "errors must not be cached")
}
