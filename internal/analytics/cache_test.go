package analytics

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
	"github.com/odyssey-erp/invoice-analytics/internal/ledger/memory"
)

func newCachedService(t *testing.T, accessor ledger.Accessor) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(accessor, NewCache(client, time.Minute)).WithNow(func() time.Time { return refNow })
	return svc, mr
}

func TestTopVendorsCachesUntilBump(t *testing.T) {
	counting := &countingLedger{Store: memory.New()}
	addVendor(t, counting.Store, "v1", strPtr("Acme"))
	addInvoice(t, counting.Store, "v1", refNow.AddDate(0, -1, 0), 100, ledger.StatusPaid, nil, nil)

	svc, _ := newCachedService(t, counting)
	ctx := context.Background()

	first, err := svc.GetTopVendors(ctx, 5)
	require.NoError(t, err)
	require.Len(t, first, 1)
	calls := counting.calls.Load()
	require.NotZero(t, calls)

	second, err := svc.GetTopVendors(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, calls, counting.calls.Load(), "second call must be served from cache")

	addInvoice(t, counting.Store, "v1", refNow.AddDate(0, -1, 0), 50, ledger.StatusPaid, nil, nil)
	require.NoError(t, svc.Cache().Bump(ctx))

	third, err := svc.GetTopVendors(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, 150.0, third[0].TotalSpend)
	require.Greater(t, counting.calls.Load(), calls)
}

func TestWarmedEntriesServeLaterRequestsSameDay(t *testing.T) {
	counting := &countingLedger{Store: memory.New()}
	addVendor(t, counting.Store, "v1", strPtr("Acme"))
	due := refNow.AddDate(0, 0, 10)
	addInvoice(t, counting.Store, "v1", refNow.AddDate(0, -1, 0), 100, ledger.StatusPending, strPtr("Office"), &due)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, 10*time.Minute)

	clock := refNow
	svc := NewService(counting, cache).WithNow(func() time.Time { return clock })
	ctx := context.Background()

	loadAll := func() {
		t.Helper()
		_, err := svc.GetOverviewStatistics(ctx)
		require.NoError(t, err)
		_, err = svc.GetTrendSeries(ctx, DefaultTrendMonths)
		require.NoError(t, err)
		_, err = svc.GetTopVendors(ctx, DefaultVendorLimit)
		require.NoError(t, err)
		_, err = svc.GetCategoryDistribution(ctx)
		require.NoError(t, err)
		_, err = svc.GetCashOutflowForecast(ctx)
		require.NoError(t, err)
	}

	loadAll()
	warmed := counting.calls.Load()
	require.NotZero(t, warmed)

	clock = refNow.Add(2 * time.Minute)
	loadAll()
	require.Equal(t, warmed, counting.calls.Load(), "requests inside the TTL must reuse warmed entries")

	mr.FastForward(11 * time.Minute)
	loadAll()
	require.Greater(t, counting.calls.Load(), warmed, "expired entries must be recomputed")
}

func TestCacheKeyChangesAtDayBoundary(t *testing.T) {
	late := time.Date(2025, time.December, 31, 23, 59, 0, 0, time.UTC)
	sameDay := cacheKey(metricOverview, late.Add(-time.Hour))
	nextDay := cacheKey(metricOverview, late.Add(2*time.Minute))

	require.Equal(t, cacheKey(metricOverview, late), sameDay)
	require.NotEqual(t, sameDay, nextDay)
	require.Equal(t, []string{"analytics", metricVendors, "5", "20251231"}, cacheKey(metricVendors, late, "5"))
}

func TestCacheKeysIncludeParameters(t *testing.T) {
	counting := &countingLedger{Store: memory.New()}
	svc, _ := newCachedService(t, counting)
	ctx := context.Background()

	three, err := svc.GetTrendSeries(ctx, 3)
	require.NoError(t, err)
	six, err := svc.GetTrendSeries(ctx, 6)
	require.NoError(t, err)
	require.Len(t, three, 3)
	require.Len(t, six, 6)
}

func TestCacheDegradesWhenRedisIsDown(t *testing.T) {
	store := memory.New()
	addInvoice(t, store, "v1", refNow, 42, ledger.StatusPaid, strPtr("Office"), nil)
	svc, mr := newCachedService(t, store)
	mr.Close()

	shares, err := svc.GetCategoryDistribution(context.Background())
	require.NoError(t, err)
	require.Len(t, shares, 1)
	require.Equal(t, 100.0, shares[0].Percentage)
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)

	svc := NewService(failingLedger{}, cache).WithNow(func() time.Time { return refNow })
	_, err := svc.GetCashOutflowForecast(context.Background())
	require.ErrorIs(t, err, errLedgerDown)

	keys := mr.Keys()
	require.Equal(t, []string{cacheVersionKey}, keys)
}

func TestZeroTTLDisablesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.False(t, NewCache(client, 0).Enabled())
	require.False(t, (*Cache)(nil).Enabled())
	require.NoError(t, (*Cache)(nil).Bump(context.Background()))
}

func TestListenForInvalidationAppliesRemoteBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cache.ListenForInvalidation(ctx, ""))

	require.NoError(t, client.Publish(ctx, BumpChannel, "7").Err())
	require.Eventually(t, func() bool {
		ver, err := cache.Version(ctx)
		return err == nil && ver == 7
	}, time.Second, 10*time.Millisecond)
}

type lookupCounter struct{ hits, misses int }

func (l *lookupCounter) ObserveCacheLookup(hit bool) {
	if hit {
		l.hits++
		return
	}
	l.misses++
}

func TestCacheReportsLookups(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	observer := &lookupCounter{}
	svc := NewService(memory.New(), NewCache(client, time.Minute).WithObserver(observer)).
		WithNow(func() time.Time { return refNow })

	ctx := context.Background()
	_, err := svc.GetOverviewStatistics(ctx)
	require.NoError(t, err)
	_, err = svc.GetOverviewStatistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, observer.hits)
	require.Equal(t, 1, observer.misses)
}

func TestSharedLoadSurvivesCallerCancellation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute).WithLoadTimeout(5 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	loadErr := make(chan error, 1)
	loader := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		loadErr <- ctx.Err()
		return []int{1, 2, 3}, nil
	}

	callerCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		var out []int
		firstErr <- cache.FetchJSON(callerCtx, "analytics:test:1", &out, loader)
	}()

	<-started
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	require.NoError(t, <-loadErr, "loader context must outlive the caller")
	require.Eventually(t, func() bool { return mr.Exists("analytics:test:1") }, time.Second, 10*time.Millisecond)

	var out []int
	require.NoError(t, cache.FetchJSON(context.Background(), "analytics:test:1", &out, func(context.Context) (any, error) {
		return nil, errLedgerDown
	}), "entry written by the detached load must be reused")
	require.Equal(t, []int{1, 2, 3}, out)
}

func TestSharedLoadHonoursLoadTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute).WithLoadTimeout(20 * time.Millisecond)

	var out []int
	err := cache.FetchJSON(context.Background(), "analytics:slow:1", &out, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, mr.Exists("analytics:slow:1"))
}
