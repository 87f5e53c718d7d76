package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumen-io/client/internal/credentials"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBearerStrategy(t *testing.T) strategy.Strategy {
	t.Helper()
	store := credentials.NewMemoryStore()
	seedTokens(t, store, "expired", "refresh")
	return strategy.NewBearerStrategy(store)
}

func recordingSend(sent *[]string, mu *sync.Mutex) SendFunc {
	return func(ctx context.Context, req *models.RequestDescriptor) (*models.Response, error) {
		mu.Lock()
		*sent = append(*sent, req.URL)
		mu.Unlock()
		dispatched(ctx)
		return okResponse(req, `{}`), nil
	}
}

func TestCoordinator_ReleasesWaitersInOrder(t *testing.T) {
	unblock := make(chan struct{})
	auth := &fakeTransport{
		handler: func(_ context.Context, req *models.RequestDescriptor) (*models.Response, error) {
			<-unblock
			return okResponse(req, `{"access":"renewed"}`), nil
		},
	}

	observer := &recordingObserver{}
	var mu sync.Mutex
	var sent []string

	coordinator := NewCoordinator(CoordinatorOptions{
		Strategy: newBearerStrategy(t),
		Auth:     auth,
		Observer: observer,
	}, recordingSend(&sent, &mu))

	var wg sync.WaitGroup
	run := func(url string) {
		defer wg.Done()
		_, err := coordinator.Recover(context.Background(), models.NewRequestDescriptor(http.MethodGet, url, nil))
		assert.NoError(t, err)
	}

	wg.Add(1)
	go run("/api/leader")
	require.Eventually(t, coordinator.IsRefreshing, time.Second, time.Millisecond)

	expected := []string{}
	for i := 0; i < 4; i++ {
		url := fmt.Sprintf("/api/waiter/%d", i)
		expected = append(expected, url)

		wg.Add(1)
		go run(url)
		require.Eventually(t, func() bool { return observer.Queued() == i+1 }, time.Second, time.Millisecond)
	}

	close(unblock)
	wg.Wait()

	assert.Equal(t, expected, observer.Released())
	assert.Len(t, auth.Calls(), 1)

	// Waiters retry in queue order, then the caller that refreshed
	require.Len(t, sent, 5)
	assert.Equal(t, expected, sent[:4])
	assert.Equal(t, "/api/leader", sent[4])
	assert.False(t, coordinator.IsRefreshing())
	assert.Equal(t, uint64(1), coordinator.Generation())
}

func TestCoordinator_ReleasesWaitersWhenSendSkipsDispatch(t *testing.T) {
	unblock := make(chan struct{})
	auth := &fakeTransport{
		handler: func(_ context.Context, req *models.RequestDescriptor) (*models.Response, error) {
			<-unblock
			return okResponse(req, `{"access":"renewed"}`), nil
		},
	}

	observer := &recordingObserver{}
	var sends atomic.Int32

	coordinator := NewCoordinator(CoordinatorOptions{
		Strategy: newBearerStrategy(t),
		Auth:     auth,
		Observer: observer,
	}, func(_ context.Context, req *models.RequestDescriptor) (*models.Response, error) {
		sends.Add(1)
		return okResponse(req, `{}`), nil
	})

	var wg sync.WaitGroup
	run := func(url string) {
		defer wg.Done()
		_, err := coordinator.Recover(context.Background(), models.NewRequestDescriptor(http.MethodGet, url, nil))
		assert.NoError(t, err)
	}

	wg.Add(1)
	go run("/api/leader")
	require.Eventually(t, coordinator.IsRefreshing, time.Second, time.Millisecond)

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go run(fmt.Sprintf("/api/waiter/%d", i))
		require.Eventually(t, func() bool { return observer.Queued() == i+1 }, time.Second, time.Millisecond)
	}

	close(unblock)
	wg.Wait()

	assert.Equal(t, int32(4), sends.Load())
	assert.False(t, coordinator.IsRefreshing())
}

func TestCoordinator_RefreshFailureRejectsWaiters(t *testing.T) {
	unblock := make(chan struct{})
	auth := &fakeTransport{
		handler: func(_ context.Context, req *models.RequestDescriptor) (*models.Response, error) {
			<-unblock
			return nil, statusError(req, http.StatusUnauthorized)
		},
	}

	strat := newBearerStrategy(t)
	observer := &recordingObserver{}
	redirect := &redirectCounter{}
	var mu sync.Mutex
	var sent []string

	coordinator := NewCoordinator(CoordinatorOptions{
		Strategy: strat,
		Auth:     auth,
		Observer: observer,
		Redirect: redirect.Redirect,
	}, recordingSend(&sent, &mu))

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coordinator.Recover(context.Background(),
				models.NewRequestDescriptor(http.MethodGet, fmt.Sprintf("/api/%d", i), nil))
		}(i)
		if i == 0 {
			require.Eventually(t, coordinator.IsRefreshing, time.Second, time.Millisecond)
		} else {
			require.Eventually(t, func() bool { return observer.Queued() == i }, time.Second, time.Millisecond)
		}
	}

	close(unblock)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrRefreshExhausted)
	}
	assert.Empty(t, sent)
	assert.Equal(t, 1, redirect.Count())
	assert.Equal(t, 1, observer.lost)
	assert.False(t, strat.CanRefresh())
}

func TestCoordinator_StaleRequestReusesOutcome(t *testing.T) {
	auth := refreshTransport("renewed")
	observer := &recordingObserver{}
	redirect := &redirectCounter{}
	var mu sync.Mutex
	var sent []string

	coordinator := NewCoordinator(CoordinatorOptions{
		Strategy: newBearerStrategy(t),
		Auth:     auth,
		Observer: observer,
		Redirect: redirect.Redirect,
	}, recordingSend(&sent, &mu))

	first := models.NewRequestDescriptor(http.MethodGet, "/api/first", nil)
	_, err := coordinator.Recover(context.Background(), first)
	require.NoError(t, err)
	require.Equal(t, uint64(1), coordinator.Generation())

	// Sent before the refresh above settled
	late := models.NewRequestDescriptor(http.MethodGet, "/api/late", nil)
	late.CredentialGeneration = 0

	_, err = coordinator.Recover(context.Background(), late)
	require.NoError(t, err)

	assert.Len(t, auth.Calls(), 1)
	assert.Equal(t, 1, observer.stale)
	assert.Equal(t, []string{"/api/first", "/api/late"}, sent)
	assert.Equal(t, 0, redirect.Count())
}

func TestCoordinator_StaleRequestAfterFailureDoesNotRedirectAgain(t *testing.T) {
	auth := failingTransport(http.StatusUnauthorized)
	redirect := &redirectCounter{}
	var mu sync.Mutex
	var sent []string

	coordinator := NewCoordinator(CoordinatorOptions{
		Strategy: newBearerStrategy(t),
		Auth:     auth,
		Redirect: redirect.Redirect,
	}, recordingSend(&sent, &mu))

	_, err := coordinator.Recover(context.Background(), models.NewRequestDescriptor(http.MethodGet, "/api/first", nil))
	require.ErrorIs(t, err, ErrRefreshExhausted)

	_, err = coordinator.Recover(context.Background(), models.NewRequestDescriptor(http.MethodGet, "/api/late", nil))
	require.ErrorIs(t, err, ErrRefreshExhausted)

	assert.Len(t, auth.Calls(), 1)
	assert.Equal(t, 1, redirect.Count())
	assert.Empty(t, sent)
}

func TestCoordinator_RefreshTimeout(t *testing.T) {
	auth := &fakeTransport{
		handler: func(ctx context.Context, req *models.RequestDescriptor) (*models.Response, error) {
			<-ctx.Done()
			return nil, &models.HTTPError{Request: req, Err: ctx.Err()}
		},
	}

	redirect := &redirectCounter{}
	var mu sync.Mutex
	var sent []string

	coordinator := NewCoordinator(CoordinatorOptions{
		Strategy: newBearerStrategy(t),
		Auth:     auth,
		Redirect: redirect.Redirect,
		Timeout:  50 * time.Millisecond,
	}, recordingSend(&sent, &mu))

	started := time.Now()
	_, err := coordinator.Recover(context.Background(), models.NewRequestDescriptor(http.MethodGet, "/api/slow", nil))

	require.ErrorIs(t, err, ErrRefreshExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, 1, redirect.Count())
	assert.False(t, coordinator.IsRefreshing())
}

func TestCoordinator_CallerCancellationDoesNotAbortRefresh(t *testing.T) {
	auth := refreshTransport("renewed")
	strat := newBearerStrategy(t)

	coordinator := NewCoordinator(CoordinatorOptions{
		Strategy: strat,
		Auth:     auth,
	}, func(ctx context.Context, req *models.RequestDescriptor) (*models.Response, error) {
		return nil, &models.HTTPError{Request: req, Err: ctx.Err()}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := coordinator.Recover(ctx, models.NewRequestDescriptor(http.MethodGet, "/api/cancelled", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	access, ok := strat.Store().Get(models.AccessTokenName)
	require.True(t, ok)
	assert.Equal(t, "renewed", access)
}

func TestCoordinator_MissingAccessTokenIsFailure(t *testing.T) {
	auth := &fakeTransport{
		handler: func(_ context.Context, req *models.RequestDescriptor) (*models.Response, error) {
			return okResponse(req, `{}`), nil
		},
	}
	redirect := &redirectCounter{}
	var mu sync.Mutex
	var sent []string

	coordinator := NewCoordinator(CoordinatorOptions{
		Strategy: newBearerStrategy(t),
		Auth:     auth,
		Redirect: redirect.Redirect,
	}, recordingSend(&sent, &mu))

	_, err := coordinator.Recover(context.Background(), models.NewRequestDescriptor(http.MethodGet, "/api/x", nil))
	require.ErrorIs(t, err, ErrRefreshExhausted)
	assert.ErrorIs(t, err, strategy.ErrMissingAccessToken)
	assert.Equal(t, 1, redirect.Count())
}
