package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumen-io/client/internal/credentials"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/strategy"
	"github.com/lumen-io/client/internal/testing/mocks"
	"github.com/lumen-io/client/internal/transport"
	"github.com/stretchr/testify/require"
)

// fakeTransport answers every request through handler and records what it
// was sent.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []*models.RequestDescriptor
	handler func(ctx context.Context, req *models.RequestDescriptor) (*models.Response, error)
}

func (f *fakeTransport) Send(ctx context.Context, req *models.RequestDescriptor) (*models.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.handler(ctx, req)
}

func (f *fakeTransport) Calls() []*models.RequestDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.RequestDescriptor{}, f.calls...)
}

func statusError(req *models.RequestDescriptor, status int) error {
	return &models.HTTPError{StatusCode: status, Request: req}
}

func okResponse(req *models.RequestDescriptor, body string) *models.Response {
	return &models.Response{StatusCode: http.StatusOK, Body: []byte(body), Request: req}
}

func refreshTransport(access string) *fakeTransport {
	return &fakeTransport{
		handler: func(_ context.Context, req *models.RequestDescriptor) (*models.Response, error) {
			return okResponse(req, `{"access":"`+access+`"}`), nil
		},
	}
}

func failingTransport(status int) *fakeTransport {
	return &fakeTransport{
		handler: func(_ context.Context, req *models.RequestDescriptor) (*models.Response, error) {
			return nil, statusError(req, status)
		},
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	finished int
	stale    int
	lost     int
	queued   []string
	released []string
}

func (r *recordingObserver) RefreshStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recordingObserver) RefreshFinished(error, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
}

func (r *recordingObserver) WaiterQueued(req *models.RequestDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued = append(r.queued, req.URL)
}

func (r *recordingObserver) WaiterReleased(req *models.RequestDescriptor, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, req.URL)
}

func (r *recordingObserver) StaleRetry(*models.RequestDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func (r *recordingObserver) SessionLost(error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost++
}

func (r *recordingObserver) Queued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queued)
}

func (r *recordingObserver) Released() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.released...)
}

type redirectCounter struct {
	count  atomic.Int32
	reason atomic.Value
}

func (r *redirectCounter) Redirect(reason error) {
	r.count.Add(1)
	r.reason.Store(reason)
}

func (r *redirectCounter) Count() int {
	return int(r.count.Load())
}

type testClient struct {
	client   *Client
	auth     *transport.RestyTransport
	store    credentials.Store
	redirect *redirectCounter
	observer *recordingObserver
}

func setupBearerClient(t *testing.T, server *mocks.AuthServer) *testClient {
	t.Helper()

	store := credentials.NewMemoryStore()
	strat, err := strategy.New(models.StrategyBearer, store)
	require.NoError(t, err)

	return newTestClient(server, strat)
}

func setupCookieClient(t *testing.T, server *mocks.AuthServer) *testClient {
	t.Helper()

	jar, err := credentials.NewCookieJar()
	require.NoError(t, err)
	store, err := credentials.NewCookieStore(jar, server.URL())
	require.NoError(t, err)
	strat, err := strategy.New(models.StrategyCookie, store)
	require.NoError(t, err)

	return newTestClient(server, strat)
}

func newTestClient(server *mocks.AuthServer, strat strategy.Strategy) *testClient {
	redirect := &redirectCounter{}
	observer := &recordingObserver{}
	auth := transport.NewRestyTransport(server.URL(), 5*time.Second)

	client := NewClient(ClientOptions{
		Strategy:       strat,
		API:            transport.NewRestyTransport(server.URL(), 5*time.Second),
		Auth:           auth,
		Redirect:       redirect.Redirect,
		Observer:       observer,
		RefreshTimeout: 2 * time.Second,
	})

	return &testClient{
		client:   client,
		auth:     auth,
		store:    strat.Store(),
		redirect: redirect,
		observer: observer,
	}
}

func seedTokens(t *testing.T, store credentials.Store, access string, refresh string) {
	t.Helper()
	if len(access) > 0 {
		require.NoError(t, store.Set(models.AccessTokenName, access,
			credentials.DefaultOptions(models.AccessTokenName, false)))
	}
	if len(refresh) > 0 {
		require.NoError(t, store.Set(models.RefreshTokenName, refresh,
			credentials.DefaultOptions(models.RefreshTokenName, false)))
	}
}

func statusOf(err error) int {
	var httpErr *models.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
