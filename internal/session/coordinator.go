package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/strategy"
	"github.com/lumen-io/client/internal/transport"
	"github.com/sirupsen/logrus"
)

const DefaultRefreshTimeout = 10 * time.Second

// RedirectFunc is invoked when the session is lost for good. The host
// decides what "go to login" means.
type RedirectFunc func(reason error)

// SendFunc authenticates and sends a request without any recovery.
type SendFunc func(ctx context.Context, req *models.RequestDescriptor) (*models.Response, error)

type dispatchKey struct{}

// withDispatched attaches fn to ctx. A SendFunc calls dispatched right
// before handing the authenticated request to its transport.
func withDispatched(ctx context.Context, fn func()) context.Context {
	return context.WithValue(ctx, dispatchKey{}, fn)
}

func dispatched(ctx context.Context) {
	if fn, ok := ctx.Value(dispatchKey{}).(func()); ok {
		fn()
	}
}

type coordinatorState int

const (
	stateIdle coordinatorState = iota
	stateRefreshing
)

func (s coordinatorState) String() string {
	if s == stateRefreshing {
		return "refreshing"
	}
	return "idle"
}

// waiter is one caller parked on an in-flight refresh. result is written
// exactly once; on success the caller acknowledges when its retry is
// dispatched, before the next waiter is released, so retries reach the
// transport in queue order.
type waiter struct {
	req    *models.RequestDescriptor
	result chan error
	ack    chan struct{}
}

type CoordinatorOptions struct {
	Strategy  strategy.Strategy
	Auth      transport.Transport
	Endpoints Endpoints
	Redirect  RedirectFunc
	Observer  Observer
	Timeout   time.Duration
}

// Coordinator guarantees at most one refresh call is in flight. Callers
// that fail while a refresh runs are queued and replayed once it settles.
type Coordinator struct {
	strategy  strategy.Strategy
	auth      transport.Transport
	endpoints Endpoints
	redirect  RedirectFunc
	observer  Observer
	timeout   time.Duration
	send      SendFunc

	mu      sync.Mutex
	state   coordinatorState
	waiters []*waiter
	lastErr error

	// Incremented every time a refresh settles
	generation atomic.Uint64
}

func NewCoordinator(opts CoordinatorOptions, send SendFunc) *Coordinator {
	if opts.Observer == nil {
		opts.Observer = NopObserver()
	}
	if opts.Redirect == nil {
		opts.Redirect = func(reason error) {
			logrus.WithError(reason).Warnln("Session lost, login required")
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRefreshTimeout
	}
	if len(opts.Endpoints.Refresh) == 0 {
		opts.Endpoints = DefaultEndpoints()
	}

	return &Coordinator{
		strategy:  opts.Strategy,
		auth:      opts.Auth,
		endpoints: opts.Endpoints,
		redirect:  opts.Redirect,
		observer:  opts.Observer,
		timeout:   opts.Timeout,
		send:      send,
	}
}

// Generation counts settled refreshes. Requests record it before they are
// sent so a late failure can tell whether a refresh already happened.
func (c *Coordinator) Generation() uint64 {
	return c.generation.Load()
}

func (c *Coordinator) IsRefreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRefreshing
}

// Recover refreshes the session (or joins the refresh in flight) and
// replays req once with the new credential. Queued callers cannot cancel
// their wait; ctx only applies to the replay.
func (c *Coordinator) Recover(ctx context.Context, req *models.RequestDescriptor) (*models.Response, error) {

	c.mu.Lock()

	if c.state == stateRefreshing {
		w := &waiter{
			req:    req,
			result: make(chan error, 1),
			ack:    make(chan struct{}, 1),
		}
		c.waiters = append(c.waiters, w)
		queued := len(c.waiters)
		c.mu.Unlock()

		c.observer.WaiterQueued(req)
		logrus.WithFields(logrus.Fields{
			"url":    req.URL,
			"queued": queued,
		}).Debugln("Refresh in flight, waiting")

		if err := <-w.result; err != nil {
			return nil, err
		}

		// The next waiter is released once this retry reaches the
		// transport, or when the send returns without reporting it
		var once sync.Once
		ack := func() {
			once.Do(func() { w.ack <- struct{}{} })
		}
		resp, err := c.send(withDispatched(ctx, ack), req)
		ack()
		return resp, err
	}

	// A refresh settled after this request was sent: its outcome applies
	// here too.
	if req.CredentialGeneration < c.generation.Load() {
		lastErr := c.lastErr
		c.mu.Unlock()

		c.observer.StaleRetry(req)
		if lastErr != nil {
			return nil, lastErr
		}
		logrus.WithField("url", req.URL).Debugln("Credential refreshed since request was sent, retrying")
		return c.send(ctx, req)
	}

	if !c.strategy.CanRefresh() {
		err := fmt.Errorf("%w: no refresh credential available", ErrRefreshExhausted)
		// Requests already in flight share this outcome instead of
		// redirecting again
		c.lastErr = err
		c.generation.Add(1)
		c.mu.Unlock()

		logrus.WithField("url", req.URL).Warnln("No refresh token available, forcing logout")
		c.teardown(err)
		return nil, err
	}

	c.state = stateRefreshing
	c.mu.Unlock()

	c.observer.RefreshStarted()
	started := time.Now()

	err := c.refresh()

	c.observer.RefreshFinished(err, time.Since(started))

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRefreshExhausted, err)
		logrus.WithError(err).Errorln("Token refresh failed, logging out")
		c.release(c.detach(), err)
		c.teardown(err)
		c.settle(err)
		return nil, err
	}

	logrus.WithField("url", req.URL).Infoln("Session refreshed")
	c.settle(nil)

	return c.send(ctx, req)
}

// refresh issues the single refresh call and persists its result. It uses
// its own deadline: once started it runs to completion whatever happens
// to the caller.
func (c *Coordinator) refresh() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	body, err := json.Marshal(c.strategy.RefreshBody())
	if err != nil {
		return fmt.Errorf("failed to encode refresh request: %w", err)
	}

	resp, err := c.auth.Send(ctx, models.NewRequestDescriptor(http.MethodPost, c.endpoints.Refresh, body))
	if err != nil {
		return err
	}

	var tokens models.TokenResponse
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &tokens); err != nil {
			return fmt.Errorf("failed to decode refresh response: %w", err)
		}
	}

	if err := c.strategy.Persist(&tokens); err != nil {
		return err
	}

	// Keep a primed auth transport on the new access token
	if configurable, ok := c.auth.(transport.Configurable); ok {
		c.strategy.Prime(configurable)
	}
	return nil
}

// detach takes the current queue. The coordinator stays in the
// refreshing state so late callers keep queueing instead of starting a
// second refresh.
func (c *Coordinator) detach() []*waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := c.waiters
	c.waiters = nil
	return waiters
}

// release resolves waiters in FIFO order.
func (c *Coordinator) release(waiters []*waiter, err error) {
	for _, w := range waiters {
		c.observer.WaiterReleased(w.req, err)
		w.result <- err
		if err == nil {
			<-w.ack
		}
	}
}

// settle drains the queue until it is empty and returns to idle in the
// same critical section, so no caller can join a refresh that is over.
func (c *Coordinator) settle(err error) {
	for {
		c.mu.Lock()
		waiters := c.waiters
		c.waiters = nil
		if len(waiters) == 0 {
			c.lastErr = err
			c.generation.Add(1)
			c.state = stateIdle
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		c.release(waiters, err)
	}
}

func (c *Coordinator) teardown(reason error) {
	if configurable, ok := c.auth.(transport.Configurable); ok {
		c.strategy.Unprime(configurable)
	}
	if err := c.strategy.Clear(); err != nil {
		logrus.WithError(err).Errorln("Failed to clear credentials")
	}
	c.observer.SessionLost(reason)
	c.redirect(reason)
}
