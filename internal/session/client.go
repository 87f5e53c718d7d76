package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/strategy"
	"github.com/lumen-io/client/internal/transport"
	"github.com/sirupsen/logrus"
)

type ClientOptions struct {
	Strategy strategy.Strategy

	// API is the protected backend, Auth serves login and refresh
	API  transport.Transport
	Auth transport.Transport

	Endpoints      Endpoints
	Redirect       RedirectFunc
	Observer       Observer
	RefreshTimeout time.Duration
}

// Client sends requests to the protected backend and transparently
// recovers from expired credentials.
type Client struct {
	api         transport.Transport
	strategy    strategy.Strategy
	classifier  *Classifier
	coordinator *Coordinator
}

func NewClient(opts ClientOptions) *Client {
	if len(opts.Endpoints.Refresh) == 0 {
		opts.Endpoints = DefaultEndpoints()
	}

	if configurable, ok := opts.API.(transport.Configurable); ok {
		opts.Strategy.ConfigureTransport(configurable)
	}
	if configurable, ok := opts.Auth.(transport.Configurable); ok {
		opts.Strategy.ConfigureTransport(configurable)
	}

	client := &Client{
		api:        opts.API,
		strategy:   opts.Strategy,
		classifier: NewClassifier(opts.Endpoints.Patterns()...),
	}

	client.coordinator = NewCoordinator(CoordinatorOptions{
		Strategy:  opts.Strategy,
		Auth:      opts.Auth,
		Endpoints: opts.Endpoints,
		Redirect:  opts.Redirect,
		Observer:  opts.Observer,
		Timeout:   opts.RefreshTimeout,
	}, client.send)

	return client
}

func (c *Client) Strategy() strategy.Strategy {
	return c.strategy
}

// Do sends req. A first 401 on a non-auth endpoint is absorbed by a
// refresh and a single replay; everything else is returned unchanged.
func (c *Client) Do(ctx context.Context, req *models.RequestDescriptor) (*models.Response, error) {

	// Read before the credential so a refresh racing with this send is
	// detected as stale rather than expired.
	req.CredentialGeneration = c.coordinator.Generation()

	resp, err := c.send(ctx, req)
	if err == nil {
		return resp, nil
	}

	verdict := c.classifier.Classify(req, err)

	logrus.WithError(err).WithFields(logrus.Fields{
		"method":  req.Method,
		"url":     req.URL,
		"verdict": verdict.String(),
	}).Debugln("Request failed")

	if verdict != Eligible {
		return nil, err
	}

	return c.coordinator.Recover(ctx, req)
}

func (c *Client) send(ctx context.Context, req *models.RequestDescriptor) (*models.Response, error) {
	authenticated := c.strategy.Authenticate(req)
	dispatched(ctx)
	return c.api.Send(ctx, authenticated)
}

func (c *Client) Get(ctx context.Context, url string) (*models.Response, error) {
	return c.Do(ctx, models.NewRequestDescriptor(http.MethodGet, url, nil))
}

func (c *Client) Delete(ctx context.Context, url string) (*models.Response, error) {
	return c.Do(ctx, models.NewRequestDescriptor(http.MethodDelete, url, nil))
}

func (c *Client) Post(ctx context.Context, url string, body any) (*models.Response, error) {
	return c.withBody(ctx, http.MethodPost, url, body)
}

func (c *Client) Put(ctx context.Context, url string, body any) (*models.Response, error) {
	return c.withBody(ctx, http.MethodPut, url, body)
}

func (c *Client) Patch(ctx context.Context, url string, body any) (*models.Response, error) {
	return c.withBody(ctx, http.MethodPatch, url, body)
}

func (c *Client) withBody(ctx context.Context, method string, url string, body any) (*models.Response, error) {
	var payload []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = b
	case json.RawMessage:
		payload = b
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = encoded
	}
	return c.Do(ctx, models.NewRequestDescriptor(method, url, payload))
}
