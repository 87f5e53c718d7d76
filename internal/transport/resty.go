package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lumen-io/client/internal/common"
	"github.com/lumen-io/client/internal/models"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 30 * time.Second

// RestyTransport sends descriptors through a shared resty client bound to
// one backend base URL.
type RestyTransport struct {
	client *resty.Client

	mu      sync.RWMutex
	headers http.Header
}

func NewRestyTransport(baseURL string, timeout time.Duration) *RestyTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", fmt.Sprintf("lumen/%s", common.GetBuildIdentifier()))

	return &RestyTransport{
		client:  client,
		headers: http.Header{},
	}
}

// Client exposes the underlying resty client, mainly for tests.
func (t *RestyTransport) Client() *resty.Client {
	return t.client
}

func (t *RestyTransport) SetCookieJar(jar http.CookieJar) {
	t.client.SetCookieJar(jar)
}

// SetDefaultHeader adds a header to every subsequent request. Request
// level headers win over defaults.
func (t *RestyTransport) SetDefaultHeader(key string, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.headers.Set(key, value)
}

func (t *RestyTransport) RemoveDefaultHeader(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.headers.Del(key)
}

func (t *RestyTransport) DefaultHeader(key string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.headers.Get(key)
}

func (t *RestyTransport) Send(ctx context.Context, req *models.RequestDescriptor) (*models.Response, error) {

	builder := t.client.R().
		SetContext(ctx).
		EnableTrace()

	t.mu.RLock()
	for key, values := range t.headers {
		builder.SetHeaderMultiValues(map[string][]string{key: values})
	}
	t.mu.RUnlock()

	if len(req.Header) > 0 {
		builder.SetHeaderMultiValues(req.Header)
	}

	if req.Body != nil {
		builder.SetBody(req.Body)
		if len(req.Header.Get("Content-Type")) == 0 {
			builder.SetHeader("Content-Type", "application/json")
		}
	}

	resp, err := builder.Execute(req.Method, req.URL)

	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": req.Method,
			"url":    req.URL,
		}).Debugln("Request failed without a response")
		return nil, &models.HTTPError{
			Request: req,
			Err:     err,
		}
	}

	logrus.WithFields(logrus.Fields{
		"method":   req.Method,
		"url":      req.URL,
		"status":   resp.StatusCode(),
		"duration": resp.Time(),
	}).Debugln("Request completed")

	if resp.IsError() {
		return nil, &models.HTTPError{
			StatusCode: resp.StatusCode(),
			Request:    req,
			Body:       resp.Body(),
		}
	}

	return &models.Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
		Request:    req,
	}, nil
}
