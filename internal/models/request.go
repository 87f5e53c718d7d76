package models

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const CorrelationHeader = "X-Correlation-ID"

// RequestDescriptor is an outgoing request as seen by the session layer.
// Retried is flipped by the failure classifier and guarantees a request
// is replayed at most once.
type RequestDescriptor struct {
	ID      uuid.UUID   `json:"id"`
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Header  http.Header `json:"header,omitempty"`
	Body    []byte      `json:"body,omitempty"`
	Retried bool        `json:"retried"`

	// Refresh generation current when the request was first sent
	CredentialGeneration uint64 `json:"-"`
}

func NewRequestDescriptor(method string, url string, body []byte) *RequestDescriptor {
	id := uuid.New()
	header := http.Header{}
	header.Set(CorrelationHeader, id.String())
	return &RequestDescriptor{
		ID:     id,
		Method: strings.ToUpper(method),
		URL:    url,
		Header: header,
		Body:   body,
	}
}

// Clone copies the descriptor so decorations never leak back into the
// caller's copy.
func (r *RequestDescriptor) Clone() *RequestDescriptor {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Header = r.Header.Clone()
	if clone.Header == nil {
		clone.Header = http.Header{}
	}
	if r.Body != nil {
		clone.Body = bytes.Clone(r.Body)
	}
	return &clone
}

func (r *RequestDescriptor) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.URL)
}

// Response is a completed 2xx exchange.
type Response struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body,omitempty"`
	Request    *RequestDescriptor
}

// HTTPError is returned by the transport for any failed exchange. A
// StatusCode of zero means no response was received at all.
type HTTPError struct {
	StatusCode int
	Request    *RequestDescriptor
	Body       []byte
	Err        error
}

func (e *HTTPError) Error() string {
	target := "request"
	if e.Request != nil {
		target = e.Request.String()
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s failed: %v", target, e.Err)
	}
	return fmt.Sprintf("%s failed with status %d", target, e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// HasResponse reports whether the server answered at all.
func (e *HTTPError) HasResponse() bool {
	return e.StatusCode != 0
}

func (e *HTTPError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}
