package session

import (
	"errors"
	"strings"

	"github.com/lumen-io/client/internal/models"
	"github.com/sirupsen/logrus"
)

type Verdict int

const (
	NotEligible Verdict = iota
	Eligible
)

func (v Verdict) String() string {
	if v == Eligible {
		return "eligible"
	}
	return "not-eligible"
}

// Classifier decides whether a failed request may be recovered through a
// token refresh.
type Classifier struct {
	authPatterns []string
}

func NewClassifier(authPatterns ...string) *Classifier {
	if len(authPatterns) == 0 {
		authPatterns = DefaultAuthPatterns
	}
	return &Classifier{
		authPatterns: authPatterns,
	}
}

func (c *Classifier) IsAuthURL(url string) bool {
	if len(url) == 0 {
		return false
	}
	for _, pattern := range c.authPatterns {
		if strings.Contains(url, pattern) {
			return true
		}
	}
	return false
}

// Classify applies the rules in order and marks req as retried when it is
// handed to the refresh coordinator.
func (c *Classifier) Classify(req *models.RequestDescriptor, err error) Verdict {
	var httpErr *models.HTTPError
	if req == nil || !errors.As(err, &httpErr) || !httpErr.HasResponse() {
		return NotEligible
	}

	if req.Retried {
		logrus.WithField("url", req.URL).Debugln("Request already retried, not refreshing again")
		return NotEligible
	}

	if c.IsAuthURL(req.URL) {
		return NotEligible
	}

	if !httpErr.IsUnauthorized() {
		return NotEligible
	}

	req.Retried = true
	return Eligible
}
