package state

import (
	"sync"

	"github.com/lumen-io/client/internal/models"
	"github.com/sirupsen/logrus"
)

// Reduce maps the current state and an event to the next state. Unknown
// events leave the state untouched.
func Reduce(current models.SessionState, event Event) models.SessionState {
	switch e := event.(type) {
	case LoginSuccess:
		user := e.User
		return models.SessionState{
			User:            &user,
			IsAuthenticated: true,
		}
	case Logout:
		return models.DefaultSessionState()
	case RestoreSession:
		user := e.User
		next := current
		next.User = &user
		next.IsAuthenticated = true
		next.Loading = false
		next.RequiresSecondFactor = false
		return next
	case SetLoading:
		next := current
		next.Loading = e.Loading
		return next
	case SetError:
		next := current
		if e.Error != nil {
			msg := *e.Error
			next.Error = &msg
		} else {
			next.Error = nil
		}
		return next
	case RequiresSecondFactor:
		next := current
		next.RequiresSecondFactor = true
		next.IsAuthenticated = false
		next.Loading = false
		return next
	default:
		return current
	}
}

// Store holds the single process-wide session state.
type Store struct {
	mu      sync.RWMutex
	current models.SessionState
}

func NewStore() *Store {
	return &Store{
		current: models.DefaultSessionState(),
	}
}

func (s *Store) Dispatch(event Event) models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Reduce(s.current, event)

	logrus.WithFields(logrus.Fields{
		"event":         event.eventName(),
		"authenticated": s.current.IsAuthenticated,
		"loading":       s.current.Loading,
		"requires_2fa":  s.current.RequiresSecondFactor,
	}).Debugln("Session state updated")

	return s.current
}

func (s *Store) State() models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
