package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/lumen-io/client/internal/credentials"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/session"
	"github.com/lumen-io/client/internal/state"
	"github.com/lumen-io/client/internal/strategy"
	"github.com/lumen-io/client/internal/transport"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidRegistration  = errors.New("registration was rejected")
	ErrSecondFactorRequired = errors.New("second factor required")
)

const (
	loginFailed        = "Login failed"
	registrationFailed = "Registration failed"
)

// Service performs the explicit account operations against the auth
// backend. It never goes through the refresh coordinator: a 401 here is
// an answer, not an expired session.
type Service struct {
	strategy  strategy.Strategy
	auth      transport.Transport
	state     *state.Store
	endpoints session.Endpoints
}

func NewService(strat strategy.Strategy, auth transport.Transport, store *state.Store, endpoints session.Endpoints) *Service {
	if len(endpoints.Login) == 0 {
		endpoints = session.DefaultEndpoints()
	}
	return &Service{
		strategy:  strat,
		auth:      auth,
		state:     store,
		endpoints: endpoints,
	}
}

func (s *Service) State() *state.Store {
	return s.state
}

func (s *Service) send(ctx context.Context, method string, path string, body any) (*models.Response, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		payload = encoded
	}
	req := models.NewRequestDescriptor(method, path, payload)
	return s.auth.Send(ctx, s.strategy.Authenticate(req))
}

// WhoAmI asks the backend for the identity behind the current credentials.
func (s *Service) WhoAmI(ctx context.Context) (*models.User, error) {
	resp, err := s.send(ctx, http.MethodGet, s.endpoints.Identity, nil)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	return &user, nil
}

// Login exchanges credentials for a session. A backend asking for a
// second factor returns ErrSecondFactorRequired and leaves the session
// unauthenticated.
func (s *Service) Login(ctx context.Context, email string, password string) (*models.User, error) {
	s.state.Dispatch(state.ClearError())
	s.state.Dispatch(state.SetLoading{Loading: true})
	defer s.state.Dispatch(state.SetLoading{Loading: false})

	user, err := s.login(ctx, email, password)
	if errors.Is(err, ErrSecondFactorRequired) {
		s.state.Dispatch(state.RequiresSecondFactor{})
		return nil, err
	}
	if err != nil {
		logrus.WithError(err).WithField("email", email).Warnln("Login failed")
		s.state.Dispatch(state.ErrorMessage(loginFailed))
		return nil, err
	}

	s.mirror(user)
	s.state.Dispatch(state.LoginSuccess{User: *user})

	logrus.WithFields(logrus.Fields{
		"email": user.Email,
		"role":  user.Role,
		"mode":  s.strategy.Mode(),
	}).Infoln("Logged in")

	return user, nil
}

func (s *Service) login(ctx context.Context, email string, password string) (*models.User, error) {
	resp, err := s.send(ctx, http.MethodPost, s.endpoints.Login, models.LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		var httpErr *models.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsUnauthorized() {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, err
	}

	var tokens models.TokenResponse
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &tokens); err != nil {
			return nil, fmt.Errorf("failed to decode login response: %w", err)
		}
	}

	if tokens.Requires2FA {
		return nil, ErrSecondFactorRequired
	}

	if err := s.strategy.Persist(&tokens); err != nil {
		return nil, err
	}

	return s.WhoAmI(ctx)
}

// Logout tells the backend the session is over, then forgets every local
// artefact whatever the backend said.
func (s *Service) Logout(ctx context.Context) error {
	if _, err := s.send(ctx, http.MethodPost, s.endpoints.Logout, struct{}{}); err != nil {
		logrus.WithError(err).Debugln("Logout request failed, clearing local session anyway")
	}

	if configurable, ok := s.auth.(transport.Configurable); ok {
		s.strategy.Unprime(configurable)
	}

	err := s.strategy.Clear()
	s.state.Dispatch(state.Logout{})

	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	logrus.Infoln("Logged out")
	return nil
}

// Register creates an account and logs straight into it.
func (s *Service) Register(ctx context.Context, input models.RegisterRequest) (*models.User, error) {
	s.state.Dispatch(state.ClearError())
	s.state.Dispatch(state.SetLoading{Loading: true})
	defer s.state.Dispatch(state.SetLoading{Loading: false})

	resp, err := s.send(ctx, http.MethodPost, s.endpoints.Register, input)
	if err != nil {
		var httpErr *models.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusBadRequest {
			err = fmt.Errorf("%w: %w", ErrInvalidRegistration, err)
		}
		logrus.WithError(err).WithField("email", input.Email).Warnln("Registration failed")
		s.state.Dispatch(state.ErrorMessage(registrationFailed))
		return nil, err
	}

	if resp.StatusCode != http.StatusCreated {
		s.state.Dispatch(state.ErrorMessage(registrationFailed))
		return nil, fmt.Errorf("unexpected registration status %d", resp.StatusCode)
	}

	return s.Login(ctx, input.Email, input.Password)
}

// mirror keeps a copy of the canonical user next to the tokens.
func (s *Service) mirror(user *models.User) {
	if user == nil || !s.strategy.MirrorsIdentity() {
		return
	}
	if err := MirrorUser(s.strategy.Store(), user); err != nil {
		logrus.WithError(err).Warnln("Failed to mirror user")
	}
}

func MirrorUser(store credentials.Store, user *models.User) error {
	encoded, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return store.Set(models.UserMirrorName, string(encoded), credentials.Options{})
}

// MirroredUser returns the last mirrored identity, if any. It is a hint
// for display only and never replaces an identity check.
func MirroredUser(store credentials.Store) (*models.User, bool) {
	raw, ok := store.Get(models.UserMirrorName)
	if !ok {
		return nil, false
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, false
	}
	return &user, true
}

// UserMessage turns an account error into text fit for the person at
// the keyboard.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrInvalidRegistration):
		return "Check your input. Something was invalid."
	case errors.Is(err, ErrSecondFactorRequired):
		return "A second factor is required to complete login."
	}

	var httpErr *models.HTTPError
	if errors.As(err, &httpErr) && httpErr.HasResponse() {
		return "Something went wrong. Please try again."
	}
	return "Unexpected error. Please try again."
}
