package mocks

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lumen-io/client/internal/models"
	"github.com/sirupsen/logrus"
)

const correlationIDKey = "correlation_id"

var signingKey = []byte("lumen-test-signing-key")

type account struct {
	password string
	user     models.User
}

// AuthServer is an in-process auth and API backend. Protected routes live
// under /api/ and accept either an Authorization header or the
// access_token cookie, depending on the mode.
type AuthServer struct {
	mode   models.StrategyMode
	server *httptest.Server

	mu       sync.Mutex
	accounts map[string]*account
	access   map[string]string
	refresh  map[string]string

	// Behaviour switches
	Requires2FA   atomic.Bool
	RotateRefresh atomic.Bool
	FailRefresh   atomic.Bool
	RefreshDelay  atomic.Int64

	refreshCalls atomic.Int64
	logoutCalls  atomic.Int64
	apiCalls     atomic.Int64
	nextID       atomic.Int64

	barrier *unauthorizedBarrier
}

// unauthorizedBarrier holds 401 responses until a number of them are
// pending, so tests can force several requests to fail together.
type unauthorizedBarrier struct {
	mu      sync.Mutex
	pending int
	target  int
	release chan struct{}
}

func (b *unauthorizedBarrier) wait() {
	b.mu.Lock()
	b.pending++
	if b.pending == b.target {
		close(b.release)
	}
	release := b.release
	b.mu.Unlock()

	select {
	case <-release:
	case <-time.After(5 * time.Second):
	}
}

func NewAuthServer(mode models.StrategyMode) *AuthServer {
	gin.SetMode(gin.TestMode)

	s := &AuthServer{
		mode:     mode,
		accounts: map[string]*account{},
		access:   map[string]string{},
		refresh:  map[string]string{},
	}
	s.nextID.Store(1000)

	router := gin.New()
	router.Use(correlationMiddleware())

	router.POST("/token/", s.handleLogin)
	router.GET("/whoami/", s.handleWhoAmI)
	router.POST("/token-refresh/", s.handleRefresh)
	router.POST("/logout/", s.handleLogout)
	router.POST("/users/", s.handleRegister)

	api := router.Group("/api")
	api.Use(s.requireAccess())
	api.Any("/*path", s.handleAPI)

	s.server = httptest.NewServer(router)
	return s
}

func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(models.CorrelationHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set(correlationIDKey, correlationID)
		c.Header(models.CorrelationHeader, correlationID)
		c.Next()
	}
}

func (s *AuthServer) URL() string {
	return s.server.URL
}

func (s *AuthServer) Close() {
	s.server.Close()
}

func (s *AuthServer) Mode() models.StrategyMode {
	return s.mode
}

func (s *AuthServer) RefreshCalls() int {
	return int(s.refreshCalls.Load())
}

func (s *AuthServer) LogoutCalls() int {
	return int(s.logoutCalls.Load())
}

func (s *AuthServer) APICalls() int {
	return int(s.apiCalls.Load())
}

// HoldUnauthorized delays the next n protected-route rejections until all
// n are pending.
func (s *AuthServer) HoldUnauthorized(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.barrier = &unauthorizedBarrier{
		target:  n,
		release: make(chan struct{}),
	}
}

func (s *AuthServer) AddUser(user models.User, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[user.Email] = &account{
		password: password,
		user:     user,
	}
}

// IssueTokens mints a token pair for email without going through login.
func (s *AuthServer) IssueTokens(email string) (string, string) {
	access := s.mint(email, "access", time.Minute)
	refresh := s.mint(email, "refresh", time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.access[access] = email
	s.refresh[refresh] = email
	return access, refresh
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *AuthServer) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = map[string]string{}
}

func (s *AuthServer) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = map[string]string{}
}

func (s *AuthServer) IsRefreshValid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refresh[token]
	return ok
}

func (s *AuthServer) mint(subject string, kind string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": subject,
		"typ": kind,
		"jti": uuid.New().String(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		logrus.WithError(err).Errorln("Failed to sign test token")
		return ""
	}
	return signed
}

func (s *AuthServer) accessToken(c *gin.Context) string {
	if s.mode == models.StrategyCookie {
		token, _ := c.Cookie(models.AccessTokenName)
		return token
	}
	header := c.GetHeader("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}

func (s *AuthServer) lookupAccess(c *gin.Context) (*models.User, bool) {
	token := s.accessToken(c)
	if len(token) == 0 {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.access[token]
	if !ok {
		return nil, false
	}
	acct, ok := s.accounts[email]
	if !ok {
		return nil, false
	}
	user := acct.user
	return &user, true
}

func (s *AuthServer) unauthorized(c *gin.Context) {
	s.mu.Lock()
	barrier := s.barrier
	s.mu.Unlock()

	if barrier != nil {
		barrier.wait()
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Detail: "Given token not valid for any token type",
	})
}

func (s *AuthServer) requireAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.apiCalls.Add(1)
		user, ok := s.lookupAccess(c)
		if !ok {
			s.unauthorized(c)
			return
		}
		c.Set("user", user)
		c.Next()
	}
}

func (s *AuthServer) setSessionCookies(c *gin.Context, access string, refresh string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(models.AccessTokenName, access, 300, "/", "", false, true)
	if len(refresh) > 0 {
		c.SetCookie(models.RefreshTokenName, refresh, int((7 * 24 * time.Hour).Seconds()), "/", "", false, true)
	}
	c.SetCookie(models.SessionCookieName, uuid.New().String(), 0, "/", "", false, true)
	c.SetCookie(models.CSRFCookieName, uuid.New().String(), 0, "/", "", false, false)
}

func (s *AuthServer) handleLogin(c *gin.Context) {
	var login models.LoginRequest
	if err := c.ShouldBindJSON(&login); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Detail: err.Error()})
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[login.Email]
	s.mu.Unlock()

	if !ok || acct.password != login.Password {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Detail: "No active account found with the given credentials",
		})
		return
	}

	if s.Requires2FA.Load() {
		c.JSON(http.StatusOK, models.TokenResponse{Requires2FA: true})
		return
	}

	access, refresh := s.IssueTokens(login.Email)

	if s.mode == models.StrategyCookie {
		s.setSessionCookies(c, access, refresh)
		c.JSON(http.StatusOK, gin.H{"detail": "Login successful"})
		return
	}

	c.JSON(http.StatusOK, models.TokenResponse{
		Access:  access,
		Refresh: refresh,
	})
}

func (s *AuthServer) handleWhoAmI(c *gin.Context) {
	user, ok := s.lookupAccess(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Detail: "Authentication credentials were not provided.",
		})
		return
	}
	c.JSON(http.StatusOK, identity(*user))
}

// identity renders numeric ids as JSON integers, the way the backend's
// auto-increment primary keys are serialized.
func identity(user models.User) gin.H {
	body := gin.H{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
	}
	if id, err := strconv.ParseInt(user.ID, 10, 64); err == nil {
		body["id"] = id
	}
	if len(user.Name) > 0 {
		body["name"] = user.Name
	}
	if len(user.FirstName) > 0 {
		body["first_name"] = user.FirstName
	}
	if len(user.LastName) > 0 {
		body["last_name"] = user.LastName
	}
	return body
}

func (s *AuthServer) handleRefresh(c *gin.Context) {
	s.refreshCalls.Add(1)

	if delay := time.Duration(s.RefreshDelay.Load()); delay > 0 {
		time.Sleep(delay)
	}

	var token string
	if s.mode == models.StrategyCookie {
		token, _ = c.Cookie(models.RefreshTokenName)
	} else {
		var body models.RefreshRequest
		if err := c.ShouldBindJSON(&body); err == nil {
			token = body.Refresh
		}
	}

	s.mu.Lock()
	email, ok := s.refresh[token]
	s.mu.Unlock()

	if !ok || s.FailRefresh.Load() {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Detail: "Token is invalid or expired",
		})
		return
	}

	access := s.mint(email, "access", time.Minute)
	var rotated string
	if s.RotateRefresh.Load() {
		rotated = s.mint(email, "refresh", time.Hour)
	}

	s.mu.Lock()
	s.access[access] = email
	if len(rotated) > 0 {
		delete(s.refresh, token)
		s.refresh[rotated] = email
	}
	s.mu.Unlock()

	if s.mode == models.StrategyCookie {
		s.setSessionCookies(c, access, rotated)
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	c.JSON(http.StatusOK, models.TokenResponse{
		Access:  access,
		Refresh: rotated,
	})
}

func (s *AuthServer) handleLogout(c *gin.Context) {
	s.logoutCalls.Add(1)

	token := s.accessToken(c)
	s.mu.Lock()
	delete(s.access, token)
	s.mu.Unlock()

	if s.mode == models.StrategyCookie {
		for _, name := range models.SessionArtefacts() {
			c.SetCookie(name, "", -1, "/", "", false, true)
		}
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Logged out"})
}

func (s *AuthServer) handleRegister(c *gin.Context) {
	var register models.RegisterRequest
	if err := c.ShouldBindJSON(&register); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Detail: err.Error()})
		return
	}

	s.mu.Lock()
	_, exists := s.accounts[register.Email]
	s.mu.Unlock()

	if exists {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Detail: "user with this email already exists.",
		})
		return
	}

	user := models.User{
		ID:        strconv.FormatInt(s.nextID.Add(1), 10),
		Email:     register.Email,
		Role:      models.RoleTechnologist,
		FirstName: register.FirstName,
		LastName:  register.LastName,
	}
	s.AddUser(user, register.Password)

	c.JSON(http.StatusCreated, identity(user))
}

func (s *AuthServer) handleAPI(c *gin.Context) {
	user, _ := c.Get("user")
	c.JSON(http.StatusOK, gin.H{
		"path":           c.Param("path"),
		"method":         c.Request.Method,
		"user":           user,
		"correlation_id": c.GetString(correlationIDKey),
	})
}
