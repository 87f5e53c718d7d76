package cli

import (
	"testing"

	"github.com/lumen-io/client/internal/config"
	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCLI(t *testing.T) *mocks.AuthServer {
	t.Helper()

	server := mocks.NewAuthServer(models.StrategyBearer)
	t.Cleanup(server.Close)
	server.AddUser(models.User{ID: "7", Email: "ada@example.com", Role: models.RoleAdmin}, "secret")

	cfg = config.DefaultConfig()
	cfg.Auth.URL = server.URL()
	cfg.Storage.Backend = config.StorageMemory

	var err error
	lumen, err = cfg.NewSession(redirectToLogin)
	require.NoError(t, err)
	t.Cleanup(func() {
		lumen.Close()
		lumen = nil
		cfg = nil
	})

	return server
}

func login(t *testing.T) {
	t.Helper()
	require.NoError(t, loginCmd.Flags().Set("email", "ada@example.com"))
	require.NoError(t, loginCmd.Flags().Set("password", "secret"))
	require.NoError(t, runLogin(loginCmd, nil))
}

func TestLoginAndRequest(t *testing.T) {
	server := setupCLI(t)
	login(t)

	assert.True(t, lumen.State.State().IsAuthenticated)

	require.NoError(t, runRequest(requestCmd, []string{"get", "/api/patients/"}))
	assert.Equal(t, 1, server.APICalls())

	// An expired access token is refreshed behind the request
	server.ExpireAccessTokens()
	require.NoError(t, runRequest(requestCmd, []string{"GET", "/api/patients/"}))
	assert.Equal(t, 1, server.RefreshCalls())
	assert.True(t, lumen.State.State().IsAuthenticated)
}

func TestRequest_SessionLost(t *testing.T) {
	server := setupCLI(t)
	login(t)

	server.ExpireAccessTokens()
	server.RevokeRefreshTokens()

	err := runRequest(requestCmd, []string{"GET", "/api/patients/"})
	require.Error(t, err)
	assert.Equal(t, "session expired", err.Error())
	assert.True(t, lumen.State.State().IsLoggedOut())

	_, ok := lumen.Store.Get(models.AccessTokenName)
	assert.False(t, ok)
}

func TestRequest_InvalidInput(t *testing.T) {
	setupCLI(t)

	require.NoError(t, requestCmd.Flags().Set("data", "{not json"))
	t.Cleanup(func() { requestCmd.Flags().Set("data", "") })

	assert.Error(t, runRequest(requestCmd, []string{"POST", "/api/notes/"}))
}

func TestLogout(t *testing.T) {
	server := setupCLI(t)
	login(t)

	require.NoError(t, logoutCmd.RunE(logoutCmd, nil))

	assert.Equal(t, 1, server.LogoutCalls())
	assert.True(t, lumen.State.State().IsLoggedOut())
	_, ok := lumen.Store.Get(models.RefreshTokenName)
	assert.False(t, ok)
}
