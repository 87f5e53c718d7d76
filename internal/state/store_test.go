package state

import (
	"testing"

	"github.com/lumen-io/client/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() models.User {
	return models.User{ID: "u-1", Email: "tech@lumen.test", Role: models.RoleTechnologist}
}

func TestReduce(t *testing.T) {
	user := testUser()
	failed := "Login failed"

	tests := []struct {
		name     string
		current  models.SessionState
		event    Event
		validate func(t *testing.T, next models.SessionState)
	}{
		{
			name:    "login success authenticates and clears flags",
			current: models.SessionState{Loading: true, Error: &failed, RequiresSecondFactor: true},
			event:   LoginSuccess{User: user},
			validate: func(t *testing.T, next models.SessionState) {
				require.NotNil(t, next.User)
				assert.Equal(t, "u-1", next.User.ID)
				assert.True(t, next.IsAuthenticated)
				assert.False(t, next.Loading)
				assert.Nil(t, next.Error)
				assert.False(t, next.RequiresSecondFactor)
			},
		},
		{
			name:    "logout resets everything",
			current: models.SessionState{User: &user, IsAuthenticated: true, Error: &failed},
			event:   Logout{},
			validate: func(t *testing.T, next models.SessionState) {
				assert.Equal(t, models.DefaultSessionState(), next)
			},
		},
		{
			name:    "restore keeps error but authenticates",
			current: models.SessionState{Loading: true, Error: &failed},
			event:   RestoreSession{User: user},
			validate: func(t *testing.T, next models.SessionState) {
				assert.True(t, next.IsAuthenticated)
				assert.False(t, next.Loading)
				assert.Equal(t, "Login failed", next.GetError())
			},
		},
		{
			name:    "set loading only touches loading",
			current: models.SessionState{User: &user, IsAuthenticated: true},
			event:   SetLoading{Loading: true},
			validate: func(t *testing.T, next models.SessionState) {
				assert.True(t, next.Loading)
				assert.True(t, next.IsAuthenticated)
			},
		},
		{
			name:    "set error and clear error",
			current: models.DefaultSessionState(),
			event:   ErrorMessage("boom"),
			validate: func(t *testing.T, next models.SessionState) {
				assert.Equal(t, "boom", next.GetError())
				cleared := Reduce(next, ClearError())
				assert.Nil(t, cleared.Error)
			},
		},
		{
			name:    "second factor is never authenticated",
			current: models.SessionState{Loading: true},
			event:   RequiresSecondFactor{},
			validate: func(t *testing.T, next models.SessionState) {
				assert.True(t, next.RequiresSecondFactor)
				assert.False(t, next.IsAuthenticated)
				assert.False(t, next.Loading)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := Reduce(tt.current, tt.event)
			assert.True(t, next.Valid(), "state invariants violated: %+v", next)
			tt.validate(t, next)
		})
	}
}

func TestReduce_ErrorIsCopied(t *testing.T) {
	msg := "first"
	next := Reduce(models.DefaultSessionState(), SetError{Error: &msg})
	msg = "changed"
	assert.Equal(t, "first", next.GetError())
}

func TestStore_LogoutIsIdempotent(t *testing.T) {
	store := NewStore()
	assert.True(t, store.State().IsLoggedOut())

	store.Dispatch(LoginSuccess{User: testUser()})
	assert.True(t, store.State().IsAuthenticated)

	first := store.Dispatch(Logout{})
	second := store.Dispatch(Logout{})
	assert.Equal(t, first, second)
	assert.Equal(t, models.DefaultSessionState(), store.State())
}
