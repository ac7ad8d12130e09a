package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/auth"
	"genstudio/internal/repository"
	"genstudio/internal/service"
)

func TestSeedUser_Idempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	authService := service.NewAuthService(store.Users(), auth.NewJWTService("s", time.Hour), auth.NewTokenStore(nil), nil)

	created, err := seedUser(context.Background(), authService, "demo@example.com", "password123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = seedUser(context.Background(), authService, "demo@example.com", "password123")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, store.UserCount())
}
