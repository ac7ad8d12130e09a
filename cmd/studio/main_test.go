package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/client"
	apperrors "genstudio/internal/errors"
	"genstudio/internal/model"
)

func overloadedServer(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) <= failures {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(apperrors.ErrorResponse{Error: "model overloaded, please retry", Code: apperrors.CodeModelOverloaded})
			return
		}
		_ = json.NewEncoder(w).Encode(model.GenerationResult{Prompt: "A red fox", Style: "ink", Status: "succeeded", ImageURL: "/static/mock.png"})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRunGenerate_PrintsRetryBanner(t *testing.T) {
	srv, calls := overloadedServer(t, 1)
	out := &bytes.Buffer{}

	err := runGenerate(context.Background(), out, client.New(srv.URL, client.WithToken("tok")), generateOptions{
		prompt: "A red fox", style: "ink", maxAttempts: 3, retryDelay: time.Millisecond,
	})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Contains(t, out.String(), "Retry attempt 2 of 3")
	assert.Contains(t, out.String(), "A red fox")
}

func TestRunGenerate_RetryLimit(t *testing.T) {
	srv, calls := overloadedServer(t, 100)
	out := &bytes.Buffer{}

	err := runGenerate(context.Background(), out, client.New(srv.URL), generateOptions{
		prompt: "A red fox", style: "ink", maxAttempts: 3, retryDelay: time.Millisecond,
	})

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, describeError(err), "Retry limit reached")
}

func TestDescribeError(t *testing.T) {
	validation := apperrors.NewValidation(apperrors.FieldError{Field: "prompt", Message: "prompt must be at least 3 characters"})

	assert.Equal(t, "invalid payload\n  prompt: prompt must be at least 3 characters", describeError(validation))
	assert.Equal(t, "Cancelled.", describeError(fmt.Errorf("generate: %w", context.Canceled)))
	assert.Equal(t, "user not found", describeError(apperrors.ErrUserNotFound))
}
