package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sakif/codespaces/internal/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaygroundHandler_HandlePlayground(t *testing.T) {
	h, err := handler.NewPlaygroundHandler("/api/v1/graphql", testLogger())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.HandlePlayground(rr, httptest.NewRequest(http.MethodGet, "/api/v1/graphql", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "Codespaces GraphQL Playground")
	assert.Contains(t, rr.Body.String(), "GraphiQL.createFetcher")
	assert.Contains(t, rr.Body.String(), "graphql")
}

func TestPlaygroundHandler_HandleDefaultAvatar(t *testing.T) {
	h, err := handler.NewPlaygroundHandler("/api/v1/graphql", testLogger())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.HandleDefaultAvatar(rr, httptest.NewRequest(http.MethodGet, handler.DefaultAvatarPath, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, []byte("\x89PNG"), rr.Body.Bytes()[:4])
}
