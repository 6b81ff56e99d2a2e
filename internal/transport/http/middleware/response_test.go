package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFound_EchoesRoute(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/nope", nil)
	rr := httptest.NewRecorder()
	NotFound(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "/api/auth/nope", body["path"])
	assert.Equal(t, http.MethodGet, body["method"])
}
