package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	r := NewRouter(directory.NewService(directory.NewMemStore(), nil), zap.NewNop(), "*")
	rec, env := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}

func TestDirectoryFlow(t *testing.T) {
	r := NewRouter(directory.NewService(directory.NewMemStore(), nil), zap.NewNop(), "*")

	rec, _ := do(t, r, http.MethodPost, "/users", gin.H{"username": "pi", "firstname": "P", "lastname": "I", "email": "pi@x", "is_pi": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = do(t, r, http.MethodPost, "/users", gin.H{"username": "stu", "firstname": "S", "lastname": "T", "email": "stu@x", "sponsor_id": 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, r, http.MethodPost, "/pirgs", gin.H{"name": "lab", "owner_id": 1, "admin_ids": []int{1}, "user_ids": []int{1, 2}})
	require.Equal(t, http.StatusCreated, rec.Code)
	var pirg struct {
		Admins []json.RawMessage `json:"admins"`
		Users  []struct {
			ID int64 `json:"id"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pirg))
	assert.Empty(t, pirg.Admins)
	require.Len(t, pirg.Users, 1)
	assert.Equal(t, int64(2), pirg.Users[0].ID)

	rec, env = do(t, r, http.MethodPost, "/pirgs/lab/groups", gin.H{"name": "gpu", "user_ids": []int{2}})
	require.Equal(t, http.StatusCreated, rec.Code)
	var group struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &group))

	rec, env = do(t, r, http.MethodGet, "/users/stu", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user struct {
		Sponsor *struct {
			Username string `json:"username"`
		} `json:"sponsor"`
		Pirgs  []json.RawMessage `json:"pirgs"`
		Groups []json.RawMessage `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &user))
	require.NotNil(t, user.Sponsor)
	assert.Equal(t, "pi", user.Sponsor.Username)
	assert.Len(t, user.Pirgs, 1)
	assert.Len(t, user.Groups, 1)

	rec, env = do(t, r, http.MethodDelete, "/pirgs/lab/groups/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, string(env.Data))

	rec, _ = do(t, r, http.MethodGet, "/pirgs/lab/groups/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(t, r, http.MethodGet, "/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"generated_at"`)
}

func TestUnknownRoute(t *testing.T) {
	r := NewRouter(directory.NewService(directory.NewMemStore(), nil), zap.NewNop(), "*")
	rec, env := do(t, r, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}
