package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/formbox/formbox/app"
	"github.com/formbox/formbox/config"
	"github.com/formbox/formbox/database"
	"github.com/formbox/formbox/httpx"
	"github.com/formbox/formbox/model"
)

func newTestApp(t *testing.T) app.App {
	t.Helper()

	cfg := config.Config{
		DBUrl:       fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		TokenSecret: "test-secret",
		TokenTTL:    time.Minute,
	}

	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return app.App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,
	}
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("content-type", "application/json")
	if token != "" {
		req.Header.Set("authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, h http.Handler, username, password string) {
	t.Helper()

	w := doRequest(t, h, "POST", "/api/register", "", model.Credentials{
		Username: username,
		Password: password,
	})
	require.Equal(t, http.StatusCreated, w.Code)
}

func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/login", nil)
	req.SetBasicAuth(username, password)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var grant map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &grant))
	token, _ := grant["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func registerAndLogin(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	register(t, h, username, "pw-"+username)
	return login(t, h, username, "pw-"+username)
}

func createForm(t *testing.T, h http.Handler, token string, form model.Form) int {
	t.Helper()

	w := doRequest(t, h, "POST", "/api/forms", token, form)
	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	id, _ := body["id"].(float64)
	require.NotZero(t, id)
	return int(id)
}

func getForm(t *testing.T, h http.Handler, token string, id int) model.Form {
	t.Helper()

	w := doRequest(t, h, "GET", fmt.Sprintf("/api/forms/%d", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	form := model.Form{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &form))
	return form
}
