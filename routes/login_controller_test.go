package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbox/formbox/model"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterDuplicateUsername(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	register(t, h, "bob", "pw123")

	w := doRequest(t, h, "POST", "/api/register", "", model.Credentials{
		Username: "bob",
		Password: "other",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already taken")
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	w := doRequest(t, h, "POST", "/api/register", "", model.Credentials{
		Username: "bob",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasswordNeverStoredInPlaintext(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	register(t, h, "bob", "pw123")

	var hash string
	err := app.QueryRow(`SELECT password_hash FROM user WHERE username = 'bob'`).Scan(&hash)
	require.NoError(t, err)

	assert.NotEqual(t, "pw123", hash)
	assert.NotContains(t, hash, "pw123")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw123")))
}

func TestLoginWrongPasswordRejected(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	register(t, h, "bob", "pw123")

	req := httptest.NewRequest("POST", "/api/login", nil)
	req.SetBasicAuth("bob", "wrong")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies(), "no session may be established on failed login")

	var sessions int
	err := app.QueryRow(`SELECT count(*) FROM token`).Scan(&sessions)
	require.NoError(t, err)
	assert.Zero(t, sessions)
}

func TestLoginSetsSessionCookies(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	register(t, h, "bob", "pw123")

	req := httptest.NewRequest("POST", "/api/login", nil)
	req.SetBasicAuth("bob", "pw123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	names := map[string]bool{}
	for _, cookie := range w.Result().Cookies() {
		names[cookie.Name] = cookie.Value != ""
	}
	assert.True(t, names["access_token"])
	assert.True(t, names["refresh_token"])
}

func TestLogoutClearsSession(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	token := registerAndLogin(t, h, "bob")

	w := doRequest(t, h, "POST", "/api/logout", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	for _, cookie := range w.Result().Cookies() {
		assert.Negative(t, cookie.MaxAge, "session cookie %s must be expired", cookie.Name)
	}

	var sessions int
	err := app.QueryRow(`SELECT count(*) FROM token WHERE username = 'bob'`).Scan(&sessions)
	require.NoError(t, err)
	assert.Zero(t, sessions)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)
	h := Wire(app)

	// browser GET with no session is sent to the login page
	w := doRequest(t, h, "GET", "/api/forms", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("location"), "/login"))

	// mutations without a token are rejected outright
	w = doRequest(t, h, "POST", "/api/forms", "", model.Form{Title: "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
