// Package integration provides end-to-end tests for the Meridian Identity API.
package integration

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian-identity/internal/handler"
	"github.com/prn-tf/meridian-identity/internal/mail"
	"github.com/prn-tf/meridian-identity/internal/nonce"
	"github.com/prn-tf/meridian-identity/internal/repository/sqlite"
	"github.com/prn-tf/meridian-identity/internal/service"
	"github.com/prn-tf/meridian-identity/internal/token"
)

// capturingMailer records outgoing messages so tests can follow
// the confirmation link.
type capturingMailer struct {
	mu       sync.Mutex
	messages []string
}

func (m *capturingMailer) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, body)
	return nil
}

// waitForMessage waits for the fire-and-forget mail goroutine.
func (m *capturingMailer) waitForMessage(t *testing.T) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		n := len(m.messages)
		var last string
		if n > 0 {
			last = m.messages[n-1]
		}
		m.mu.Unlock()
		if n > 0 {
			return last
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no confirmation mail arrived")
	return ""
}

var confirmLinkPattern = regexp.MustCompile(`/api/v1/auth/verify/([A-Za-z0-9_:=-]+)`)

// newTestServer starts the full HTTP stack over an in-memory database.
func newTestServer(t *testing.T) (*httptest.Server, *capturingMailer) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))
	repo := sqlite.NewUserRepository(db)

	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	tokens, err := token.NewIssuer(token.Config{
		PrivateKey: key,
		PublicKey:  &key.PublicKey,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 30 * time.Minute,
		Issuer:     "meridian-test",
	})
	require.NoError(t, err)

	mailer := &capturingMailer{}
	confirmations, err := mail.NewConfirmationSender(mailer, "http://localhost:3000")
	require.NoError(t, err)

	markers := nonce.NewMemoryStore()
	t.Cleanup(func() { _ = markers.Close() })

	router := handler.NewRouter(handler.RouterConfig{
		AuthService: service.NewAuthService(repo, tokens, markers, confirmations, zerolog.Nop()),
		UserService: service.NewUserService(repo, zerolog.Nop()),
		Logger:      zerolog.Nop(),
		CORS:        handler.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		MaxBodySize: 1 << 20,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, mailer
}

// newClient returns an HTTP client with a cookie jar, the way a
// browser would hold the session.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func putJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	r, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(raw))
	require.NoError(t, err)
	r.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(r)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// TestAccountLifecycle walks a single account through registration,
// confirmation, login, token refresh, profile updates and deletion.
func TestAccountLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server, mailer := newTestServer(t)
	client := newClient(t)
	base := server.URL + "/api/v1"

	t.Run("Register", func(t *testing.T) {
		resp := postJSON(t, client, base+"/auth/register", map[string]string{
			"name":             "Alice",
			"surname":          "Smith",
			"login":            "alice123",
			"email":            "alice@example.com",
			"password":         "Secret12",
			"confirm_password": "Secret12",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		body := decodeBody(t, resp)
		require.Equal(t, "success", body["status"])
		require.Equal(t, "Verification token successfully sent to your email", body["message"])
	})

	t.Run("LoginBeforeConfirmation", func(t *testing.T) {
		resp := postJSON(t, client, base+"/auth/login", map[string]string{
			"login": "alice123", "password": "Secret12",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "Please verify your email address", decodeBody(t, resp)["message"])
	})

	t.Run("ConfirmFromEmail", func(t *testing.T) {
		message := mailer.waitForMessage(t)
		match := confirmLinkPattern.FindStringSubmatch(message)
		require.NotNil(t, match, "confirmation mail should carry a verify link")

		resp, err := client.Get(base + "/auth/verify/" + match[1])
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "Account verified successfully", decodeBody(t, resp)["message"])

		// The link is single use.
		resp, err = client.Get(base + "/auth/verify/" + match[1])
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "This user is already activated", decodeBody(t, resp)["message"])
	})

	t.Run("Login", func(t *testing.T) {
		resp := postJSON(t, client, base+"/auth/login", map[string]string{
			"email": "alice@example.com", "password": "Secret12",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, decodeBody(t, resp)["token"])
	})

	t.Run("Me", func(t *testing.T) {
		resp, err := client.Get(base + "/users/me")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		user := decodeBody(t, resp)["user"].(map[string]any)
		require.Equal(t, "alice123", user["login"])
	})

	t.Run("Refresh", func(t *testing.T) {
		resp, err := client.Get(base + "/auth/refresh")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, decodeBody(t, resp)["token"])
	})

	t.Run("PublicProfile", func(t *testing.T) {
		resp, err := client.Get(base + "/users/get?user=alice123")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		profile := decodeBody(t, resp)["profile"].(map[string]any)
		require.Equal(t, "alice123", profile["login"])
		require.NotContains(t, profile, "role")
	})

	t.Run("UpdatePassword", func(t *testing.T) {
		resp := putJSON(t, client, base+"/users/update/password", map[string]string{
			"old_password": "Secret12", "new_password": "NewSecret12",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		fresh := newClient(t)
		resp = postJSON(t, fresh, base+"/auth/login", map[string]string{
			"login": "alice123", "password": "NewSecret12",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("Logout", func(t *testing.T) {
		resp, err := client.Get(base + "/auth/logout")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp, err = client.Get(base + "/users/me")
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("DeleteAccount", func(t *testing.T) {
		resp := postJSON(t, client, base+"/auth/login", map[string]string{
			"login": "alice123", "password": "NewSecret12",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		r, err := http.NewRequest(http.MethodDelete, base+"/users/delete", nil)
		require.NoError(t, err)
		resp, err = client.Do(r)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp, err = client.Get(base + "/users/get?user=alice123")
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "No such user", decodeBody(t, resp)["message"])
	})
}
