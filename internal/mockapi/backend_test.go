package mockapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/aula/internal/mockapi"
	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*mockapi.Backend, *httptest.Server) {
	t.Helper()

	b, err := mockapi.New(mockapi.Config{SeedFixtures: true})
	require.NoError(t, err)
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestLoginAndRefresh(t *testing.T) {
	t.Parallel()

	b, srv := newServer(t)

	resp, body := post(t, srv.URL+"/usuarios/login",
		`{"email":"`+mockapi.StudentEmail+`","password":"`+mockapi.DemoPassword+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login aulasdk.LoginResponse
	require.NoError(t, json.Unmarshal(body, &login))
	require.Equal(t, mockapi.StudentID, login.User.ID)

	claims, err := b.Verify(login.AccessToken)
	require.NoError(t, err)
	require.Equal(t, mockapi.StudentID, claims.Subject)

	resp, body = post(t, srv.URL+"/usuarios/refresh-token", `{"refreshToken":"`+login.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refreshed aulasdk.RefreshResponse
	require.NoError(t, json.Unmarshal(body, &refreshed))
	require.NotEmpty(t, refreshed.AccessToken)
	require.Empty(t, refreshed.RefreshToken)
	require.Equal(t, 1, b.RefreshCalls())

	resp, body = post(t, srv.URL+"/usuarios/refresh-token", `{"refreshToken":"nope"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.JSONEq(t, `{"msg":"invalid refresh token"}`, string(body))

	post(t, srv.URL+"/usuarios/logout", `{"refreshToken":"`+login.RefreshToken+`"}`)
	resp, _ = post(t, srv.URL+"/usuarios/refresh-token", `{"refreshToken":"`+login.RefreshToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInvalidatedTokensAreRejected(t *testing.T) {
	t.Parallel()

	b, srv := newServer(t)

	token, err := b.IssueAccessToken(mockapi.TeacherID)
	require.NoError(t, err)

	get := func() int {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/usuarios/perfil", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, get())
	require.NoError(t, b.InvalidateAccessTokens())
	require.Equal(t, http.StatusUnauthorized, get())
}

func TestRealtimeJoinMustMatchToken(t *testing.T) {
	t.Parallel()

	b, srv := newServer(t)
	token, err := b.IssueAccessToken(mockapi.StudentID)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "join", "data": mockapi.TeacherID}))
	require.NoError(t, conn.WriteJSON(map[string]any{"event": "join", "data": mockapi.StudentID}))

	select {
	case id := <-b.Joins():
		require.Equal(t, mockapi.StudentID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("join not accepted")
	}

	sent := b.Notify(mockapi.StudentID, aulasdk.Notification{Title: "Ping"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env struct {
		Event string               `json:"event"`
		Data  aulasdk.Notification `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, "nueva-notificacion", env.Event)
	require.Equal(t, sent.ID, env.Data.ID)
	require.Equal(t, aulasdk.NotificationSystem, env.Data.Type)
}

func TestWebsocketRequiresToken(t *testing.T) {
	t.Parallel()

	_, srv := newServer(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
