package aulasdk_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/aula/internal/mockapi"
	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/slogx"
	"github.com/aussiebroadwan/aula/pkg/tokenstore"
	"github.com/stretchr/testify/require"
)

func newClient(baseURL string) *aulasdk.SDKClient {
	return aulasdk.NewSDKClient(baseURL, aulasdk.WithLogger(slogx.Discard()))
}

func startBackend(t *testing.T) (*mockapi.Backend, *httptest.Server) {
	t.Helper()

	b, err := mockapi.New(mockapi.Config{SeedFixtures: true})
	require.NoError(t, err)

	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func login(t *testing.T, srv *httptest.Server, email string) (*aulasdk.Session, *tokenstore.Store) {
	t.Helper()

	store := tokenstore.NewMemory()
	sess, err := newClient(srv.URL).Login(context.Background(), store, aulasdk.LoginRequest{
		Email:    email,
		Password: mockapi.DemoPassword,
	})
	require.NoError(t, err)
	return sess, store
}

// seededSession returns a session whose store already holds the given tokens.
func seededSession(t *testing.T, baseURL, access, refresh string) (*aulasdk.Session, *tokenstore.Store) {
	t.Helper()

	store := tokenstore.NewMemory()
	err := store.SaveSession(context.Background(), tokenstore.Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
	}, []byte(`{"id":"u1","name":"Test","email":"t@aula.test","role":"student"}`))
	require.NoError(t, err)

	return aulasdk.NewSession(newClient(baseURL), store), store
}

func TestConcurrentUnauthorizedTriggersSingleRefresh(t *testing.T) {
	t.Parallel()

	backend, srv := startBackend(t)
	sess, store := login(t, srv, mockapi.StudentEmail)

	before, err := store.AccessToken(context.Background())
	require.NoError(t, err)

	require.NoError(t, backend.InvalidateAccessTokens())
	backend.SetRefreshDelay(100 * time.Millisecond)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = sess.ListCourses(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, backend.RefreshCalls())

	after, err := store.AccessToken(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestRequestRetriedAtMostOnce(t *testing.T) {
	t.Parallel()

	var refreshes, hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/usuarios/refresh-token":
			refreshes.Add(1)
			_, _ = io.WriteString(w, `{"accessToken":"fresh"}`)
		default:
			hits.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"msg":"still no"}`)
		}
	}))
	t.Cleanup(srv.Close)

	sess, _ := seededSession(t, srv.URL, "stale", "refresh-1")

	_, err := sess.ListCourses(context.Background())
	require.Error(t, err)
	require.True(t, aulasdk.IsUnauthorized(err))

	var apiErr *aulasdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "still no", apiErr.Msg)

	require.Equal(t, int32(1), refreshes.Load())
	require.Equal(t, int32(2), hits.Load())
}

func TestRefreshFailureTerminatesSession(t *testing.T) {
	t.Parallel()

	backend, srv := startBackend(t)
	sess, store := login(t, srv, mockapi.StudentEmail)

	var terminations atomic.Int32
	sess.OnTerminated(func(cause error) {
		if errors.Is(cause, aulasdk.ErrSessionTerminated) {
			terminations.Add(1)
		}
	})

	require.NoError(t, backend.InvalidateAccessTokens())
	backend.FailRefresh(true)
	backend.SetRefreshDelay(100 * time.Millisecond)

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = sess.ListCourses(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, aulasdk.ErrSessionTerminated)
	}
	require.Equal(t, 1, backend.RefreshCalls())
	require.GreaterOrEqual(t, terminations.Load(), int32(1))

	creds, err := store.Credentials(context.Background())
	require.NoError(t, err)
	require.Empty(t, creds.AccessToken)
	require.Empty(t, creds.RefreshToken)

	_, err = sess.CurrentUser(context.Background())
	require.ErrorIs(t, err, aulasdk.ErrNoSession)
}

func TestMissingRefreshTokenTerminatesWithoutCall(t *testing.T) {
	t.Parallel()

	backend, srv := startBackend(t)
	sess, store := seededSession(t, srv.URL, "not-a-valid-token", "")

	var cause error
	sess.OnTerminated(func(err error) { cause = err })

	_, err := sess.ListCourses(context.Background())
	require.ErrorIs(t, err, aulasdk.ErrSessionTerminated)
	require.ErrorIs(t, err, aulasdk.ErrNoRefreshToken)
	require.ErrorIs(t, cause, aulasdk.ErrNoRefreshToken)
	require.Equal(t, 0, backend.RefreshCalls())

	access, err := store.AccessToken(context.Background())
	require.NoError(t, err)
	require.Empty(t, access)
}

func TestReplaySendsIdenticalBody(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		bodies [][]byte
		types  []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/usuarios/refresh-token" {
			_, _ = io.WriteString(w, `{"accessToken":"fresh"}`)
			return
		}

		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		types = append(types, r.Header.Get("Content-Type"))
		mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"x"}`)
	}))
	t.Cleanup(srv.Close)

	t.Run("json", func(t *testing.T) {
		sess, _ := seededSession(t, srv.URL, "stale", "refresh-1")
		mu.Lock()
		bodies, types = nil, nil
		mu.Unlock()

		msg, err := sess.SendMessage(context.Background(), aulasdk.SendMessageRequest{
			RecipientID: "u2",
			Subject:     "Hola",
			Body:        "Same bytes twice",
		})
		require.NoError(t, err)
		require.Equal(t, "x", msg.ID)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, bodies, 2)
		require.Equal(t, bodies[0], bodies[1])
		require.Contains(t, string(bodies[0]), "Same bytes twice")
	})

	t.Run("multipart", func(t *testing.T) {
		sess, _ := seededSession(t, srv.URL, "stale", "refresh-1")
		mu.Lock()
		bodies, types = nil, nil
		mu.Unlock()

		_, err := sess.UploadCourseMaterial(context.Background(), "c1", "Notes", "notes.txt", strings.NewReader("chapter 1"))
		require.NoError(t, err)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, bodies, 2)
		require.Equal(t, bodies[0], bodies[1])
		require.Equal(t, types[0], types[1])
		require.True(t, strings.HasPrefix(types[0], "multipart/form-data; boundary="))
		require.Contains(t, string(bodies[0]), `name="archivo"; filename="notes.txt"`)
	})
}

// gatedRefreshServer answers 401 to anything not carrying "fresh" and holds
// the refresh call until release is closed.
func gatedRefreshServer(t *testing.T) (srv *httptest.Server, started <-chan struct{}, release chan struct{}, refreshes *atomic.Int32) {
	t.Helper()

	startedCh := make(chan struct{}, 1)
	release = make(chan struct{})
	refreshes = &atomic.Int32{}

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/usuarios/refresh-token" {
			refreshes.Add(1)
			select {
			case startedCh <- struct{}{}:
			default:
			}
			<-release
			_, _ = io.WriteString(w, `{"accessToken":"fresh"}`)
			return
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	return srv, startedCh, release, refreshes
}

func TestQueuedRequestHonoursItsContext(t *testing.T) {
	t.Parallel()

	srv, started, release, refreshes := gatedRefreshServer(t)
	sess, _ := seededSession(t, srv.URL, "stale", "refresh-1")

	firstErr := make(chan error, 1)
	go func() {
		_, err := sess.ListCourses(context.Background())
		firstErr <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := sess.ListCourses(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-firstErr)
	require.Equal(t, int32(1), refreshes.Load())
}

func TestRefreshOutlivesCancelledTrigger(t *testing.T) {
	t.Parallel()

	srv, started, release, refreshes := gatedRefreshServer(t)
	sess, store := seededSession(t, srv.URL, "stale", "refresh-1")

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := sess.ListCourses(ctx)
		firstErr <- err
	}()
	<-started

	secondErr := make(chan error, 1)
	go func() {
		_, err := sess.ListCourses(context.Background())
		secondErr <- err
	}()

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.ErrorIs(t, <-firstErr, context.Canceled)
	require.NoError(t, <-secondErr)
	require.Equal(t, int32(1), refreshes.Load())

	access, err := store.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh", access)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	backend, srv := startBackend(t)
	sess, store := login(t, srv, mockapi.TeacherEmail)

	var causes []error
	sess.OnTerminated(func(err error) { causes = append(causes, err) })
	cancelled := false
	unsubscribe := sess.OnTerminated(func(error) { cancelled = true })
	unsubscribe()

	require.NoError(t, sess.Logout(context.Background()))
	require.Equal(t, 1, backend.LogoutCalls())
	require.Len(t, causes, 1)
	require.ErrorIs(t, causes[0], aulasdk.ErrLoggedOut)
	require.ErrorIs(t, causes[0], aulasdk.ErrSessionTerminated)
	require.False(t, cancelled)

	creds, err := store.Credentials(context.Background())
	require.NoError(t, err)
	require.Equal(t, tokenstore.Credentials{}, creds)
}

func TestUserIDFallsBackToTokenSubject(t *testing.T) {
	t.Parallel()

	backend, srv := startBackend(t)
	token, err := backend.IssueAccessToken(mockapi.StudentID)
	require.NoError(t, err)

	store := tokenstore.NewMemory()
	require.NoError(t, store.SetAccessToken(context.Background(), token))
	sess := aulasdk.NewSession(newClient(srv.URL), store)

	id, err := sess.UserID(context.Background())
	require.NoError(t, err)
	require.Equal(t, mockapi.StudentID, id)

	require.NoError(t, store.Clear(context.Background()))
	_, err = sess.UserID(context.Background())
	require.True(t, errors.Is(err, aulasdk.ErrNoSession))
}

func TestStaleTokenReplaysWithoutSecondRefresh(t *testing.T) {
	t.Parallel()

	store := tokenstore.NewMemory()
	require.NoError(t, store.SaveSession(context.Background(), tokenstore.Credentials{
		AccessToken:  "old",
		RefreshToken: "refresh-1",
	}, nil))

	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/usuarios/refresh-token":
			refreshes.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		case "/usuarios/perfil":
			switch r.Header.Get("Authorization") {
			case "Bearer old":
				// Another request refreshed while this one was in flight.
				_ = store.SetAccessToken(context.Background(), "fresh")
				w.WriteHeader(http.StatusUnauthorized)
			case "Bearer fresh":
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"id":"u1","name":"Test","email":"t@aula.test","role":"student"}`)
			default:
				w.WriteHeader(http.StatusUnauthorized)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	sess := aulasdk.NewSession(newClient(srv.URL), store)

	u, err := sess.Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)
	require.Zero(t, refreshes.Load())

	token, err := store.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh", token)
}
