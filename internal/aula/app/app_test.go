package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/aula/internal/mockapi"
	"github.com/aussiebroadwan/aula/pkg/slogx"
	"github.com/aussiebroadwan/aula/pkg/tokenstore"
	"github.com/stretchr/testify/require"
)

func TestOpenStoreDrivers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []StoreConfig{
		{Driver: StoreMemory},
		{Driver: StoreSQLite, Path: filepath.Join(dir, "nested", "session.db")},
		{Driver: StoreBolt, Path: filepath.Join(dir, "nested", "session.bolt")},
	}

	for _, cfg := range tests {
		t.Run(cfg.Driver, func(t *testing.T) {
			store, err := OpenStore(cfg, slogx.Discard())
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			ctx := context.Background()
			require.NoError(t, store.SaveSession(ctx, tokenstore.Credentials{
				AccessToken:  "access",
				RefreshToken: "refresh",
			}, []byte(`{"id":"u1"}`)))

			creds, err := store.Credentials(ctx)
			require.NoError(t, err)
			require.Equal(t, "access", creds.AccessToken)
		})
	}
}

func TestSealedStoreEncryptsValues(t *testing.T) {
	t.Setenv(MasterKeyEnv, "correct horse battery staple")

	ctx := context.Background()
	cfg := StoreConfig{Driver: StoreBolt, Path: filepath.Join(t.TempDir(), "session.bolt")}
	require.True(t, cfg.Sealed())

	store, err := OpenStore(cfg, slogx.Discard())
	require.NoError(t, err)
	require.NoError(t, store.SaveSession(ctx, tokenstore.Credentials{
		AccessToken:  "plain-access",
		RefreshToken: "plain-refresh",
	}, nil))
	require.NoError(t, store.Close())

	raw, err := tokenstore.OpenBolt(cfg.Path)
	require.NoError(t, err)
	value, err := raw.Get(ctx, tokenstore.KeyAccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, value)
	require.NotContains(t, string(value), "plain-access")
	require.NoError(t, raw.Close())

	store, err = OpenStore(cfg, slogx.Discard())
	require.NoError(t, err)
	defer store.Close()
	token, err := store.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "plain-access", token)
}

func TestSealedStoreNeedsKey(t *testing.T) {
	t.Parallel()

	_, err := OpenStore(StoreConfig{
		Driver:  StoreMemory,
		KeyFile: filepath.Join(t.TempDir(), "missing.key"),
	}, slogx.Discard())
	require.ErrorContains(t, err, "failed to load store key")
}

func TestApplicationLoginAndInbox(t *testing.T) {
	t.Parallel()

	backend, err := mockapi.New(mockapi.Config{SeedFixtures: true})
	require.NoError(t, err)
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	application, err := New(Config{
		BaseURL:           srv.URL,
		Store:             StoreConfig{Driver: StoreMemory},
		RequestTimeout:    5 * time.Second,
		RefreshTimeout:    time.Second,
		NotificationLimit: 10,
		LogLevel:          "error",
		LogFormat:         "text",
	}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	ctx := context.Background()
	user, err := application.Login(ctx, mockapi.TeacherEmail, mockapi.DemoPassword)
	require.NoError(t, err)
	require.Equal(t, mockapi.TeacherID, user.ID)

	courses, err := application.Session().ListCourses(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, courses)

	inbox, err := application.Inbox(nil)
	require.NoError(t, err)
	defer inbox.Close()

	require.NoError(t, inbox.Start(ctx))
	select {
	case <-inbox.Loaded():
	case <-time.After(2 * time.Second):
		t.Fatal("initial load did not finish")
	}

	require.NoError(t, application.Session().Logout(ctx))
	select {
	case <-inbox.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("inbox did not close on logout")
	}
}

func TestDevServerServesAPIAndMetrics(t *testing.T) {
	t.Parallel()

	dev, err := NewDevServer(DevServerConfig{Addr: "127.0.0.1:0"}, slogx.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dev.Run(ctx) }()

	for _, path := range []string{"/health", "/metrics"} {
		resp, err := http.Get(dev.URL() + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dev server did not stop")
	}
}
