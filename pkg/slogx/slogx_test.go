package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/aula/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONWithServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{
		Service: "aula",
		Version: "test",
		Env:     "test",
		Level:   "info",
		Format:  "json",
		Output:  &buf,
	})
	t.Cleanup(func() { slog.SetDefault(slogx.Discard()) })

	logger.Debug("hidden")
	logger.Info("visible", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "visible", line["msg"])
	require.Equal(t, "aula", line["service"])
	require.Equal(t, "v", line["k"])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.Default(), slogx.FromContext(context.Background()))

	l := slogx.Discard()
	require.Equal(t, l, slogx.FromContext(slogx.WithContext(context.Background(), l)))
}

func TestTransportUsesContextLogger(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	ctxLogger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := slogx.WithRequestID(slogx.WithContext(context.Background(), ctxLogger), "req-1")

	client := &http.Client{Transport: &slogx.Transport{Logger: slogx.Discard()}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/ping", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "req-1", line["req_id"])
	require.Equal(t, "/ping", line["path"])
	require.EqualValues(t, http.StatusTeapot, line["status"])
}
