package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/aula/internal/mockapi"
	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/stretchr/testify/require"
)

// run executes the root command the way main does and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	application = nil
	outputFormat = "table"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	closeApplication()
	return out.String(), err
}

func setupCLI(t *testing.T) *mockapi.Backend {
	t.Helper()

	backend, err := mockapi.New(mockapi.Config{SeedFixtures: true})
	require.NoError(t, err)
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	t.Setenv("AULA_BASE_URL", srv.URL)
	t.Setenv("AULA_STORE", "bolt")
	t.Setenv("AULA_STORE_PATH", filepath.Join(t.TempDir(), "session.bolt"))
	t.Setenv("LOG_LEVEL", "error")
	return backend
}

func TestLoginWhoamiLogout(t *testing.T) {
	backend := setupCLI(t)

	out, err := run(t, "login", "--email", mockapi.StudentEmail, "--password", mockapi.DemoPassword)
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as")

	out, err = run(t, "whoami", "-o", "json")
	require.NoError(t, err)
	var u aulasdk.User
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	require.Equal(t, mockapi.StudentID, u.ID)

	_, err = run(t, "logout")
	require.NoError(t, err)
	require.Equal(t, 1, backend.LogoutCalls())

	_, err = run(t, "whoami")
	require.ErrorContains(t, err, "not signed in")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	setupCLI(t)

	_, err := run(t, "login", "--email", mockapi.StudentEmail, "--password", "wrong")
	require.ErrorContains(t, err, "wrong email or password")
}

func TestClassroomCommands(t *testing.T) {
	setupCLI(t)

	_, err := run(t, "login", "--email", mockapi.StudentEmail, "--password", mockapi.DemoPassword)
	require.NoError(t, err)

	out, err := run(t, "courses", "list")
	require.NoError(t, err)
	require.Contains(t, out, "c-algebra")

	out, err = run(t, "notifications", "list", "-o", "yaml")
	require.NoError(t, err)
	require.Contains(t, out, "unread: 2")

	out, err = run(t, "notifications", "read", "n-3")
	require.NoError(t, err)
	require.Contains(t, out, "Marked n-3 as read")

	out, err = run(t, "exams", "list", "--course", "c-algebra")
	require.NoError(t, err)
	require.Contains(t, out, "x-1")

	out, err = run(t, "messages", "send", "--to", mockapi.TeacherID, "--subject", "Hi", "--body", "Question about x-1")
	require.NoError(t, err)
	require.Contains(t, out, "sent")

	out, err = run(t, "report", "dashboard")
	require.NoError(t, err)
	require.Contains(t, out, "STUDENT")

	_, err = run(t, "courses", "list", "-o", "xml")
	require.ErrorContains(t, err, "unknown output format")
}
