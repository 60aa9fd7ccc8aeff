package main

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/aula/internal/aula/app"
	"github.com/aussiebroadwan/aula/internal/mockapi"
	"github.com/aussiebroadwan/aula/pkg/slogx"
	"github.com/spf13/cobra"
)

var devServerCmd = &cobra.Command{
	Use:   "dev-server",
	Short: "Run an in-memory backend with demo data",
	Long: `Run a local in-memory backend seeded with demo accounts, courses,
an open exam and a few notifications. Useful for trying the CLI and for
integration work. Nothing is persisted.

Examples:
  # Terminal 1
  aula dev-server --addr :8080

  # Terminal 2
  AULA_BASE_URL=http://127.0.0.1:8080 aula login --email student@aula.test --password aula-demo-123`,
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		ttl, _ := cmd.Flags().GetDuration("access-ttl")
		level, _ := cmd.Flags().GetString("log-level")

		logger := slogx.New(slogx.Config{
			Service: "aula-dev-server",
			Version: Version,
			Env:     "dev",
			Level:   level,
			Format:  "text",
			Output:  os.Stderr,
		})

		srv, err := app.NewDevServer(app.DevServerConfig{Addr: addr, AccessTTL: ttl}, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Dev backend listening on %s\n", srv.URL())
		fmt.Fprintf(out, "  Accounts: %s, %s, %s\n", mockapi.AdminEmail, mockapi.TeacherEmail, mockapi.StudentEmail)
		fmt.Fprintf(out, "  Password: %s\n", mockapi.DemoPassword)
		fmt.Fprintf(out, "  Metrics:  %s/metrics\n", srv.URL())
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Press Ctrl+C to stop.")

		return srv.Run(cmd.Context())
	},
}

func init() {
	devServerCmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	devServerCmd.Flags().Duration("access-ttl", 0, "access token lifetime (default: backend default)")
	devServerCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}
