package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Sign in with email and password. The tokens and profile are kept in
the configured token store until logout or until the backend rejects the
refresh token.

Examples:
  # Prompt for the password
  aula login --email student@aula.test

  # Non-interactive
  AULA_PASSWORD=secret aula login --email student@aula.test`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session and clear the token store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Session().Logout(cmd.Context()); err != nil {
			return fmt.Errorf("failed to log out: %w", err)
		}
		success(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := application.Session()

		u, err := sess.Profile(cmd.Context())
		if err != nil {
			if errors.Is(err, aulasdk.ErrSessionTerminated) {
				return errors.New("not signed in, run `aula login`")
			}
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, u, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "ID:\t%s\n", u.ID)
			fmt.Fprintf(tw, "Name:\t%s\n", u.Name)
			fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
			fmt.Fprintf(tw, "Role:\t%s\n", u.Role)
		})
	},
}

func init() {
	loginCmd.Flags().String("email", "", "account email (required)")
	loginCmd.Flags().String("password", "", "account password (default: $AULA_PASSWORD or prompt)")
	_ = loginCmd.MarkFlagRequired("email")
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	if password == "" {
		password = os.Getenv("AULA_PASSWORD")
	}
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	u, err := application.Login(cmd.Context(), email, password)
	if err != nil {
		var verr *aulasdk.ValidationError
		switch {
		case errors.As(err, &verr):
			return fmt.Errorf("invalid credentials: %w", verr)
		case aulasdk.IsUnauthorized(err):
			return errors.New("wrong email or password")
		}
		return err
	}

	success(cmd.OutOrStdout(), "Signed in as %s (%s)", u.Name, u.Role)
	return nil
}
