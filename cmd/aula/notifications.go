package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/metrics"
	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "List and follow notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		sess := application.Session()

		items, err := sess.RecentNotifications(cmd.Context(), limit)
		if err != nil {
			return err
		}
		unread, err := sess.UnreadNotificationCount(cmd.Context())
		if err != nil {
			return err
		}

		out := struct {
			Unread        int                    `json:"unread" yaml:"unread"`
			Notifications []aulasdk.Notification `json:"notifications" yaml:"notifications"`
		}{unread, items}

		return render(cmd.OutOrStdout(), outputFormat, out, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "%d unread\n\n", unread)
			printNotifications(tw, items)
		})
	},
}

var notificationsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow notifications as they arrive",
	Long: `Load the recent notifications, then print new ones as the backend
pushes them until interrupted or the session ends.

Examples:
  # Follow notifications and expose client metrics
  aula notifications watch --metrics-addr :9102`,
	RunE: runWatch,
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Session().MarkNotificationRead(cmd.Context(), args[0]); err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "Marked %s as read", args[0])
		return nil
	},
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Session().MarkAllNotificationsRead(cmd.Context()); err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "All notifications marked as read")
		return nil
	},
}

var notificationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Session().DeleteNotification(cmd.Context(), args[0]); err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "Deleted %s", args[0])
		return nil
	},
}

func init() {
	notificationsListCmd.Flags().Int("limit", aulasdk.DefaultNotificationLimit, "how many notifications to show")
	notificationsWatchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsWatchCmd)
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
	notificationsCmd.AddCommand(notificationsDeleteCmd)
}

func printNotifications(tw *tabwriter.Writer, items []aulasdk.Notification) {
	fmt.Fprintln(tw, " \tID\tTYPE\tTITLE\tCREATED")
	for _, n := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", readMark(n.Read), n.ID, n.Type, n.Title, when(n.CreatedAt))
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 3 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				application.Logger().Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	inbox, err := application.Inbox(func(n aulasdk.Notification) {
		fmt.Fprintf(out, "%s %s  %s  %s\n", unreadMark("●"), dim(when(n.CreatedAt)), n.Title, orDash(n.Message))
	})
	if err != nil {
		return err
	}
	defer inbox.Close()

	if err := inbox.Start(ctx); err != nil {
		if errors.Is(err, aulasdk.ErrNoSession) {
			return errors.New("not signed in, run `aula login`")
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "live updates unavailable: %v\n", err)
	}

	select {
	case <-inbox.Loaded():
	case <-inbox.Done():
	}

	feed := inbox.Feed()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%d unread\n\n", feed.Unread())
	printNotifications(tw, feed.Snapshot())
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out, dim("watching for new notifications, Ctrl+C to stop"))

	select {
	case <-ctx.Done():
		fmt.Fprintln(out, "\nStopped")
		return nil
	case <-inbox.Done():
		if ctx.Err() != nil {
			return nil
		}
		return errors.New("session ended, run `aula login` again")
	}
}
