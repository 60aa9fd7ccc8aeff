package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/spf13/cobra"
)

// Courses

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Browse courses",
}

var coursesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the courses visible to you",
	RunE: func(cmd *cobra.Command, args []string) error {
		courses, err := application.Session().ListCourses(cmd.Context())
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, courses, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "ID\tCODE\tNAME\tTEACHER")
			for _, c := range courses {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Code, c.Name, orDash(c.TeacherName))
			}
		})
	},
}

// Exams

var examsCmd = &cobra.Command{
	Use:   "exams",
	Short: "List and take exams",
}

var examsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exams, optionally for one course",
	RunE: func(cmd *cobra.Command, args []string) error {
		courseID, _ := cmd.Flags().GetString("course")

		exams, err := application.Session().ListExams(cmd.Context(), courseID)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, exams, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "ID\tCOURSE\tTITLE\tOPENS\tCLOSES\tQUESTIONS")
			for _, e := range exams {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
					e.ID, e.CourseID, e.Title, when(e.OpensAt), when(e.ClosesAt), len(e.Questions))
			}
		})
	},
}

var examsStartCmd = &cobra.Command{
	Use:   "start <exam-id>",
	Short: "Start an attempt and show its questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		attempt, err := application.Session().StartAttempt(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, attempt, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "Attempt %s started %s\n\n", attempt.ID, when(attempt.StartedAt))
			for i, q := range attempt.Questions {
				fmt.Fprintf(tw, "%d.\t%s\t(%s, %g pts)\n", i+1, q.Prompt, q.Type, q.Points)
				for _, o := range q.Options {
					fmt.Fprintf(tw, "\t  [%s] %s\n", o.ID, o.Text)
				}
			}
		})
	},
}

// Messages

var messagesCmd = &cobra.Command{
	Use:     "messages",
	Aliases: []string{"msg"},
	Short:   "Read and send messages",
}

var messagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List received messages (or sent with --sent)",
	RunE: func(cmd *cobra.Command, args []string) error {
		sent, _ := cmd.Flags().GetBool("sent")
		sess := application.Session()

		var (
			msgs []aulasdk.Message
			err  error
		)
		if sent {
			msgs, err = sess.ListSent(cmd.Context())
		} else {
			msgs, err = sess.ListInbox(cmd.Context())
		}
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, msgs, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, " \tID\tFROM\tTO\tSUBJECT\tSENT")
			for _, m := range msgs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					readMark(m.Read || sent), m.ID, nameOr(m.SenderName, m.SenderID), nameOr(m.RecipientName, m.RecipientID), m.Subject, when(m.SentAt))
			}
		})
	},
}

var messagesSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message",
	Long: `Send a message to another user.

Examples:
  aula messages send --to u-teacher --subject "Midterm" --body "Is chapter 4 included?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		subject, _ := cmd.Flags().GetString("subject")
		body, _ := cmd.Flags().GetString("body")

		msg, err := application.Session().SendMessage(cmd.Context(), aulasdk.SendMessageRequest{
			RecipientID: to,
			Subject:     subject,
			Body:        body,
		})
		if err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "Message %s sent", msg.ID)
		return nil
	},
}

// Announcements

var announcementsCmd = &cobra.Command{
	Use:   "announcements",
	Short: "Read announcements",
}

var announcementsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List announcements, optionally for one course",
	RunE: func(cmd *cobra.Command, args []string) error {
		courseID, _ := cmd.Flags().GetString("course")

		items, err := application.Session().ListAnnouncements(cmd.Context(), courseID)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, items, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "ID\tCOURSE\tTITLE\tPUBLISHED\t")
			for _, a := range items {
				pin := ""
				if a.Pinned {
					pin = "pinned"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, orDash(a.CourseID), a.Title, when(a.CreatedAt), pin)
			}
		})
	},
}

// Reports

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show reports",
}

var reportDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the dashboard numbers for your role",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := application.Session().DashboardStats(cmd.Context())
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), outputFormat, stats, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "Role:\t%s\n", strings.ToUpper(string(stats.Role)))
			fmt.Fprintf(tw, "Courses:\t%d\n", stats.Courses)
			fmt.Fprintf(tw, "Students:\t%d\n", stats.Students)
			fmt.Fprintf(tw, "Pending assignments:\t%d\n", stats.PendingAssignments)
			fmt.Fprintf(tw, "Upcoming exams:\t%d\n", stats.UpcomingExams)
			fmt.Fprintf(tw, "Unread messages:\t%d\n", stats.UnreadMessages)
		})
	},
}

func nameOr(name, id string) string {
	if name != "" {
		return name
	}
	return orDash(id)
}

func init() {
	coursesCmd.AddCommand(coursesListCmd)

	examsListCmd.Flags().String("course", "", "course id")
	examsCmd.AddCommand(examsListCmd)
	examsCmd.AddCommand(examsStartCmd)

	messagesListCmd.Flags().Bool("sent", false, "list sent messages instead")
	messagesSendCmd.Flags().String("to", "", "recipient user id (required)")
	messagesSendCmd.Flags().String("subject", "", "subject (required)")
	messagesSendCmd.Flags().String("body", "", "message body (required)")
	_ = messagesSendCmd.MarkFlagRequired("to")
	messagesCmd.AddCommand(messagesListCmd)
	messagesCmd.AddCommand(messagesSendCmd)

	announcementsListCmd.Flags().String("course", "", "course id")
	announcementsCmd.AddCommand(announcementsListCmd)

	reportCmd.AddCommand(reportDashboardCmd)
}
