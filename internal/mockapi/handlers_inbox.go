package mockapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/httpx"
)

// ============================================================================
// Messages
// ============================================================================

func (b *Backend) listMessages(w http.ResponseWriter, r *http.Request, keep func(m *aulasdk.Message, userID string) bool) {
	userID := httpx.UserIDFromContext(r.Context())

	b.mu.Lock()
	out := make([]aulasdk.Message, 0)
	for i := len(b.messages) - 1; i >= 0; i-- {
		if keep(b.messages[i], userID) {
			out = append(out, *b.messages[i])
		}
	}
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleInbox(w http.ResponseWriter, r *http.Request) {
	b.listMessages(w, r, func(m *aulasdk.Message, userID string) bool { return m.RecipientID == userID })
}

func (b *Backend) handleSent(w http.ResponseWriter, r *http.Request) {
	b.listMessages(w, r, func(m *aulasdk.Message, userID string) bool { return m.SenderID == userID })
}

// findMessageLocked returns the message when the caller sent or received it.
func (b *Backend) findMessageLocked(r *http.Request) (int, *aulasdk.Message) {
	id := r.PathValue("id")
	userID := httpx.UserIDFromContext(r.Context())
	for i, m := range b.messages {
		if m.ID == id && (m.SenderID == userID || m.RecipientID == userID) {
			return i, m
		}
	}
	return -1, nil
}

func (b *Backend) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	_, m := b.findMessageLocked(r)
	var out aulasdk.Message
	if m != nil {
		out = *m
	}
	b.mu.Unlock()

	if m == nil {
		notFound(w, "message")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.SendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	userID := httpx.UserIDFromContext(r.Context())

	b.mu.Lock()
	recipient, ok := b.accounts[req.RecipientID]
	if !ok {
		b.mu.Unlock()
		notFound(w, "recipient")
		return
	}
	m := &aulasdk.Message{
		ID:            b.nextID("msg"),
		SenderID:      userID,
		SenderName:    b.accounts[userID].user.Name,
		RecipientID:   recipient.user.ID,
		RecipientName: recipient.user.Name,
		Subject:       req.Subject,
		Body:          req.Body,
		SentAt:        time.Now().UTC(),
	}
	b.messages = append(b.messages, m)
	out := *m
	b.mu.Unlock()

	b.Notify(out.RecipientID, aulasdk.Notification{
		Title:   "New message from " + out.SenderName,
		Message: out.Subject,
		Type:    aulasdk.NotificationMessage,
		Link:    "/mensajes/" + out.ID,
	})
	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (b *Backend) handleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	_, m := b.findMessageLocked(r)
	if m != nil {
		m.Read = true
	}
	b.mu.Unlock()

	if m == nil {
		notFound(w, "message")
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "message marked as read")
}

func (b *Backend) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	i, m := b.findMessageLocked(r)
	if m != nil {
		b.messages = append(b.messages[:i], b.messages[i+1:]...)
	}
	b.mu.Unlock()

	if m == nil {
		notFound(w, "message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Notifications
// ============================================================================

// The feed handlers take their snapshot on arrival and only then wait on
// HoldFeed, like a slow response from a real backend.
func (b *Backend) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = aulasdk.DefaultNotificationLimit
	}
	userID := httpx.UserIDFromContext(r.Context())

	b.mu.Lock()
	all := b.notifications[userID]
	if len(all) > limit {
		all = all[:limit]
	}
	out := append([]aulasdk.Notification{}, all...)
	b.mu.Unlock()

	b.waitFeed(r.Context())
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())

	b.mu.Lock()
	n := 0
	for _, item := range b.notifications[userID] {
		if !item.Read {
			n++
		}
	}
	b.mu.Unlock()

	b.waitFeed(r.Context())
	httpx.WriteJSON(w, http.StatusOK, aulasdk.UnreadCount{Count: n})
}

func (b *Backend) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := httpx.UserIDFromContext(r.Context())

	b.mu.Lock()
	found := false
	for i := range b.notifications[userID] {
		if b.notifications[userID][i].ID == id {
			b.notifications[userID][i].Read = true
			found = true
			break
		}
	}
	b.mu.Unlock()

	if !found {
		notFound(w, "notification")
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "notification marked as read")
}

func (b *Backend) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())

	b.mu.Lock()
	for i := range b.notifications[userID] {
		b.notifications[userID][i].Read = true
	}
	b.mu.Unlock()

	httpx.WriteMessage(w, http.StatusOK, "all notifications marked as read")
}

func (b *Backend) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	userID := httpx.UserIDFromContext(r.Context())

	b.mu.Lock()
	items := b.notifications[userID]
	found := false
	for i := range items {
		if items[i].ID == id {
			b.notifications[userID] = append(items[:i:i], items[i+1:]...)
			found = true
			break
		}
	}
	b.mu.Unlock()

	if !found {
		notFound(w, "notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Announcements
// ============================================================================

func (b *Backend) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	courseID := r.URL.Query().Get("curso")

	b.mu.Lock()
	out := make([]aulasdk.Announcement, 0)
	for i := len(b.announcements) - 1; i >= 0; i-- {
		a := b.announcements[i]
		if courseID == "" || a.CourseID == courseID {
			out = append(out, *a)
		}
	}
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.AnnouncementRequest
	if !decode(w, r, &req) {
		return
	}
	userID := httpx.UserIDFromContext(r.Context())

	b.mu.Lock()
	a := &aulasdk.Announcement{
		ID:         b.nextID("a"),
		CourseID:   req.CourseID,
		AuthorID:   userID,
		AuthorName: b.accounts[userID].user.Name,
		Title:      req.Title,
		Body:       req.Body,
		Pinned:     req.Pinned,
		CreatedAt:  time.Now().UTC(),
	}
	b.announcements = append(b.announcements, a)
	out := *a
	students := b.studentsOfLocked(req.CourseID)
	b.mu.Unlock()

	for _, id := range students {
		b.Notify(id, aulasdk.Notification{
			Title:   out.Title,
			Message: out.Body,
			Type:    aulasdk.NotificationAnnouncement,
		})
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (b *Backend) findAnnouncementLocked(id string) int {
	for i, a := range b.announcements {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (b *Backend) handleUpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.AnnouncementRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	i := b.findAnnouncementLocked(r.PathValue("id"))
	var out aulasdk.Announcement
	if i >= 0 {
		a := b.announcements[i]
		a.CourseID, a.Title, a.Body, a.Pinned = req.CourseID, req.Title, req.Body, req.Pinned
		out = *a
	}
	b.mu.Unlock()

	if i < 0 {
		notFound(w, "announcement")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	i := b.findAnnouncementLocked(r.PathValue("id"))
	if i >= 0 {
		b.announcements = append(b.announcements[:i], b.announcements[i+1:]...)
	}
	b.mu.Unlock()

	if i < 0 {
		notFound(w, "announcement")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Reports
// ============================================================================

func (b *Backend) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	role := aulasdk.Role(httpx.RoleFromContext(r.Context()))
	now := time.Now()

	b.mu.Lock()
	stats := aulasdk.DashboardStats{Role: role}
	for _, acc := range b.accounts {
		switch acc.user.Role {
		case aulasdk.RoleStudent:
			stats.Students++
		case aulasdk.RoleTeacher:
			stats.Teachers++
		}
	}
	for _, c := range b.courses {
		if b.canSeeCourseLocked(r, c) {
			stats.Courses++
		}
	}
	for _, a := range b.assignments {
		if a.DueAt.After(now) {
			stats.PendingAssignments++
		}
	}
	for _, e := range b.exams {
		if e.OpensAt.After(now) {
			stats.UpcomingExams++
		}
	}
	for _, m := range b.messages {
		if m.RecipientID == userID && !m.Read {
			stats.UnreadMessages++
		}
	}
	stats.AverageScore = averageScore(b.results, func(aulasdk.AttemptResult) bool { return true })
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (b *Backend) handleCourseReport(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.courses[r.PathValue("id")]
	if !ok {
		notFound(w, "course")
		return
	}

	report := aulasdk.CourseReport{
		CourseID:    c.ID,
		CourseName:  c.Name,
		Students:    len(b.enrollments[c.ID]),
		Assignments: []aulasdk.AssignmentStat{},
		Exams:       []aulasdk.ExamStat{},
	}

	var submitted, expected int
	for _, a := range sortedByID(b.assignments, func(a *aulasdk.Assignment) string { return a.ID },
		func(a *aulasdk.Assignment) bool { return a.CourseID == c.ID }) {
		stat := aulasdk.AssignmentStat{AssignmentID: a.ID, Title: a.Title}
		var sum float64
		for _, s := range b.submissions {
			if s.AssignmentID != a.ID {
				continue
			}
			stat.Submitted++
			if s.Score != nil {
				stat.Graded++
				sum += *s.Score
			}
		}
		if stat.Graded > 0 {
			stat.AverageScore = sum / float64(stat.Graded)
		}
		submitted += stat.Submitted
		expected += report.Students
		report.Assignments = append(report.Assignments, stat)
	}
	if expected > 0 {
		report.CompletionRate = float64(submitted) / float64(expected)
	}

	for _, e := range sortedByID(b.exams, func(e *aulasdk.Exam) string { return e.ID },
		func(e *aulasdk.Exam) bool { return e.CourseID == c.ID }) {
		stat := aulasdk.ExamStat{ExamID: e.ID, Title: e.Title}
		for _, res := range b.results {
			if res.ExamID == e.ID {
				stat.Attempts++
			}
		}
		stat.AverageScore = averageScore(b.results, func(res aulasdk.AttemptResult) bool { return res.ExamID == e.ID })
		report.Exams = append(report.Exams, stat)
	}
	report.AverageScore = averageScore(b.results, func(res aulasdk.AttemptResult) bool {
		e, ok := b.exams[res.ExamID]
		return ok && e.CourseID == c.ID
	})

	httpx.WriteJSON(w, http.StatusOK, report)
}

func (b *Backend) handleStudentReport(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	caller := httpx.UserIDFromContext(r.Context())
	if httpx.RoleFromContext(r.Context()) == student && caller != studentID {
		httpx.WriteMessage(w, http.StatusForbidden, "insufficient role")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.accounts[studentID]
	if !ok || acc.user.Role != aulasdk.RoleStudent {
		notFound(w, "student")
		return
	}

	report := aulasdk.StudentReport{
		StudentID:   studentID,
		StudentName: acc.user.Name,
		Courses:     []aulasdk.StudentCourseStat{},
	}
	report.AverageScore = averageScore(b.results, func(res aulasdk.AttemptResult) bool { return res.StudentID == studentID })

	for _, c := range sortedByID(b.courses, func(c *aulasdk.Course) string { return c.ID },
		func(c *aulasdk.Course) bool { return b.enrollments[c.ID][studentID] }) {
		stat := aulasdk.StudentCourseStat{CourseID: c.ID, CourseName: c.Name}
		for _, a := range b.assignments {
			if a.CourseID != c.ID {
				continue
			}
			done := false
			for _, s := range b.submissions {
				if s.AssignmentID == a.ID && s.StudentID == studentID {
					done = true
					break
				}
			}
			if done {
				stat.SubmittedCount++
			} else {
				stat.PendingCount++
			}
		}
		for _, res := range b.results {
			if e, ok := b.exams[res.ExamID]; ok && e.CourseID == c.ID && res.StudentID == studentID {
				stat.ExamsTaken++
			}
		}
		stat.AverageScore = averageScore(b.results, func(res aulasdk.AttemptResult) bool {
			e, ok := b.exams[res.ExamID]
			return ok && e.CourseID == c.ID && res.StudentID == studentID
		})
		report.Courses = append(report.Courses, stat)
	}

	httpx.WriteJSON(w, http.StatusOK, report)
}

// averageScore is the mean of score/maxScore over matching results, as a
// percentage.
func averageScore(results []aulasdk.AttemptResult, keep func(aulasdk.AttemptResult) bool) float64 {
	var sum float64
	n := 0
	for _, res := range results {
		if !keep(res) || res.MaxScore <= 0 {
			continue
		}
		sum += res.Score / res.MaxScore * 100
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
