package mockapi

import (
	"time"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
)

// Demo accounts loaded by SeedFixtures. They all share DemoPassword.
const (
	DemoPassword = "aula-demo-123"

	AdminID   = "u-admin"
	TeacherID = "u-teacher"
	StudentID = "u-student"

	AdminEmail   = "admin@aula.test"
	TeacherEmail = "teacher@aula.test"
	StudentEmail = "student@aula.test"
)

func (b *Backend) seedFixtures() error {
	users := []aulasdk.User{
		{ID: AdminID, Name: "Ada Admin", Email: AdminEmail, Role: aulasdk.RoleAdmin},
		{ID: TeacherID, Name: "Tomás Teacher", Email: TeacherEmail, Role: aulasdk.RoleTeacher},
		{ID: StudentID, Name: "Sofía Student", Email: StudentEmail, Role: aulasdk.RoleStudent},
	}
	for _, u := range users {
		if _, err := b.AddUser(u, DemoPassword); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	yes, no := true, false

	b.mu.Lock()
	defer b.mu.Unlock()

	// Generated ids start above the fixture ids.
	b.seq = 100

	b.courses["c-algebra"] = &aulasdk.Course{
		ID: "c-algebra", Name: "Algebra I", Code: "MAT-101",
		Description: "Linear equations, polynomials and functions.",
		TeacherID:   TeacherID, TeacherName: "Tomás Teacher",
		StudentCount: 1, CreatedAt: now.AddDate(0, -2, 0),
	}
	b.courses["c-history"] = &aulasdk.Course{
		ID: "c-history", Name: "World History", Code: "HIS-201",
		TeacherID: TeacherID, TeacherName: "Tomás Teacher",
		CreatedAt: now.AddDate(0, -1, 0),
	}
	b.enrollments["c-algebra"] = map[string]bool{StudentID: true}

	b.classes["cl-1"] = &aulasdk.Class{
		ID: "cl-1", CourseID: "c-algebra", Title: "Quadratic equations",
		StartsAt: now.Add(24 * time.Hour), DurationMinutes: 60,
		MeetingURL: "https://meet.aula.test/cl-1",
	}

	b.assignments["t-1"] = &aulasdk.Assignment{
		ID: "t-1", CourseID: "c-algebra", Title: "Problem set 3",
		Description: "Exercises 1-20 from chapter 3.",
		DueAt:       now.Add(72 * time.Hour), MaxScore: 10,
	}

	b.exams["x-1"] = &aulasdk.Exam{
		ID: "x-1", CourseID: "c-algebra", Title: "Midterm",
		DurationMinutes: 45, OpensAt: now.Add(-time.Hour), ClosesAt: now.Add(7 * 24 * time.Hour),
		MaxAttempts: 2,
		Questions: []aulasdk.Question{
			{
				ID: "q-1", Prompt: "2x = 8, x = ?", Type: aulasdk.QuestionSingle, Points: 5,
				Options: []aulasdk.Option{
					{ID: "o-1", Text: "2", Correct: &no},
					{ID: "o-2", Text: "4", Correct: &yes},
				},
			},
			{ID: "q-2", Prompt: "Explain what a function is.", Type: aulasdk.QuestionOpen, Points: 5},
		},
	}

	b.messages = append(b.messages, &aulasdk.Message{
		ID: "msg-1", SenderID: TeacherID, SenderName: "Tomás Teacher",
		RecipientID: StudentID, RecipientName: "Sofía Student",
		Subject: "Welcome", Body: "Welcome to Algebra I!", SentAt: now.Add(-48 * time.Hour),
	})

	b.announcements = append(b.announcements, &aulasdk.Announcement{
		ID: "a-1", CourseID: "c-algebra", AuthorID: TeacherID, AuthorName: "Tomás Teacher",
		Title: "Midterm next week", Body: "Covers chapters 1 to 3.", Pinned: true,
		CreatedAt: now.Add(-24 * time.Hour),
	})

	b.notifications[StudentID] = []aulasdk.Notification{
		{ID: "n-3", Title: "Midterm next week", Message: "Covers chapters 1 to 3.", Type: aulasdk.NotificationAnnouncement, CreatedAt: now.Add(-24 * time.Hour)},
		{ID: "n-2", Title: "New assignment", Message: "Problem set 3", Type: aulasdk.NotificationAssignment, Link: "/tareas/t-1", CreatedAt: now.Add(-36 * time.Hour)},
		{ID: "n-1", Title: "New message from Tomás Teacher", Message: "Welcome", Type: aulasdk.NotificationMessage, Link: "/mensajes/msg-1", Read: true, CreatedAt: now.Add(-48 * time.Hour)},
	}

	return nil
}
