package mockapi

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/httpx"
)

// maxUpload caps multipart bodies.
const maxUpload = 8 << 20

func sortedByID[T any](m map[string]*T, id func(*T) string, keep func(*T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return id(&out[i]) < id(&out[j]) })
	return out
}

// ============================================================================
// Courses
// ============================================================================

// canSeeCourseLocked: admins see everything, teachers their own courses,
// students the ones they are enrolled in.
func (b *Backend) canSeeCourseLocked(r *http.Request, c *aulasdk.Course) bool {
	switch httpx.RoleFromContext(r.Context()) {
	case admin:
		return true
	case teacher:
		return c.TeacherID == httpx.UserIDFromContext(r.Context())
	default:
		return b.enrollments[c.ID][httpx.UserIDFromContext(r.Context())]
	}
}

func (b *Backend) handleListCourses(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	courses := sortedByID(b.courses,
		func(c *aulasdk.Course) string { return c.ID },
		func(c *aulasdk.Course) bool { return b.canSeeCourseLocked(r, c) },
	)
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, courses)
}

func (b *Backend) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	c, ok := b.courses[r.PathValue("id")]
	visible := ok && b.canSeeCourseLocked(r, c)
	var out aulasdk.Course
	if visible {
		out = *c
	}
	b.mu.Unlock()

	if !visible {
		notFound(w, "course")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.CourseRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Code == "" {
		httpx.WriteMessage(w, http.StatusBadRequest, "name and code are required")
		return
	}

	b.mu.Lock()
	c := &aulasdk.Course{
		ID:          b.nextID("c"),
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		TeacherID:   req.TeacherID,
		CreatedAt:   time.Now().UTC(),
	}
	if c.TeacherID == "" && httpx.RoleFromContext(r.Context()) == teacher {
		c.TeacherID = httpx.UserIDFromContext(r.Context())
	}
	if acc, ok := b.accounts[c.TeacherID]; ok {
		c.TeacherName = acc.user.Name
	}
	b.courses[c.ID] = c
	out := *c
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (b *Backend) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.CourseRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	c, ok := b.courses[r.PathValue("id")]
	var out aulasdk.Course
	if ok {
		c.Name, c.Code, c.Description = req.Name, req.Code, req.Description
		if req.TeacherID != "" {
			c.TeacherID = req.TeacherID
		}
		out = *c
	}
	b.mu.Unlock()

	if !ok {
		notFound(w, "course")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b.mu.Lock()
	_, ok := b.courses[id]
	delete(b.courses, id)
	delete(b.enrollments, id)
	b.mu.Unlock()

	if !ok {
		notFound(w, "course")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.EnrollRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.courses[r.PathValue("id")]
	if !ok {
		notFound(w, "course")
		return
	}
	acc, ok := b.accounts[req.StudentID]
	if !ok || acc.user.Role != aulasdk.RoleStudent {
		httpx.WriteMessage(w, http.StatusBadRequest, "studentId must reference a student")
		return
	}

	if b.enrollments[c.ID] == nil {
		b.enrollments[c.ID] = make(map[string]bool)
	}
	if !b.enrollments[c.ID][req.StudentID] {
		b.enrollments[c.ID][req.StudentID] = true
		c.StudentCount++
	}
	httpx.WriteMessage(w, http.StatusOK, "student enrolled")
}

func (b *Backend) handleUploadMaterial(w http.ResponseWriter, r *http.Request) {
	name, size, mime, ok := readUpload(w, r)
	if !ok {
		return
	}

	b.mu.Lock()
	courseID := r.PathValue("id")
	if _, exists := b.courses[courseID]; !exists {
		b.mu.Unlock()
		notFound(w, "course")
		return
	}
	title := r.FormValue("title")
	if title == "" {
		title = name
	}
	m := aulasdk.Material{
		ID:         b.nextID("m"),
		CourseID:   courseID,
		Title:      title,
		FileURL:    "/uploads/" + courseID + "/" + name,
		MimeType:   mime,
		Size:       size,
		UploadedAt: time.Now().UTC(),
	}
	b.materials = append(b.materials, m)
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusCreated, m)
}

// readUpload parses the "archivo" part and returns its name, size and type.
func readUpload(w http.ResponseWriter, r *http.Request) (string, int64, string, bool) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "expected multipart form data")
		return "", 0, "", false
	}
	f, hdr, err := r.FormFile("archivo")
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "archivo is required")
		return "", 0, "", false
	}
	defer f.Close()

	n, err := io.Copy(io.Discard, f)
	if err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "unreadable upload")
		return "", 0, "", false
	}
	return hdr.Filename, n, hdr.Header.Get("Content-Type"), true
}

// ============================================================================
// Classes
// ============================================================================

func (b *Backend) handleListClasses(w http.ResponseWriter, r *http.Request) {
	courseID := r.URL.Query().Get("curso")

	b.mu.Lock()
	classes := sortedByID(b.classes,
		func(c *aulasdk.Class) string { return c.ID },
		func(c *aulasdk.Class) bool { return courseID == "" || c.CourseID == courseID },
	)
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, classes)
}

func (b *Backend) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.ClassRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	if _, ok := b.courses[req.CourseID]; !ok {
		b.mu.Unlock()
		notFound(w, "course")
		return
	}
	c := &aulasdk.Class{ID: b.nextID("cl")}
	applyClass(c, req)
	b.classes[c.ID] = c
	out := *c
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (b *Backend) handleUpdateClass(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.ClassRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	c, ok := b.classes[r.PathValue("id")]
	var out aulasdk.Class
	if ok {
		applyClass(c, req)
		out = *c
	}
	b.mu.Unlock()

	if !ok {
		notFound(w, "class")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	deleteFrom(b, w, r, b.classes, "class")
}

func applyClass(c *aulasdk.Class, req aulasdk.ClassRequest) {
	c.CourseID = req.CourseID
	c.Title = req.Title
	c.Description = req.Description
	c.StartsAt = req.StartsAt
	c.DurationMinutes = req.DurationMinutes
	c.MeetingURL = req.MeetingURL
}

// deleteFrom removes the {id} entry from m under the backend lock.
func deleteFrom[T any](b *Backend, w http.ResponseWriter, r *http.Request, m map[string]*T, what string) {
	id := r.PathValue("id")

	b.mu.Lock()
	_, ok := m[id]
	delete(m, id)
	b.mu.Unlock()

	if !ok {
		notFound(w, what)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Assignments
// ============================================================================

func (b *Backend) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	courseID := r.URL.Query().Get("curso")

	b.mu.Lock()
	out := sortedByID(b.assignments,
		func(a *aulasdk.Assignment) string { return a.ID },
		func(a *aulasdk.Assignment) bool { return courseID == "" || a.CourseID == courseID },
	)
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	a, ok := b.assignments[r.PathValue("id")]
	var out aulasdk.Assignment
	if ok {
		out = *a
	}
	b.mu.Unlock()

	if !ok {
		notFound(w, "assignment")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.AssignmentRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	if _, ok := b.courses[req.CourseID]; !ok {
		b.mu.Unlock()
		notFound(w, "course")
		return
	}
	a := &aulasdk.Assignment{
		ID:          b.nextID("t"),
		CourseID:    req.CourseID,
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt,
		MaxScore:    req.MaxScore,
	}
	b.assignments[a.ID] = a
	students := b.studentsOfLocked(req.CourseID)
	out := *a
	b.mu.Unlock()

	for _, id := range students {
		b.Notify(id, aulasdk.Notification{
			Title:   "New assignment",
			Message: out.Title,
			Type:    aulasdk.NotificationAssignment,
			Link:    "/tareas/" + out.ID,
		})
	}

	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (b *Backend) handleUpdateAssignment(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.AssignmentRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	a, ok := b.assignments[r.PathValue("id")]
	var out aulasdk.Assignment
	if ok {
		a.Title, a.Description, a.DueAt, a.MaxScore = req.Title, req.Description, req.DueAt, req.MaxScore
		out = *a
	}
	b.mu.Unlock()

	if !ok {
		notFound(w, "assignment")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	deleteFrom(b, w, r, b.assignments, "assignment")
}

func (b *Backend) handleSubmitAssignment(w http.ResponseWriter, r *http.Request) {
	name, _, _, ok := readUpload(w, r)
	if !ok {
		return
	}
	userID := httpx.UserIDFromContext(r.Context())

	b.mu.Lock()
	a, exists := b.assignments[r.PathValue("id")]
	if !exists {
		b.mu.Unlock()
		notFound(w, "assignment")
		return
	}
	sub := &aulasdk.Submission{
		ID:           b.nextID("e"),
		AssignmentID: a.ID,
		StudentID:    userID,
		StudentName:  b.accounts[userID].user.Name,
		FileURL:      fmt.Sprintf("/uploads/%s/%s", a.ID, name),
		Comment:      r.FormValue("comment"),
		SubmittedAt:  time.Now().UTC(),
	}
	b.submissions[sub.ID] = sub
	out := *sub
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (b *Backend) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	assignmentID := r.PathValue("id")

	b.mu.Lock()
	out := sortedByID(b.submissions,
		func(s *aulasdk.Submission) string { return s.ID },
		func(s *aulasdk.Submission) bool { return s.AssignmentID == assignmentID },
	)
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.GradeRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	sub, ok := b.submissions[r.PathValue("id")]
	var out aulasdk.Submission
	if ok {
		score := req.Score
		sub.Score = &score
		sub.Feedback = req.Feedback
		out = *sub
	}
	b.mu.Unlock()

	if !ok {
		notFound(w, "submission")
		return
	}

	b.Notify(out.StudentID, aulasdk.Notification{
		Title:   "Submission graded",
		Message: fmt.Sprintf("Score: %.1f", req.Score),
		Type:    aulasdk.NotificationGrade,
		Link:    "/tareas/" + out.AssignmentID,
	})
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) studentsOfLocked(courseID string) []string {
	ids := make([]string, 0, len(b.enrollments[courseID]))
	for id := range b.enrollments[courseID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ============================================================================
// Exams
// ============================================================================

func (b *Backend) handleListExams(w http.ResponseWriter, r *http.Request) {
	courseID := r.URL.Query().Get("curso")
	hide := httpx.RoleFromContext(r.Context()) == student

	b.mu.Lock()
	exams := sortedByID(b.exams,
		func(e *aulasdk.Exam) string { return e.ID },
		func(e *aulasdk.Exam) bool { return courseID == "" || e.CourseID == courseID },
	)
	b.mu.Unlock()

	for i := range exams {
		exams[i].Questions = questionsFor(exams[i].Questions, hide)
	}
	httpx.WriteJSON(w, http.StatusOK, exams)
}

func (b *Backend) handleGetExam(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	e, ok := b.exams[r.PathValue("id")]
	var out aulasdk.Exam
	if ok {
		out = *e
	}
	b.mu.Unlock()

	if !ok {
		notFound(w, "exam")
		return
	}
	out.Questions = questionsFor(out.Questions, httpx.RoleFromContext(r.Context()) == student)
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.ExamRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	if _, ok := b.courses[req.CourseID]; !ok {
		b.mu.Unlock()
		notFound(w, "course")
		return
	}
	e := &aulasdk.Exam{ID: b.nextID("x")}
	b.applyExamLocked(e, req)
	b.exams[e.ID] = e
	out := *e
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (b *Backend) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.ExamRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	e, ok := b.exams[r.PathValue("id")]
	var out aulasdk.Exam
	if ok {
		b.applyExamLocked(e, req)
		out = *e
	}
	b.mu.Unlock()

	if !ok {
		notFound(w, "exam")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (b *Backend) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	deleteFrom(b, w, r, b.exams, "exam")
}

func (b *Backend) applyExamLocked(e *aulasdk.Exam, req aulasdk.ExamRequest) {
	e.CourseID = req.CourseID
	e.Title = req.Title
	e.Description = req.Description
	e.DurationMinutes = req.DurationMinutes
	e.OpensAt = req.OpensAt
	e.ClosesAt = req.ClosesAt
	e.MaxAttempts = req.MaxAttempts
	e.Questions = make([]aulasdk.Question, len(req.Questions))
	for i, q := range req.Questions {
		if q.ID == "" {
			q.ID = b.nextID("q")
		}
		opts := make([]aulasdk.Option, len(q.Options))
		for j, o := range q.Options {
			if o.ID == "" {
				o.ID = b.nextID("o")
			}
			opts[j] = o
		}
		q.Options = opts
		e.Questions[i] = q
	}
}

// questionsFor strips the correct flags when the caller is a student.
func questionsFor(qs []aulasdk.Question, hide bool) []aulasdk.Question {
	out := make([]aulasdk.Question, len(qs))
	for i, q := range qs {
		opts := make([]aulasdk.Option, len(q.Options))
		for j, o := range q.Options {
			if hide {
				o.Correct = nil
			}
			opts[j] = o
		}
		q.Options = opts
		out[i] = q
	}
	return out
}

func (b *Backend) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	now := time.Now().UTC()

	b.mu.Lock()
	e, ok := b.exams[r.PathValue("id")]
	if !ok {
		b.mu.Unlock()
		notFound(w, "exam")
		return
	}
	if now.Before(e.OpensAt) || (!e.ClosesAt.IsZero() && now.After(e.ClosesAt)) {
		b.mu.Unlock()
		httpx.WriteMessage(w, http.StatusConflict, "exam is not open")
		return
	}
	if e.MaxAttempts > 0 && b.attemptsByLocked(e.ID, userID) >= e.MaxAttempts {
		b.mu.Unlock()
		httpx.WriteMessage(w, http.StatusConflict, "no attempts left")
		return
	}
	a := &aulasdk.Attempt{
		ID:        b.nextID("i"),
		ExamID:    e.ID,
		StartedAt: now,
		ExpiresAt: now.Add(time.Duration(e.DurationMinutes) * time.Minute),
		Questions: questionsFor(e.Questions, true),
	}
	b.attempts[a.ID] = a
	b.attemptOwner[a.ID] = userID
	out := *a
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (b *Backend) attemptsByLocked(examID, userID string) int {
	n := 0
	for id, a := range b.attempts {
		if a.ExamID == examID && b.attemptOwner[id] == userID {
			n++
		}
	}
	return n
}

func (b *Backend) handleSubmitAnswers(w http.ResponseWriter, r *http.Request) {
	var req aulasdk.SubmitAnswersRequest
	if !decode(w, r, &req) {
		return
	}
	userID := httpx.UserIDFromContext(r.Context())

	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.attempts[r.PathValue("id")]
	if !ok || b.attemptOwner[a.ID] != userID {
		notFound(w, "attempt")
		return
	}
	for _, res := range b.results {
		if res.AttemptID == a.ID {
			httpx.WriteMessage(w, http.StatusConflict, "attempt already submitted")
			return
		}
	}
	e, ok := b.exams[a.ExamID]
	if !ok {
		notFound(w, "exam")
		return
	}

	score, total := gradeAnswers(e.Questions, req.Answers)
	res := aulasdk.AttemptResult{
		AttemptID:   a.ID,
		ExamID:      e.ID,
		StudentID:   userID,
		StudentName: b.accounts[userID].user.Name,
		Score:       score,
		MaxScore:    total,
		SubmittedAt: time.Now().UTC(),
	}
	b.results = append(b.results, res)
	httpx.WriteJSON(w, http.StatusOK, res)
}

// gradeAnswers awards full points when the chosen options match the correct
// set exactly. Open questions are left for manual grading.
func gradeAnswers(qs []aulasdk.Question, answers []aulasdk.Answer) (score, total float64) {
	chosen := make(map[string][]string, len(answers))
	for _, a := range answers {
		chosen[a.QuestionID] = a.OptionIDs
	}

	for _, q := range qs {
		total += q.Points
		if q.Type == aulasdk.QuestionOpen {
			continue
		}
		var correct []string
		for _, o := range q.Options {
			if o.Correct != nil && *o.Correct {
				correct = append(correct, o.ID)
			}
		}
		got := append([]string(nil), chosen[q.ID]...)
		sort.Strings(correct)
		sort.Strings(got)
		if len(correct) > 0 && strings.Join(correct, ",") == strings.Join(got, ",") {
			score += q.Points
		}
	}
	return score, total
}

func (b *Backend) handleExamResults(w http.ResponseWriter, r *http.Request) {
	examID := r.PathValue("id")

	b.mu.Lock()
	out := make([]aulasdk.AttemptResult, 0)
	for _, res := range b.results {
		if res.ExamID == examID {
			out = append(out, res)
		}
	}
	b.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, out)
}
