package aulasdk

import "time"

// ============================================================================
// Users & Authentication
// ============================================================================

// Role is the platform role carried by every user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// User is the cached profile stored under the "usuario" key.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// LoginRequest is the body of POST /usuarios/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries both tokens and the signed-in user's profile.
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"usuario"`
}

// RefreshRequest is the body of POST /usuarios/refresh-token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is the refresh endpoint's reply. RefreshToken is decoded
// when the backend sends one but the session never stores it.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ============================================================================
// Courses & Classes
// ============================================================================

type Course struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	Description  string    `json:"description,omitempty"`
	TeacherID    string    `json:"teacherId,omitempty"`
	TeacherName  string    `json:"teacherName,omitempty"`
	StudentCount int       `json:"studentCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CourseRequest creates or updates a course.
type CourseRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Code        string `json:"code" validate:"required,max=20"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	TeacherID   string `json:"teacherId,omitempty"`
}

// EnrollRequest adds a student to a course.
type EnrollRequest struct {
	StudentID string `json:"studentId" validate:"required"`
}

// Material is a file attached to a course.
type Material struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"courseId"`
	Title      string    `json:"title"`
	FileURL    string    `json:"fileUrl"`
	MimeType   string    `json:"mimeType,omitempty"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Class is a scheduled live session of a course.
type Class struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"courseId"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	StartsAt        time.Time `json:"startsAt"`
	DurationMinutes int       `json:"durationMinutes"`
	MeetingURL      string    `json:"meetingUrl,omitempty"`
}

type ClassRequest struct {
	CourseID        string    `json:"courseId" validate:"required"`
	Title           string    `json:"title" validate:"required,max=200"`
	Description     string    `json:"description,omitempty"`
	StartsAt        time.Time `json:"startsAt" validate:"required"`
	DurationMinutes int       `json:"durationMinutes" validate:"required,min=1,max=600"`
	MeetingURL      string    `json:"meetingUrl,omitempty" validate:"omitempty,url"`
}

// ============================================================================
// Assignments
// ============================================================================

type Assignment struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"courseId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueAt       time.Time `json:"dueAt"`
	MaxScore    float64   `json:"maxScore"`
}

type AssignmentRequest struct {
	CourseID    string    `json:"courseId" validate:"required"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description,omitempty"`
	DueAt       time.Time `json:"dueAt" validate:"required"`
	MaxScore    float64   `json:"maxScore" validate:"gte=0"`
}

// Submission is a student's hand-in for an assignment. Score is nil until
// the submission is graded.
type Submission struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignmentId"`
	StudentID    string    `json:"studentId"`
	StudentName  string    `json:"studentName,omitempty"`
	FileURL      string    `json:"fileUrl,omitempty"`
	Comment      string    `json:"comment,omitempty"`
	SubmittedAt  time.Time `json:"submittedAt"`
	Score        *float64  `json:"score,omitempty"`
	Feedback     string    `json:"feedback,omitempty"`
}

type GradeRequest struct {
	Score    float64 `json:"score" validate:"gte=0"`
	Feedback string  `json:"feedback,omitempty" validate:"max=2000"`
}

// ============================================================================
// Exams
// ============================================================================

type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionOpen     QuestionType = "open"
)

type Option struct {
	ID      string `json:"id,omitempty"`
	Text    string `json:"text" validate:"required"`
	Correct *bool  `json:"correct,omitempty"`
}

type Question struct {
	ID      string       `json:"id,omitempty"`
	Prompt  string       `json:"prompt" validate:"required"`
	Type    QuestionType `json:"type" validate:"required,oneof=single multiple open"`
	Options []Option     `json:"options,omitempty" validate:"dive"`
	Points  float64      `json:"points" validate:"gte=0"`
}

type Exam struct {
	ID              string     `json:"id"`
	CourseID        string     `json:"courseId"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	OpensAt         time.Time  `json:"opensAt"`
	ClosesAt        time.Time  `json:"closesAt"`
	MaxAttempts     int        `json:"maxAttempts"`
	Questions       []Question `json:"questions,omitempty"`
}

type ExamRequest struct {
	CourseID        string     `json:"courseId" validate:"required"`
	Title           string     `json:"title" validate:"required,max=200"`
	Description     string     `json:"description,omitempty"`
	DurationMinutes int        `json:"durationMinutes" validate:"required,min=1"`
	OpensAt         time.Time  `json:"opensAt" validate:"required"`
	ClosesAt        time.Time  `json:"closesAt" validate:"required,gtefield=OpensAt"`
	MaxAttempts     int        `json:"maxAttempts" validate:"gte=0"`
	Questions       []Question `json:"questions" validate:"required,min=1,dive"`
}

// Attempt is an open exam attempt. Questions never carry the correct flag.
type Attempt struct {
	ID        string     `json:"id"`
	ExamID    string     `json:"examId"`
	StartedAt time.Time  `json:"startedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Questions []Question `json:"questions"`
}

type Answer struct {
	QuestionID string   `json:"questionId" validate:"required"`
	OptionIDs  []string `json:"optionIds,omitempty"`
	Text       string   `json:"text,omitempty"`
}

type SubmitAnswersRequest struct {
	Answers []Answer `json:"answers" validate:"required,min=1,dive"`
}

type AttemptResult struct {
	AttemptID   string    `json:"attemptId"`
	ExamID      string    `json:"examId"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName,omitempty"`
	Score       float64   `json:"score"`
	MaxScore    float64   `json:"maxScore"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ============================================================================
// Messages
// ============================================================================

type Message struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"senderId"`
	SenderName    string    `json:"senderName,omitempty"`
	RecipientID   string    `json:"recipientId"`
	RecipientName string    `json:"recipientName,omitempty"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	Read          bool      `json:"read"`
	SentAt        time.Time `json:"sentAt"`
}

type SendMessageRequest struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Subject     string `json:"subject" validate:"required,max=200"`
	Body        string `json:"body" validate:"required,max=10000"`
}

// ============================================================================
// Notifications
// ============================================================================

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotificationMessage      NotificationType = "message"
	NotificationAssignment   NotificationType = "assignment"
	NotificationExam         NotificationType = "exam"
	NotificationAnnouncement NotificationType = "announcement"
	NotificationGrade        NotificationType = "grade"
	NotificationSystem       NotificationType = "system"
)

type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"createdAt"`
	Read      bool             `json:"read"`
	Link      string           `json:"link,omitempty"`
	Type      NotificationType `json:"type"`
}

// UnreadCount is the reply of GET /notificaciones/no-leidas.
type UnreadCount struct {
	Count int `json:"count"`
}

// ============================================================================
// Announcements
// ============================================================================

type Announcement struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"courseId,omitempty"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Pinned     bool      `json:"pinned"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AnnouncementRequest creates or updates an announcement. An empty CourseID
// makes it platform-wide.
type AnnouncementRequest struct {
	CourseID string `json:"courseId,omitempty"`
	Title    string `json:"title" validate:"required,max=200"`
	Body     string `json:"body" validate:"required"`
	Pinned   bool   `json:"pinned"`
}

// ============================================================================
// Reports
// ============================================================================

type DashboardStats struct {
	Role               Role    `json:"role"`
	Courses            int     `json:"courses"`
	Students           int     `json:"students"`
	Teachers           int     `json:"teachers"`
	PendingAssignments int     `json:"pendingAssignments"`
	UpcomingExams      int     `json:"upcomingExams"`
	UnreadMessages     int     `json:"unreadMessages"`
	AverageScore       float64 `json:"averageScore"`
}

type AssignmentStat struct {
	AssignmentID string  `json:"assignmentId"`
	Title        string  `json:"title"`
	Submitted    int     `json:"submitted"`
	Graded       int     `json:"graded"`
	AverageScore float64 `json:"averageScore"`
}

type ExamStat struct {
	ExamID       string  `json:"examId"`
	Title        string  `json:"title"`
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"averageScore"`
}

type CourseReport struct {
	CourseID       string           `json:"courseId"`
	CourseName     string           `json:"courseName"`
	Students       int              `json:"students"`
	AverageScore   float64          `json:"averageScore"`
	CompletionRate float64          `json:"completionRate"`
	Assignments    []AssignmentStat `json:"assignments"`
	Exams          []ExamStat       `json:"exams"`
}

type StudentCourseStat struct {
	CourseID          string  `json:"courseId"`
	CourseName        string  `json:"courseName"`
	AverageScore      float64 `json:"averageScore"`
	SubmittedCount    int     `json:"submittedCount"`
	PendingCount      int     `json:"pendingCount"`
	ExamsTaken        int     `json:"examsTaken"`
	AttendancePercent float64 `json:"attendancePercent"`
}

type StudentReport struct {
	StudentID    string              `json:"studentId"`
	StudentName  string              `json:"studentName"`
	AverageScore float64             `json:"averageScore"`
	Courses      []StudentCourseStat `json:"courses"`
}
