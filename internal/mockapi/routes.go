package mockapi

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/httpx"
	"github.com/aussiebroadwan/aula/pkg/slogx"
)

const (
	admin   = string(aulasdk.RoleAdmin)
	teacher = string(aulasdk.RoleTeacher)
	student = string(aulasdk.RoleStudent)
)

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc, roles ...string) http.Handler {
		mws := []httpx.Middleware{httpx.AuthnMiddleware(b)}
		if len(roles) > 0 {
			mws = append(mws, httpx.RequireRole(roles...))
		}
		return httpx.Chain(h, mws...)
	}

	// Public
	mux.HandleFunc("GET /health", b.handleHealth)
	mux.HandleFunc("POST /usuarios/login", b.handleLogin)
	mux.HandleFunc("POST /usuarios/refresh-token", b.handleRefresh)
	mux.HandleFunc("POST /usuarios/logout", b.handleLogout)

	// Users
	mux.Handle("GET /usuarios/perfil", authed(b.handleProfile))
	mux.Handle("GET /usuarios", authed(b.handleListUsers, admin))

	// Courses
	mux.Handle("GET /cursos", authed(b.handleListCourses))
	mux.Handle("GET /cursos/{id}", authed(b.handleGetCourse))
	mux.Handle("POST /cursos", authed(b.handleCreateCourse, admin, teacher))
	mux.Handle("PUT /cursos/{id}", authed(b.handleUpdateCourse, admin, teacher))
	mux.Handle("DELETE /cursos/{id}", authed(b.handleDeleteCourse, admin))
	mux.Handle("POST /cursos/{id}/estudiantes", authed(b.handleEnroll, admin, teacher))
	mux.Handle("POST /cursos/{id}/materiales", authed(b.handleUploadMaterial, admin, teacher))

	// Classes
	mux.Handle("GET /clases", authed(b.handleListClasses))
	mux.Handle("POST /clases", authed(b.handleCreateClass, admin, teacher))
	mux.Handle("PUT /clases/{id}", authed(b.handleUpdateClass, admin, teacher))
	mux.Handle("DELETE /clases/{id}", authed(b.handleDeleteClass, admin, teacher))

	// Assignments
	mux.Handle("GET /tareas", authed(b.handleListAssignments))
	mux.Handle("GET /tareas/{id}", authed(b.handleGetAssignment))
	mux.Handle("POST /tareas", authed(b.handleCreateAssignment, admin, teacher))
	mux.Handle("PUT /tareas/{id}", authed(b.handleUpdateAssignment, admin, teacher))
	mux.Handle("DELETE /tareas/{id}", authed(b.handleDeleteAssignment, admin, teacher))
	mux.Handle("POST /tareas/{id}/entregas", authed(b.handleSubmitAssignment, student))
	mux.Handle("GET /tareas/{id}/entregas", authed(b.handleListSubmissions, admin, teacher))
	mux.Handle("PUT /entregas/{id}/calificar", authed(b.handleGrade, admin, teacher))

	// Exams
	mux.Handle("GET /examenes", authed(b.handleListExams))
	mux.Handle("GET /examenes/{id}", authed(b.handleGetExam))
	mux.Handle("POST /examenes", authed(b.handleCreateExam, admin, teacher))
	mux.Handle("PUT /examenes/{id}", authed(b.handleUpdateExam, admin, teacher))
	mux.Handle("DELETE /examenes/{id}", authed(b.handleDeleteExam, admin, teacher))
	mux.Handle("POST /examenes/{id}/iniciar", authed(b.handleStartAttempt, student))
	mux.Handle("POST /intentos/{id}/responder", authed(b.handleSubmitAnswers, student))
	mux.Handle("GET /examenes/{id}/resultados", authed(b.handleExamResults, admin, teacher))

	// Messages
	mux.Handle("GET /mensajes", authed(b.handleInbox))
	mux.Handle("GET /mensajes/enviados", authed(b.handleSent))
	mux.Handle("GET /mensajes/{id}", authed(b.handleGetMessage))
	mux.Handle("POST /mensajes", authed(b.handleSendMessage))
	mux.Handle("PUT /mensajes/{id}/leido", authed(b.handleMarkMessageRead))
	mux.Handle("DELETE /mensajes/{id}", authed(b.handleDeleteMessage))

	// Notifications
	mux.Handle("GET /notificaciones", authed(b.handleListNotifications))
	mux.Handle("GET /notificaciones/no-leidas", authed(b.handleUnreadCount))
	mux.Handle("PUT /notificaciones/leidas", authed(b.handleMarkAllNotificationsRead))
	mux.Handle("PUT /notificaciones/{id}/leida", authed(b.handleMarkNotificationRead))
	mux.Handle("DELETE /notificaciones/{id}", authed(b.handleDeleteNotification))

	// Announcements
	mux.Handle("GET /anuncios", authed(b.handleListAnnouncements))
	mux.Handle("POST /anuncios", authed(b.handleCreateAnnouncement, admin, teacher))
	mux.Handle("PUT /anuncios/{id}", authed(b.handleUpdateAnnouncement, admin, teacher))
	mux.Handle("DELETE /anuncios/{id}", authed(b.handleDeleteAnnouncement, admin, teacher))

	// Reports
	mux.Handle("GET /reportes/dashboard", authed(b.handleDashboard))
	mux.Handle("GET /reportes/curso/{id}", authed(b.handleCourseReport, admin, teacher))
	mux.Handle("GET /reportes/estudiante/{id}", authed(b.handleStudentReport))

	// Realtime
	mux.Handle("GET /ws", authed(b.handleWebsocket))

	return httpx.Chain(mux, slogx.HTTPMiddleware(b.logger))
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func notFound(w http.ResponseWriter, what string) {
	httpx.WriteMessage(w, http.StatusNotFound, what+" not found")
}

func (b *Backend) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, aulasdk.HealthResponse{Status: "ok"})
}
