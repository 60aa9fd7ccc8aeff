package aulasdk

import (
	"context"
	"io"
	"net/http"
)

// ============================================================================
// Courses
// ============================================================================

// ListCourses returns the courses visible to the signed-in user.
func (s *Session) ListCourses(ctx context.Context) ([]Course, error) {
	var courses []Course
	if err := s.getJSON(ctx, "/cursos", &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (s *Session) GetCourse(ctx context.Context, id string) (*Course, error) {
	var c Course
	if err := s.getJSON(ctx, "/cursos/"+escape(id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Session) CreateCourse(ctx context.Context, req CourseRequest) (*Course, error) {
	var c Course
	if err := s.sendJSON(ctx, http.MethodPost, "/cursos", req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Session) UpdateCourse(ctx context.Context, id string, req CourseRequest) (*Course, error) {
	var c Course
	if err := s.sendJSON(ctx, http.MethodPut, "/cursos/"+escape(id), req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Session) DeleteCourse(ctx context.Context, id string) error {
	return s.sendJSON(ctx, http.MethodDelete, "/cursos/"+escape(id), nil, nil)
}

// EnrollStudent adds a student to a course.
func (s *Session) EnrollStudent(ctx context.Context, courseID, studentID string) error {
	req := EnrollRequest{StudentID: studentID}
	return s.sendJSON(ctx, http.MethodPost, "/cursos/"+escape(courseID)+"/estudiantes", req, nil)
}

// UploadCourseMaterial uploads a file to a course as multipart form data
// under the "archivo" field. The file is read fully before sending.
func (s *Session) UploadCourseMaterial(ctx context.Context, courseID, title, fileName string, file io.Reader) (*Material, error) {
	body, err := multipartPayload(map[string]string{"title": title}, "archivo", fileName, file)
	if err != nil {
		return nil, err
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/cursos/"+escape(courseID)+"/materiales", body)
	if err != nil {
		return nil, err
	}

	var m Material
	if err := decodeJSON(resp, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ============================================================================
// Classes
// ============================================================================

// ListClasses returns the scheduled classes of a course.
func (s *Session) ListClasses(ctx context.Context, courseID string) ([]Class, error) {
	var classes []Class
	if err := s.getJSON(ctx, byCourse("/clases", courseID), &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

func (s *Session) CreateClass(ctx context.Context, req ClassRequest) (*Class, error) {
	var c Class
	if err := s.sendJSON(ctx, http.MethodPost, "/clases", req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Session) UpdateClass(ctx context.Context, id string, req ClassRequest) (*Class, error) {
	var c Class
	if err := s.sendJSON(ctx, http.MethodPut, "/clases/"+escape(id), req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Session) DeleteClass(ctx context.Context, id string) error {
	return s.sendJSON(ctx, http.MethodDelete, "/clases/"+escape(id), nil, nil)
}
