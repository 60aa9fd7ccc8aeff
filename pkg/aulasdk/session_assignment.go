package aulasdk

import (
	"context"
	"io"
	"net/http"
)

// ListAssignments returns the assignments of a course.
func (s *Session) ListAssignments(ctx context.Context, courseID string) ([]Assignment, error) {
	var out []Assignment
	if err := s.getJSON(ctx, byCourse("/tareas", courseID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) GetAssignment(ctx context.Context, id string) (*Assignment, error) {
	var a Assignment
	if err := s.getJSON(ctx, "/tareas/"+escape(id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Session) CreateAssignment(ctx context.Context, req AssignmentRequest) (*Assignment, error) {
	var a Assignment
	if err := s.sendJSON(ctx, http.MethodPost, "/tareas", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Session) UpdateAssignment(ctx context.Context, id string, req AssignmentRequest) (*Assignment, error) {
	var a Assignment
	if err := s.sendJSON(ctx, http.MethodPut, "/tareas/"+escape(id), req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Session) DeleteAssignment(ctx context.Context, id string) error {
	return s.sendJSON(ctx, http.MethodDelete, "/tareas/"+escape(id), nil, nil)
}

// SubmitAssignment hands in a file, with an optional comment, as multipart
// form data under the "archivo" field.
func (s *Session) SubmitAssignment(ctx context.Context, assignmentID, comment, fileName string, file io.Reader) (*Submission, error) {
	fields := map[string]string{}
	if comment != "" {
		fields["comment"] = comment
	}

	body, err := multipartPayload(fields, "archivo", fileName, file)
	if err != nil {
		return nil, err
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/tareas/"+escape(assignmentID)+"/entregas", body)
	if err != nil {
		return nil, err
	}

	var sub Submission
	if err := decodeJSON(resp, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubmissions returns every submission for an assignment. Teachers only.
func (s *Session) ListSubmissions(ctx context.Context, assignmentID string) ([]Submission, error) {
	var subs []Submission
	if err := s.getJSON(ctx, "/tareas/"+escape(assignmentID)+"/entregas", &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *Session) GradeSubmission(ctx context.Context, submissionID string, req GradeRequest) (*Submission, error) {
	var sub Submission
	if err := s.sendJSON(ctx, http.MethodPut, "/entregas/"+escape(submissionID)+"/calificar", req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
