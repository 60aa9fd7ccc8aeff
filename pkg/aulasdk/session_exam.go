package aulasdk

import (
	"context"
	"net/http"
)

// ListExams returns the exams of a course.
func (s *Session) ListExams(ctx context.Context, courseID string) ([]Exam, error) {
	var exams []Exam
	if err := s.getJSON(ctx, byCourse("/examenes", courseID), &exams); err != nil {
		return nil, err
	}
	return exams, nil
}

func (s *Session) GetExam(ctx context.Context, id string) (*Exam, error) {
	var e Exam
	if err := s.getJSON(ctx, "/examenes/"+escape(id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Session) CreateExam(ctx context.Context, req ExamRequest) (*Exam, error) {
	var e Exam
	if err := s.sendJSON(ctx, http.MethodPost, "/examenes", req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Session) UpdateExam(ctx context.Context, id string, req ExamRequest) (*Exam, error) {
	var e Exam
	if err := s.sendJSON(ctx, http.MethodPut, "/examenes/"+escape(id), req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Session) DeleteExam(ctx context.Context, id string) error {
	return s.sendJSON(ctx, http.MethodDelete, "/examenes/"+escape(id), nil, nil)
}

// StartAttempt opens a new attempt for the signed-in student.
func (s *Session) StartAttempt(ctx context.Context, examID string) (*Attempt, error) {
	var a Attempt
	if err := s.sendJSON(ctx, http.MethodPost, "/examenes/"+escape(examID)+"/iniciar", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SubmitAnswers closes an attempt and returns its result.
func (s *Session) SubmitAnswers(ctx context.Context, attemptID string, req SubmitAnswersRequest) (*AttemptResult, error) {
	var r AttemptResult
	if err := s.sendJSON(ctx, http.MethodPost, "/intentos/"+escape(attemptID)+"/responder", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListExamResults returns the results of every finished attempt of an exam.
func (s *Session) ListExamResults(ctx context.Context, examID string) ([]AttemptResult, error) {
	var results []AttemptResult
	if err := s.getJSON(ctx, "/examenes/"+escape(examID)+"/resultados", &results); err != nil {
		return nil, err
	}
	return results, nil
}
