package aulasdk

import "context"

// DashboardStats returns the role-specific dashboard figures.
func (s *Session) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var d DashboardStats
	if err := s.getJSON(ctx, "/reportes/dashboard", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Session) CourseReport(ctx context.Context, courseID string) (*CourseReport, error) {
	var r CourseReport
	if err := s.getJSON(ctx, "/reportes/curso/"+escape(courseID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Session) StudentReport(ctx context.Context, studentID string) (*StudentReport, error) {
	var r StudentReport
	if err := s.getJSON(ctx, "/reportes/estudiante/"+escape(studentID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
