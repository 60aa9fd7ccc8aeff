package aulasdk

import (
	"context"
	"net/http"
)

// ListAnnouncements returns the announcements of a course, or the
// platform-wide ones when courseID is empty.
func (s *Session) ListAnnouncements(ctx context.Context, courseID string) ([]Announcement, error) {
	path := "/anuncios"
	if courseID != "" {
		path = byCourse(path, courseID)
	}

	var out []Announcement
	if err := s.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) CreateAnnouncement(ctx context.Context, req AnnouncementRequest) (*Announcement, error) {
	var a Announcement
	if err := s.sendJSON(ctx, http.MethodPost, "/anuncios", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Session) UpdateAnnouncement(ctx context.Context, id string, req AnnouncementRequest) (*Announcement, error) {
	var a Announcement
	if err := s.sendJSON(ctx, http.MethodPut, "/anuncios/"+escape(id), req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Session) DeleteAnnouncement(ctx context.Context, id string) error {
	return s.sendJSON(ctx, http.MethodDelete, "/anuncios/"+escape(id), nil, nil)
}
