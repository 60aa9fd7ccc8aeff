package aulasdk

import (
	"context"
	"net/http"
	"strconv"
)

// DefaultNotificationLimit is how many notifications a feed loads up front.
const DefaultNotificationLimit = 20

// RecentNotifications returns up to limit notifications, most recent first.
// A non-positive limit uses DefaultNotificationLimit.
func (s *Session) RecentNotifications(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	var items []Notification
	if err := s.getJSON(ctx, "/notificaciones?limit="+strconv.Itoa(limit), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// UnreadNotificationCount returns the server's unread count.
func (s *Session) UnreadNotificationCount(ctx context.Context) (int, error) {
	var c UnreadCount
	if err := s.getJSON(ctx, "/notificaciones/no-leidas", &c); err != nil {
		return 0, err
	}
	return c.Count, nil
}

func (s *Session) MarkNotificationRead(ctx context.Context, id string) error {
	return s.sendJSON(ctx, http.MethodPut, "/notificaciones/"+escape(id)+"/leida", nil, nil)
}

func (s *Session) MarkAllNotificationsRead(ctx context.Context) error {
	return s.sendJSON(ctx, http.MethodPut, "/notificaciones/leidas", nil, nil)
}

func (s *Session) DeleteNotification(ctx context.Context, id string) error {
	return s.sendJSON(ctx, http.MethodDelete, "/notificaciones/"+escape(id), nil, nil)
}
