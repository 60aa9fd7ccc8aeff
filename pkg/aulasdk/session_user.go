package aulasdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Profile fetches the signed-in user's profile and refreshes the cached copy.
func (s *Session) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := s.getJSON(ctx, "/usuarios/perfil", &u); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := s.store.SaveProfile(ctx, raw); err != nil {
		return nil, fmt.Errorf("failed to cache profile: %w", err)
	}

	return &u, nil
}

// ListUsers lists users, optionally filtered by role. Admin only.
func (s *Session) ListUsers(ctx context.Context, role Role) ([]User, error) {
	path := "/usuarios"
	if role != "" {
		path += "?" + url.Values{"rol": {string(role)}}.Encode()
	}

	var users []User
	if err := s.getJSON(ctx, path, &users); err != nil {
		return nil, err
	}
	return users, nil
}
