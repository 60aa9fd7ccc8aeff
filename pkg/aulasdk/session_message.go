package aulasdk

import (
	"context"
	"net/http"
)

// ListInbox returns received messages, newest first.
func (s *Session) ListInbox(ctx context.Context) ([]Message, error) {
	var msgs []Message
	if err := s.getJSON(ctx, "/mensajes", &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListSent returns messages sent by the signed-in user.
func (s *Session) ListSent(ctx context.Context) ([]Message, error) {
	var msgs []Message
	if err := s.getJSON(ctx, "/mensajes/enviados", &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Session) GetMessage(ctx context.Context, id string) (*Message, error) {
	var m Message
	if err := s.getJSON(ctx, "/mensajes/"+escape(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Session) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	var m Message
	if err := s.sendJSON(ctx, http.MethodPost, "/mensajes", req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Session) MarkMessageRead(ctx context.Context, id string) error {
	return s.sendJSON(ctx, http.MethodPut, "/mensajes/"+escape(id)+"/leido", nil, nil)
}

func (s *Session) DeleteMessage(ctx context.Context, id string) error {
	return s.sendJSON(ctx, http.MethodDelete, "/mensajes/"+escape(id), nil, nil)
}
