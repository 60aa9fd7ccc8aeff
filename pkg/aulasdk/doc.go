/*
Package aulasdk provides a client SDK for the virtual classroom backend.

# SDKClient vs Session

The package is organized around two main types:

  - SDKClient: unauthenticated operations (login, token refresh, health)
  - Session: authenticated operations with transparent token refresh

	client := aulasdk.NewSDKClient("https://aula.example.com/api")
	store := tokenstore.NewMemory()

	session, err := client.Login(ctx, store, aulasdk.LoginRequest{
		Email:    "student@example.com",
		Password: "secret",
	})

	courses, err := session.ListCourses(ctx)

A session persisted by an earlier login is resumed with NewSession:

	session := aulasdk.NewSession(client, store)

# Token Refresh

The session never inspects token expiry. Every request carries whatever
access token the store holds at send time. When the backend answers 401:

  - If no refresh is running, this request starts one and every other
    request that fails in the meantime is queued behind it.
  - When the refresh succeeds the new access token is stored and every
    queued request is replayed with it, in the order it was queued.
  - Each request is replayed at most once. A second 401 is returned to the
    caller as an *APIError.
  - When the refresh fails, or there is no refresh token to send, the store
    is cleared, every queued request fails with a *SessionTerminatedError and
    the OnTerminated hooks run.

Request bodies are buffered before the first send so a replay sends the same
bytes, including multipart uploads.

The refresh call is not cancelled when the request that triggered it is;
it is bounded by SDKClient.RefreshTimeout instead. A queued request whose own
context ends returns ctx.Err() without affecting the others.

# Error Handling

	courses, err := session.ListCourses(ctx)
	switch {
	case errors.Is(err, aulasdk.ErrSessionTerminated):
		// back to the login screen
	case aulasdk.IsForbidden(err):
		// role does not allow this
	}

	var verr *aulasdk.ValidationError
	if errors.As(err, &verr) {
		for field, problem := range verr.Fields {
			fmt.Println(field, problem)
		}
	}

Requests are validated client side before anything is sent. Backend errors
carry the status code and the {"msg": ...} text as returned.

# Thread Safety

SDKClient and Session are safe for concurrent use.
*/
package aulasdk
