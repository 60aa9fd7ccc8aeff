package mockapi

import (
	"net/http"
	"sort"
	"time"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/cryptox"
	"github.com/aussiebroadwan/aula/pkg/httpx"
	"github.com/aussiebroadwan/aula/pkg/slogx"
	"golang.org/x/crypto/bcrypt"
)

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req aulasdk.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	acc, ok := b.byEmail[req.Email]
	b.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		log.Info("login rejected", "email", req.Email)
		httpx.WriteMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to mint refresh token", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	b.mu.Lock()
	access, err := b.signAccessLocked(acc.user)
	if err == nil {
		b.refreshTokens[refresh] = acc.user.ID
	}
	b.mu.Unlock()
	if err != nil {
		log.Error("failed to sign access token", "error", err)
		httpx.WriteMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, aulasdk.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         acc.user,
	})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)

	if d := time.Duration(b.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	var req aulasdk.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	if b.failRefresh.Load() {
		httpx.WriteMessage(w, http.StatusUnauthorized, "refresh token expired")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	userID, ok := b.refreshTokens[req.RefreshToken]
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	acc, ok := b.accounts[userID]
	if !ok {
		httpx.WriteMessage(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	access, err := b.signAccessLocked(acc.user)
	if err != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, aulasdk.RefreshResponse{AccessToken: access})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.logoutCalls.Add(1)

	var req aulasdk.RefreshRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	delete(b.refreshTokens, req.RefreshToken)
	b.mu.Unlock()

	httpx.WriteMessage(w, http.StatusOK, "logged out")
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())

	b.mu.Lock()
	acc, ok := b.accounts[userID]
	b.mu.Unlock()

	if !ok {
		notFound(w, "user")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, acc.user)
}

func (b *Backend) handleListUsers(w http.ResponseWriter, r *http.Request) {
	role := aulasdk.Role(r.URL.Query().Get("rol"))

	b.mu.Lock()
	users := make([]aulasdk.User, 0, len(b.accounts))
	for _, acc := range b.accounts {
		if role == "" || acc.user.Role == role {
			users = append(users, acc.user)
		}
	}
	b.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	httpx.WriteJSON(w, http.StatusOK, users)
}
