// Package server HTTP API handlers.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/chat-relay/config"
	"github.com/onnwee/chat-relay/crypto"
	"github.com/onnwee/chat-relay/session"
	"github.com/onnwee/chat-relay/telemetry"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	cfg    *config.Config
	store  *session.Store
	issuer *session.Issuer
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(cfg *config.Config, store *session.Store, issuer *session.Issuer) *Handlers {
	return &Handlers{cfg: cfg, store: store, issuer: issuer}
}

// HandleLogin verifies the submitted credentials and returns a token pair.
// Every auth failure is a plain 401; the reason stays in the server log.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	pair, err := h.issuer.Login(body.Name, body.Password)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Info("login rejected",
			slog.String("name", body.Name), slog.Any("err", err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// HandleRefresh rotates a valid refresh token into a fresh token pair.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	pair, err := h.issuer.Refresh(body.RefreshToken)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Info("refresh rejected", slog.Any("err", err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// HandleSalt returns the client-side salt for a username. Unknown users get a
// random decoy of the same shape so the response does not reveal whether the
// account exists.
func (h *Handlers) HandleSalt(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("user")
	salt := crypto.DecoySalt()
	if acct, err := h.store.LookupByName(name); err == nil {
		salt = acct.ClientSalt
	} else if !errors.Is(err, session.ErrUserNotFound) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"salt": salt})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", slog.Any("err", err))
	}
}
