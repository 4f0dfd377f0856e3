package relay

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/onnwee/chat-relay/registry"
	"github.com/onnwee/chat-relay/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients are served from the same origin in the reference
	// deployment; cross-origin policy is handled by the CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler returns the websocket endpoint. The access token travels as an
// accessToken query parameter and is verified before the upgrade; a missing,
// malformed, or expired token rejects the handshake with 401 and touches no
// registry state.
func Handler(issuer *session.Issuer, reg *registry.Registry, disp *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("accessToken")
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		claims, err := issuer.VerifyAccess(token)
		if err != nil {
			slog.Info("websocket handshake rejected",
				slog.String("remote", r.RemoteAddr), slog.Any("err", err))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		sock, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			slog.Info("websocket upgrade failed",
				slog.String("remote", r.RemoteAddr), slog.Any("err", err))
			return
		}

		slog.Info("user connected",
			slog.Uint64("uid", claims.ID),
			slog.String("remote", r.RemoteAddr),
			slog.String("user_agent", r.UserAgent()))

		c := newConn(claims.ID, sock, reg, disp)
		c.run(r.Context())
	}
}
