package realtime

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/usecase"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Actor, error)
}

// Handler upgrades GET /v1/ws after the credential resolves to a known actor. A
// failed handshake gets 401 and nothing is registered.
type Handler struct {
	auth     Authenticator
	registry *Registry
	upgrader websocket.Upgrader
}

func NewHandler(auth Authenticator, registry *Registry, allowedOrigins []string) *Handler {
	origins, allowAll := normalizeOrigins(allowedOrigins)
	return &Handler{
		auth:     auth,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r, origins, allowAll)
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, err := h.auth.Authenticate(r.Context(), credential(r))
	if err != nil {
		if errors.Is(err, usecase.ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		log.Printf("websocket handshake: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed actor=%s: %v", actor.ID, err)
		return
	}

	session := newSession(conn, actor.ID)
	if displaced, ok := h.registry.Register(actor.ID, session, actor.IsAdmin()); ok {
		_ = displaced.Close()
	}
	log.Printf("websocket connected actor=%s conn=%s", actor.ID, session.ID())

	go session.writePump()
	go session.readPump(func() {
		if h.registry.Release(actor.ID, session.ID()) {
			log.Printf("websocket disconnected actor=%s conn=%s", actor.ID, session.ID())
		}
	})
}

func credential(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func normalizeOrigins(origins []string) (map[string]struct{}, bool) {
	out := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("ignoring invalid origin in configuration: %q", origin)
			continue
		}
		out[normalized] = struct{}{}
	}
	return out, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// originAllowed accepts non-browser clients that send no Origin header.
func originAllowed(r *http.Request, origins map[string]struct{}, allowAll bool) bool {
	header := r.Header.Get("Origin")
	if header == "" || allowAll {
		return true
	}
	normalized, ok := normalizeOrigin(header)
	if !ok {
		return false
	}
	if _, exists := origins[normalized]; exists {
		return true
	}
	log.Printf("blocked websocket connection from disallowed origin: %q", header)
	return false
}
