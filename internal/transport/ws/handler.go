package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/agrimarket/negotiation-api/internal/domain"
	jwtinfra "github.com/agrimarket/negotiation-api/internal/infrastructure/jwt"
	"github.com/agrimarket/negotiation-api/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the HTTP CORS layer; the socket
	// endpoint admits any origin that presents a valid credential.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMessage is the protocol clients speak after the handshake.
type clientMessage struct {
	Action        string `json:"action"`
	NegotiationID string `json:"negotiationId,omitempty"`
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// Handler upgrades HTTP requests to websocket connections, authenticates
// them, and drives the join/leave/register message loop against the gateway.
type Handler struct {
	gateway *realtime.Gateway
	jwt     *jwtinfra.Provider
	users   userStore
}

func NewHandler(gateway *realtime.Gateway, jwt *jwtinfra.Provider, users userStore) *Handler {
	return &Handler{gateway: gateway, jwt: jwt, users: users}
}

// Serve is the websocket endpoint. The bearer credential travels in the
// `token` query parameter (browsers cannot set headers on websocket dials)
// or the Authorization header. A bad credential refuses the connection
// with an explicit reason before the upgrade.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	identity, reason := h.authenticate(r)
	if reason != "" {
		http.Error(w, reason, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &wsConn{conn: conn}
	defer h.gateway.Drop(c)

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Action {
		case "joinNegotiation":
			h.gateway.Join(c, msg.NegotiationID)
		case "leaveNegotiation":
			h.gateway.Leave(c, msg.NegotiationID)
		case "register":
			// Guests have no personal channel.
			if !identity.Guest() {
				h.gateway.Register(c, identity.UserID)
			}
		}
	}
}

// authenticate resolves the connection's identity for its whole lifetime.
// Returns a non-empty refusal reason on failure.
func (h *Handler) authenticate(r *http.Request) (domain.Identity, string) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token == "" {
		return domain.Identity{}, "missing credential"
	}
	if h.jwt == nil {
		return domain.Identity{}, "authentication unavailable"
	}
	claims, err := h.jwt.Verify(token)
	if err != nil {
		return domain.Identity{}, "invalid or expired token"
	}
	if claims.Role == domain.RoleGuest {
		return domain.GuestIdentity(claims.UserID), ""
	}
	u, err := h.users.Get(r.Context(), claims.UserID)
	if err != nil {
		return domain.Identity{}, "unknown user"
	}
	return domain.AuthenticatedIdentity(u), ""
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error { return c.conn.Close() }
