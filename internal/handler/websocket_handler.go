package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dafibh/fortuna/fortuna-client/internal/websocket"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades UI connections to the snapshot push channel.
// The route sits behind the session guard, so only a verified session connects.
// A new connection first receives every snapshot the backend already holds.
type WebSocketHandler struct {
	hub      *websocket.Hub
	backend  websocket.Backend
	origins  map[string]struct{}
	upgrader ws.Upgrader
	logger   zerolog.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler. Origins are compared by
// scheme and host, ignoring case. A nil backend disables replay and refresh commands.
func NewWebSocketHandler(hub *websocket.Hub, backend websocket.Backend, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:     hub,
		backend: backend,
		origins: make(map[string]struct{}, len(allowedOrigins)),
		logger:  log.With().Str("component", "ws_handler").Logger(),
	}
	for _, origin := range allowedOrigins {
		if key, ok := originKey(origin); ok {
			h.origins[key] = struct{}{}
		}
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.allowOrigin,
	}
	return h
}

// originKey reduces an origin to scheme://host
func originKey(origin string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

// allowOrigin accepts non-browser clients, the page's own host and the configured origins
func (h *WebSocketHandler) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	key, ok := originKey(origin)
	if ok {
		if _, allowed := h.origins[key]; allowed {
			return true
		}
		if u, _ := url.Parse(key); strings.EqualFold(u.Host, r.Host) {
			return true
		}
	}

	h.logger.Warn().
		Str("origin", origin).
		Msg("Push channel refused: origin not allowed")
	return false
}

// HandleWS handles GET /api/v1/ws
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Warn().Err(err).Msg("Push channel upgrade failed")
		return nil
	}

	client := websocket.NewClient(conn, h.hub, h.backend)
	// register before replaying so no broadcast falls between the two
	h.hub.Register(client)
	replayed := client.ReplaySnapshots()

	h.logger.Info().
		Str("client_id", client.ID()).
		Int("replayed", replayed).
		Msg("Push client connected")

	go client.WritePump()
	go client.ReadPump()

	return nil
}
