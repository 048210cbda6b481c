// Package realtime serves the authenticated websocket channel over which
// task events are pushed to connected users.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/tasksync/internal/api/middleware"
	"github.com/phrazzld/tasksync/internal/api/shared"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/presence"
	"github.com/phrazzld/tasksync/internal/service/auth"
)

// Binder is the part of presence.Registry the channel handler uses.
type Binder interface {
	Bind(identity uuid.UUID, h presence.Handle) error
	Unbind(h presence.Handle) bool
}

var _ Binder = (*presence.Registry)(nil)

// Config controls channel timing and origin checks.
type Config struct {
	// WriteTimeout bounds every write to a client.
	WriteTimeout time.Duration
	// PongWait is how long the server waits for any client traffic,
	// including pongs, before dropping the channel.
	PongWait time.Duration
	// PingPeriod must be shorter than PongWait.
	PingPeriod      time.Duration
	MaxMessageBytes int64
	// AllowedOrigins lists permitted Origin headers. "*" allows any origin.
	// When empty only same-host origins are accepted.
	AllowedOrigins []string
}

// DefaultConfig returns the default channel settings.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    2 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      54 * time.Second,
		MaxMessageBytes: 4096,
	}
}

// Handler upgrades authenticated requests to websocket channels and binds
// each channel to the caller's identity.
type Handler struct {
	jwtService auth.JWTService
	registry   Binder
	config     Config
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a channel handler.
func NewHandler(jwtService auth.JWTService, registry Binder, config Config, logger *slog.Logger) *Handler {
	if jwtService == nil || registry == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("realtime handler requires a JWT service and a registry")
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.PongWait <= 0 {
		config.PongWait = defaults.PongWait
	}
	if config.PingPeriod <= 0 || config.PingPeriod >= config.PongWait {
		config.PingPeriod = config.PongWait * 9 / 10
	}
	if config.MaxMessageBytes <= 0 {
		config.MaxMessageBytes = defaults.MaxMessageBytes
	}

	h := &Handler{
		jwtService: jwtService,
		registry:   registry,
		config:     config,
		logger:     logger.With(slog.String("component", "realtime")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin.
		return true
	}
	if len(h.config.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// tokenFromRequest reads the Bearer header, falling back to the token
// query parameter for browser clients that cannot set headers on upgrade.
func tokenFromRequest(r *http.Request) (string, error) {
	token, err := middleware.BearerToken(r)
	if err == nil {
		return token, nil
	}
	if q := strings.TrimSpace(r.URL.Query().Get("token")); q != "" {
		return q, nil
	}
	return "", err
}

// ServeHTTP implements http.Handler for GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	token, err := tokenFromRequest(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}
	claims, err := h.jwtService.ValidateToken(r.Context(), token)
	if err != nil {
		status, msg := http.StatusUnauthorized, "Invalid token"
		if errors.Is(err, auth.ErrExpiredToken) {
			msg = "Token expired"
		} else if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrTokenNotYetValid) {
			status, msg = http.StatusInternalServerError, "Authentication error"
		}
		shared.RespondWithError(w, r, status, msg)
		return
	}
	identity := claims.Identity()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn := newConn(ws, h.config.WriteTimeout)
	log = log.With(
		slog.String("user_id", identity.ID.String()),
		slog.String("handle_id", conn.ID()))

	if err := h.registry.Bind(identity.ID, conn); err != nil {
		log.Warn("failed to bind realtime channel", slog.String("error", err.Error()))
		_ = conn.Close()
		return
	}
	log.Info("realtime channel opened", slog.String("role", string(identity.Role)))

	defer func() {
		h.registry.Unbind(conn)
		_ = conn.Close()
		log.Info("realtime channel closed")
	}()

	h.reply(conn, controlFrame{
		Type:     TypeConnected,
		UserID:   identity.ID.String(),
		HandleID: conn.ID(),
	}.marshal(), log)

	stopPing := make(chan struct{})
	defer close(stopPing)
	go h.pingLoop(conn, stopPing, log)

	h.readLoop(conn, identity, log)
}

func (h *Handler) pingLoop(conn *Conn, stop <-chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(h.config.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				log.Debug("ping failed", slog.String("error", err.Error()))
				_ = conn.Close()
				return
			}
		}
	}
}

// readLoop runs until the client disconnects or stops answering pings.
func (h *Handler) readLoop(conn *Conn, identity domain.Identity, log *slog.Logger) {
	ws := conn.ws
	ws.SetReadLimit(h.config.MaxMessageBytes)
	extend := func() error {
		return ws.SetReadDeadline(time.Now().Add(h.config.PongWait))
	}
	_ = extend()
	ws.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("realtime channel read error", slog.String("error", err.Error()))
			}
			return
		}
		_ = extend()
		h.handleMessage(conn, identity, data, log)
	}
}

func (h *Handler) handleMessage(conn *Conn, identity domain.Identity, data []byte, log *slog.Logger) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.reply(conn, errorFrame("malformed message"), log)
		return
	}

	switch msg.Type {
	case TypeRegister:
		// The channel is already bound to the verified identity. A register
		// naming anyone else is rejected and never rebinds.
		claimed, err := uuid.Parse(msg.UserID)
		if err != nil || claimed != identity.ID {
			log.Warn("register does not match authenticated identity",
				slog.String("claimed_user_id", msg.UserID))
			h.reply(conn, errorFrame("register does not match authenticated identity"), log)
			return
		}
		h.reply(conn, controlFrame{Type: TypeRegistered, UserID: identity.ID.String()}.marshal(), log)
	default:
		h.reply(conn, errorFrame("unknown message type"), log)
	}
}

func (h *Handler) reply(conn *Conn, frame []byte, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.WriteTimeout)
	defer cancel()
	if err := conn.Send(ctx, frame); err != nil {
		log.Debug("failed to write control frame", slog.String("error", err.Error()))
	}
}
