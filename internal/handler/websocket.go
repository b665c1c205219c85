package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/newrelic/go-agent/v3/newrelic"

	"taxi/internal/config"
	"taxi/internal/middleware"
	"taxi/internal/session"
)

// TaxiHandler serves the trip WebSocket at /taxi/.
type TaxiHandler struct {
	trips    session.TripStore
	groups   session.Groups
	nrApp    *newrelic.Application
	cfg      config.HubConfig
	upgrader websocket.Upgrader
}

// NewTaxiHandler creates a new TaxiHandler. nrApp may be nil.
func NewTaxiHandler(trips session.TripStore, groups session.Groups, nrApp *newrelic.Application, cfg config.HubConfig) *TaxiHandler {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}

	return &TaxiHandler{
		trips:  trips,
		groups: groups,
		nrApp:  nrApp,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowed, origin)
			},
		},
	}
}

// Serve handles GET /taxi/
//
// The session is connected before the upgrade so anonymous callers are
// refused with a plain 403 and never see a WebSocket.
func (h *TaxiHandler) Serve(c *gin.Context) {
	identity := middleware.IdentityFrom(c)
	out := session.NewOutbox(uuid.New().String(), h.cfg.SendBuffer)
	sess := session.New(identity, out, h.trips, h.groups)

	if err := sess.Connect(c.Request.Context()); err != nil {
		out.Close()
		if errors.Is(err, session.ErrAuthRejected) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "authentication required"})
			return
		}
		log.Printf("[WS] connect failed: user=%s err=%v", identity.UserID, err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "unable to load trips"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: conn=%s err=%v", sess.ID(), err)
		sess.Disconnect(context.Background())
		out.Close()
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	inbound := make(chan []byte, h.cfg.InboundBuffer)
	router := session.NewRouter(sess, h.nrApp)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.writePump(ctx, cancel, conn, out)
	}()
	go func() {
		defer wg.Done()
		for raw := range inbound {
			if err := router.Dispatch(ctx, raw); err != nil {
				log.Printf("[WS] message failed: conn=%s err=%v", sess.ID(), err)
			}
		}
	}()

	h.readPump(ctx, conn, inbound)

	cancel()
	close(inbound)
	sess.Disconnect(context.Background())
	out.Close()
	wg.Wait()
}

// readPump forwards frames from conn to inbound until the connection fails
// or ctx is cancelled.
func (h *TaxiHandler) readPump(ctx context.Context, conn *websocket.Conn, inbound chan<- []byte) {
	conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] read error: %v", err)
			}
			return
		}

		select {
		case inbound <- raw:
		case <-ctx.Done():
			return
		}
	}
}

// writePump writes queued messages and pings to conn. It owns all writes to
// conn and closes it on exit.
func (h *TaxiHandler) writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out *session.Outbox) {
	ticker := time.NewTicker(h.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		cancel()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-out.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
