package wsgateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/barforge/sessionengine/internal/config"
	"github.com/barforge/sessionengine/internal/notify"
	"github.com/barforge/sessionengine/pkg/logger"
)

// Hub manages WebSocket connections and broadcasts bar-appended
// notifications from the session coordinator's notify.Bus to every
// subscribed connection.
type Hub struct {
	config   config.WSGatewayConfig
	registry *ConnectionRegistry
	bus      notify.Bus
	consumer string
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	stats    HubStats
}

// HubStats holds statistics about the hub
type HubStats struct {
	ConnectionsTotal  int64
	ConnectionsActive int64
	UpdatesReceived   int64
	UpdatesBroadcast  int64
	UpdatesDropped    int64
	MessagesSent      int64
	MessagesFailed    int64
	LastUpdateTime    time.Time
	mu                sync.RWMutex
}

// NewHub creates a new WebSocket hub backed by bus. consumer names this
// hub instance's subscription within the "ws-gateway" group, so a
// multi-replica deployment behind RedisBus never double-delivers to the
// same logical subscriber.
func NewHub(cfg config.WSGatewayConfig, bus notify.Bus, consumer string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		config:   cfg,
		registry: NewConnectionRegistry(),
		bus:      bus,
		consumer: consumer,
		ctx:      ctx,
		cancel:   cancel,
		stats:    HubStats{},
	}
}

// Start starts the hub (consumes bar updates and broadcasts them)
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	logger.Info("Starting WebSocket hub", logger.String("consumer", h.consumer))

	h.wg.Add(1)
	go h.consumeUpdates()

	h.wg.Add(1)
	go h.monitorConnections()

	return nil
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	logger.Info("Stopping WebSocket hub")
	h.cancel()
	h.wg.Wait()
	logger.Info("WebSocket hub stopped")
}

// Register registers a new connection
func (h *Hub) Register(conn *Connection) {
	h.registry.Add(conn)
	h.incrementConnectionsTotal()
	h.incrementConnectionsActive()

	logger.Info("Connection registered",
		logger.String("connection_id", conn.ID),
		logger.String("user_id", conn.UserID),
		logger.Int("total_connections", h.registry.Count()),
	)

	h.wg.Add(2)
	go h.writePump(conn)
	go h.readPump(conn)
}

// Unregister unregisters a connection
func (h *Hub) Unregister(conn *Connection) {
	h.registry.Remove(conn.ID)
	h.decrementConnectionsActive()
	conn.Close()

	logger.Info("Connection unregistered",
		logger.String("connection_id", conn.ID),
		logger.String("user_id", conn.UserID),
		logger.Int("total_connections", h.registry.Count()),
	)
}

// consumeUpdates subscribes to the notify.Bus and broadcasts every
// bar-appended event to connections subscribed to that symbol or with no
// subscriptions.
func (h *Hub) consumeUpdates() {
	defer h.wg.Done()

	ch, err := h.bus.SubscribeBarAppended(h.ctx, "ws-gateway", h.consumer)
	if err != nil {
		logger.Error("Failed to subscribe to bar-appended events", logger.ErrorField(err))
		return
	}

	for {
		select {
		case <-h.ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			h.incrementUpdatesReceived()
			h.broadcastUpdate(evt)
		}
	}
}

// broadcastUpdate pushes evt to every connection subscribed to its symbol or
// with no subscriptions.
func (h *Hub) broadcastUpdate(evt notify.BarAppendedEvent) {
	connections := h.registry.GetAll()
	sent := 0
	dropped := 0

	for _, conn := range connections {
		if conn.ShouldReceiveUpdate(evt.Symbol) {
			if err := conn.SendBarUpdate(evt); err != nil {
				dropped++
				logger.Debug("Failed to send update to connection",
					logger.ErrorField(err),
					logger.String("connection_id", conn.ID),
				)
			} else {
				sent++
				h.incrementMessagesSent()
			}
		}
	}

	h.incrementUpdatesBroadcast()
	if dropped > 0 {
		h.incrementUpdatesDropped(int64(dropped))
	}

	logger.Debug("Broadcast update",
		logger.String("symbol", evt.Symbol),
		logger.String("interval", evt.Interval.String()),
		logger.Int("sent", sent),
		logger.Int("dropped", dropped),
		logger.Int("total_connections", len(connections)),
	)
}

// writePump pumps messages from the hub to the WebSocket connection
func (h *Hub) writePump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := conn.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(conn.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-conn.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (h *Hub) readPump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.UpdateLastPong()
		conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket error",
					logger.ErrorField(err),
					logger.String("connection_id", conn.ID),
				)
			}
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			conn.SendError("invalid_message", "failed to parse message")
			continue
		}

		if err := conn.HandleClientMessage(&clientMsg); err != nil {
			logger.Debug("Failed to handle client message",
				logger.ErrorField(err),
				logger.String("connection_id", conn.ID),
			)
		}
	}
}

// monitorConnections monitors connection health and removes stale connections
func (h *Hub) monitorConnections() {
	defer h.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case <-ticker.C:
			connections := h.registry.GetAll()
			now := time.Now()
			staleThreshold := h.config.ReadTimeout * 2

			for _, conn := range connections {
				lastPong := conn.GetLastPong()
				if now.Sub(lastPong) > staleThreshold {
					logger.Info("Removing stale connection",
						logger.String("connection_id", conn.ID),
						logger.String("user_id", conn.UserID),
						logger.Duration("idle_time", now.Sub(lastPong)),
					)
					h.Unregister(conn)
				}
			}
		}
	}
}

// GetStats returns hub statistics
func (h *Hub) GetStats() HubStats {
	h.stats.mu.RLock()
	defer h.stats.mu.RUnlock()

	return HubStats{
		ConnectionsTotal:  h.stats.ConnectionsTotal,
		ConnectionsActive: int64(h.registry.Count()),
		UpdatesReceived:   h.stats.UpdatesReceived,
		UpdatesBroadcast:  h.stats.UpdatesBroadcast,
		UpdatesDropped:    h.stats.UpdatesDropped,
		MessagesSent:      h.stats.MessagesSent,
		MessagesFailed:    h.stats.MessagesFailed,
		LastUpdateTime:    h.stats.LastUpdateTime,
	}
}

func (h *Hub) incrementConnectionsTotal() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.ConnectionsTotal++
}

func (h *Hub) incrementConnectionsActive() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.ConnectionsActive++
}

func (h *Hub) decrementConnectionsActive() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	if h.stats.ConnectionsActive > 0 {
		h.stats.ConnectionsActive--
	}
}

func (h *Hub) incrementUpdatesReceived() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.UpdatesReceived++
	h.stats.LastUpdateTime = time.Now()
}

func (h *Hub) incrementUpdatesBroadcast() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.UpdatesBroadcast++
}

func (h *Hub) incrementUpdatesDropped(count int64) {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.UpdatesDropped += count
}

func (h *Hub) incrementMessagesSent() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.MessagesSent++
}

func (h *Hub) incrementMessagesFailed() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.MessagesFailed++
}
