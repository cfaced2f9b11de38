package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/woodfish/muyu/go/internal/hits"
	"github.com/woodfish/muyu/go/internal/tap"
)

// ErrHubStopped is returned when the hub loop is no longer running
var ErrHubStopped = errors.New("relay hub stopped")

// Hub is the broadcast relay. The connection registry and the global tap
// counter are owned by the goroutine running Run; every other goroutine talks
// to it through channels.
type Hub struct {
	// Owned by Run
	conns       map[ConnectionID]*Connection
	totalClicks int64

	upgrader websocket.Upgrader
	config   Config
	sink     hits.Sink

	registerCh   chan *Connection
	unregisterCh chan unregisterRequest
	inboundCh    chan inboundMessage
	statsCh      chan chan Stats
	sinkCh       chan hits.HitBatch
	done         chan struct{}
}

// Stats is a point-in-time view of the registry
type Stats struct {
	TotalConnections int `json:"total_connections"`
}

type inboundMessage struct {
	conn *Connection
	data []byte
}

type unregisterRequest struct {
	conn   *Connection
	reason string
}

// NewHub creates a relay hub. sink may be nil.
func NewHub(config Config, sink hits.Sink) *Hub {
	return &Hub{
		conns: make(map[ConnectionID]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:       config,
		sink:         sink,
		registerCh:   make(chan *Connection),
		unregisterCh: make(chan unregisterRequest, 64),
		inboundCh:    make(chan inboundMessage, config.InboxSize),
		statsCh:      make(chan chan Stats),
		sinkCh:       make(chan hits.HitBatch, config.SinkBufferSize),
		done:         make(chan struct{}),
	}
}

// Run processes registrations, inbound frames and evictions until ctx is done.
// It must be called exactly once.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("relay hub started")

	sinkDone := make(chan struct{})
	go h.drainSink(ctx, sinkDone)

	defer func() {
		for id, conn := range h.conns {
			h.evict(id, conn, "shutdown")
		}
		close(h.done)
		<-sinkDone
		log.Info().Msg("relay hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-h.registerCh:
			h.handleRegister(conn)
		case req := <-h.unregisterCh:
			h.handleUnregister(req)
		case msg := <-h.inboundCh:
			h.handleInbound(msg)
		case reply := <-h.statsCh:
			reply <- Stats{TotalConnections: len(h.conns)}
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a relay websocket connection
func (h *Hub) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID uuid.UUID, roomID uuid.NullUUID) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	conn := newConnection(h, ws, userID, roomID)

	select {
	case h.registerCh <- conn:
	case <-h.done:
		ws.Close()
		return ErrHubStopped
	}

	go conn.writePump()
	go conn.readPump()
	return nil
}

// Stats asks the hub loop for a registry snapshot
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.statsCh <- reply:
	case <-h.done:
		return Stats{}, ErrHubStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	return <-reply, nil
}

// submit hands an inbound frame to the hub loop
func (h *Hub) submit(conn *Connection, data []byte) bool {
	select {
	case h.inboundCh <- inboundMessage{conn: conn, data: data}:
		return true
	case <-h.done:
		return false
	}
}

// unregister asks the hub loop to drop a connection
func (h *Hub) unregister(conn *Connection, reason string) {
	select {
	case h.unregisterCh <- unregisterRequest{conn: conn, reason: reason}:
	case <-h.done:
	}
}

func (h *Hub) handleRegister(conn *Connection) {
	h.conns[conn.ID] = conn
	connectionsGauge.Set(float64(len(h.conns)))

	init, err := tap.Encode(tap.NewInit(h.totalClicks))
	if err != nil {
		log.Error().Err(err).Msg("failed to encode init message")
		return
	}
	if !conn.enqueue(init) {
		h.evict(conn.ID, conn, "init_failed")
		return
	}

	log.Info().
		Str("connection_id", string(conn.ID)).
		Str("user_id", conn.UserID.String()).
		Int64("total_clicks", h.totalClicks).
		Int("total_connections", len(h.conns)).
		Msg("client connected")
}

func (h *Hub) handleUnregister(req unregisterRequest) {
	current, ok := h.conns[req.conn.ID]
	if !ok || current != req.conn {
		return
	}
	h.evict(req.conn.ID, req.conn, req.reason)
}

// evict removes a connection from the registry and closes its send queue,
// which makes its write pump close the socket
func (h *Hub) evict(id ConnectionID, conn *Connection, reason string) {
	delete(h.conns, id)
	conn.closeSend()
	connectionsGauge.Set(float64(len(h.conns)))
	evictionsCounter.WithLabelValues(reason).Inc()

	log.Info().
		Str("connection_id", string(id)).
		Str("reason", reason).
		Int("total_connections", len(h.conns)).
		Msg("client disconnected")
}

func (h *Hub) handleInbound(msg inboundMessage) {
	decoded, err := tap.Decode(msg.data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, tap.ErrUnknownType) {
			reason = "unknown_type"
		}
		rejectedMessagesCounter.WithLabelValues(reason).Inc()
		log.Warn().
			Err(err).
			Str("connection_id", string(msg.conn.ID)).
			Msg("discarding inbound message")
		return
	}

	batch, ok := decoded.(tap.Batch)
	if !ok {
		rejectedMessagesCounter.WithLabelValues("unexpected_type").Inc()
		log.Debug().
			Str("connection_id", string(msg.conn.ID)).
			Str("type", string(decoded.MessageType())).
			Msg("ignoring client message")
		return
	}

	h.totalClicks += int64(batch.Len())
	clicksReceivedCounter.Add(float64(batch.Len()))
	batchesReceivedCounter.Inc()

	sent := h.broadcast(msg.conn.ID, msg.data)

	log.Debug().
		Str("connection_id", string(msg.conn.ID)).
		Int("clicks", batch.Len()).
		Int64("total_clicks", h.totalClicks).
		Int("receivers", sent).
		Msg("batch broadcasted")

	h.forwardToSink(msg.conn, batch)
}

// broadcast queues the frame verbatim on every connection except the sender.
// A connection whose queue is full is evicted; the others are unaffected.
func (h *Hub) broadcast(sender ConnectionID, data []byte) int {
	sent := 0
	for id, conn := range h.conns {
		if id == sender {
			continue
		}
		if !conn.enqueue(data) {
			log.Warn().
				Str("connection_id", string(id)).
				Msg("connection send buffer full, evicting")
			h.evict(id, conn, "send_buffer_full")
			continue
		}
		sent++
	}
	broadcastSendsCounter.Add(float64(sent))
	return sent
}

func (h *Hub) forwardToSink(conn *Connection, batch tap.Batch) {
	if h.sink == nil || batch.Len() == 0 {
		return
	}

	select {
	case h.sinkCh <- hits.HitBatch{
		ConnectionID: string(conn.ID),
		UserID:       conn.UserID,
		RoomID:       conn.RoomID,
		Clicks:       batch.Clicks,
		ReceivedAt:   time.Now().UTC(),
	}:
	default:
		sinkDroppedCounter.Inc()
		log.Warn().Str("connection_id", string(conn.ID)).Msg("hit sink queue full, dropping batch")
	}
}

// drainSink publishes accepted batches off the hub loop
func (h *Hub) drainSink(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	if h.sink == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-h.sinkCh:
			if err := h.sink.Publish(ctx, batch); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", batch.ConnectionID).
					Msg("failed to publish hit batch")
			}
		}
	}
}
