// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"dedupe-service/internal/domain/dedupe"
	wstypes "dedupe-service/internal/domain/websocket"
	"dedupe-service/internal/pkg/jwt"

	"go.uber.org/zap"
)

// TokenValidator verifies a token and checks it has not been revoked.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

type Hub struct {
	// Registered clients by operator ID
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *BroadcastMessage

	handlers *handlerRegistry

	// done is closed once Run has stopped.
	done     chan struct{}
	stopOnce sync.Once

	validator    TokenValidator
	authDisabled bool
	logger       *zap.Logger
}

type BroadcastMessage struct {
	OperatorIDs []string // nil means every subscriber
	Channel     wstypes.ChannelType
	Message     *wstypes.WSMessage
}

func NewHub(validator TokenValidator, authDisabled bool, logger *zap.Logger) *Hub {
	return &Hub{
		clients:      make(map[string]map[*Client]bool),
		Register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan *BroadcastMessage, 256),
		handlers:     newHandlerRegistry(),
		done:         make(chan struct{}),
		validator:    validator,
		authDisabled: authDisabled,
		logger:       logger,
	}
}

// AuthenticateClient validates the JWT token and returns the operator it names.
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (*ClientAuth, error) {
	if h.authDisabled || h.validator == nil {
		return &ClientAuth{OperatorID: "local", Roles: []string{jwt.RoleAdmin}}, nil
	}
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	return &ClientAuth{
		OperatorID: claims.OperatorID,
		TokenID:    claims.ID,
		Roles:      claims.Roles,
	}, nil
}

// RegisterHandler routes the handler's events to it.
func (h *Hub) RegisterHandler(handler MessageHandler) error {
	return h.handlers.register(handler)
}

// HandleClientMessage processes a message from a client using registered handlers.
// It reports whether a registered handler took the message.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlers.lookup(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.operatorID] == nil {
		h.clients[client.operatorID] = make(map[*Client]bool)
	}
	h.clients[client.operatorID][client] = true

	h.logger.Info("websocket client connected",
		zap.String("operator_id", client.operatorID),
		zap.Int("total", h.totalClients()),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"operator_id": client.operatorID,
		"roles":       client.roles,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.operatorID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.operatorID)
			}

			h.logger.Info("websocket client disconnected",
				zap.String("operator_id", client.operatorID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.OperatorIDs == nil {
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
		return
	}

	for _, operatorID := range msg.OperatorIDs {
		for client := range h.clients[operatorID] {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}
}

// publish queues a message for every subscriber of channel. It never blocks
// the caller; when the queue is full the event is dropped.
func (h *Hub) publish(channel wstypes.ChannelType, msg *wstypes.WSMessage) {
	select {
	case h.broadcast <- &BroadcastMessage{Channel: channel, Message: msg}:
	default:
		h.logger.Warn("broadcast queue full, dropping event", zap.String("type", string(msg.Type)))
	}
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// Stats is a snapshot of connected clients.
type Stats struct {
	Connections int                         `json:"total_connections"`
	Operators   int                         `json:"operators"`
	Subscribers map[wstypes.ChannelType]int `json:"subscribers"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := Stats{
		Operators:   len(h.clients),
		Subscribers: map[wstypes.ChannelType]int{},
	}
	for _, clients := range h.clients {
		for client := range clients {
			st.Connections++
			for _, ch := range []wstypes.ChannelType{wstypes.ChannelMerges, wstypes.ChannelSystem} {
				if client.IsSubscribed(ch) {
					st.Subscribers[ch]++
				}
			}
		}
	}
	return st
}

// DropToken removes and closes every connection opened with the token jti
// and reports how many there were.
func (h *Hub) DropToken(jti string) int {
	if jti == "" {
		return 0
	}

	h.mu.Lock()
	var dropped []*Client
	for operatorID, clients := range h.clients {
		for client := range clients {
			if client.tokenID == jti {
				dropped = append(dropped, client)
				delete(clients, client)
			}
		}
		if len(clients) == 0 {
			delete(h.clients, operatorID)
		}
	}
	h.mu.Unlock()

	for _, client := range dropped {
		client.Close()
	}
	if len(dropped) > 0 {
		h.logger.Info("closed connections for revoked token",
			zap.String("jti", jti),
			zap.Int("connections", len(dropped)),
		)
	}
	return len(dropped)
}

// Dedupe notifications

func (h *Hub) NotifyDuplicatesFound(resp *dedupe.FindDuplicatesResponse) {
	byReason := make(map[string]int)
	for _, g := range resp.DuplicateGroups {
		byReason[string(g.MatchReason)]++
	}
	h.publish(wstypes.ChannelMerges, wstypes.NewMessage(wstypes.EventTypeDuplicatesFound, wstypes.DuplicatesFoundData{
		Total:    resp.Total,
		ByReason: byReason,
	}))
}

func (h *Hub) NotifyMergeCompleted(resp *dedupe.MergeResponse) {
	if resp.PrimaryRecord == nil {
		return
	}
	h.publish(wstypes.ChannelMerges, wstypes.NewMessage(wstypes.EventTypeMergeCompleted, wstypes.MergeCompletedData{
		PrimaryID:   resp.PrimaryRecord.ID,
		CustomerID:  resp.PrimaryRecord.CustomerID,
		AbsorbedIDs: resp.AbsorbedIDs,
	}))
}

func (h *Hub) NotifyBatchCompleted(resp *dedupe.BatchMergeResponse) {
	h.publish(wstypes.ChannelMerges, wstypes.NewMessage(wstypes.EventTypeBatchMergeCompleted, wstypes.BatchMergeCompletedData{
		TotalProcessed: resp.TotalProcessed,
		SuccessCount:   resp.SuccessCount,
		FailureCount:   resp.FailureCount,
	}))
}

func (h *Hub) BroadcastSystemAlert(alert *wstypes.SystemAlertData) {
	h.publish(wstypes.ChannelSystem, wstypes.NewMessage(wstypes.EventTypeSystemAlert, alert))
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

// Done is closed once the hub has stopped accepting clients.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
