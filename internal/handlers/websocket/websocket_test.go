package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dedupe-service/internal/domain/customer"
	"dedupe-service/internal/domain/dedupe"
	wstypes "dedupe-service/internal/domain/websocket"
	xerrors "dedupe-service/internal/pkg/errors"
	"dedupe-service/internal/pkg/jwt"
	"dedupe-service/internal/repository/memory"
	dedupesvc "dedupe-service/internal/service/dedupe"
	ws "dedupe-service/internal/websocket"
	wsHandlers "dedupe-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type liveSession struct {
	hub  *ws.Hub
	svc  *dedupesvc.DedupeService
	conn *websocket.Conn
}

func startSession(t *testing.T) *liveSession {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewCustomerRecordRepository()
	require.NoError(t, repo.BulkCreate(context.Background(), []customer.Record{
		{CustomerID: "CU-30001", FirstName: "Juan", LastName: "Perez", Phone: "555-0100"},
		{CustomerID: "CU-30002", FirstName: "Juan", LastName: "Perez", Phone: "(555) 0100"},
	}))

	logger := zap.NewNop()
	hub := ws.NewHub(nil, true, logger)
	svc := dedupesvc.NewDedupeService(repo, nil, logger, dedupesvc.Options{})
	svc.SetNotifier(hub)
	require.NoError(t, hub.RegisterHandler(wsHandlers.NewDedupeHandler(svc, logger)))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	conn, _, err := websocket.DefaultDialer.Dial(serve(t, hub, []string{"*"}), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	s := &liveSession{hub: hub, svc: svc, conn: conn}
	assert.Equal(t, wstypes.EventTypeConnected, s.read(t).Type)
	return s
}

// serve exposes the hub on a test server and returns its websocket URL.
func serve(t *testing.T, hub *ws.Hub, origins []string) string {
	t.Helper()
	r := gin.New()
	r.GET("/ws", NewWebSocketHandler(hub, origins, zap.NewNop()).HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func (s *liveSession) send(t *testing.T, eventType wstypes.EventType, data interface{}) {
	t.Helper()
	msg := wstypes.NewMessage(eventType, data)
	require.NoError(t, s.conn.WriteJSON(msg))
}

func (s *liveSession) read(t *testing.T) *wstypes.WSMessage {
	t.Helper()
	require.NoError(t, s.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg wstypes.WSMessage
	require.NoError(t, s.conn.ReadJSON(&msg))
	return &msg
}

func TestSubscribeAndReceiveMergeEvent(t *testing.T) {
	s := startSession(t)

	s.send(t, wstypes.EventTypeSubscribe, wstypes.SubscribeRequest{Channels: []wstypes.ChannelType{wstypes.ChannelMerges, "billing"}})
	ack := s.read(t)
	require.Equal(t, wstypes.EventTypeSubscribe, ack.Type)
	assert.Equal(t, []interface{}{"merges"}, ack.Data.(map[string]interface{})["channels"])

	_, err := s.svc.Merge(context.Background(), &dedupe.MergeRequest{PrimaryID: 1, RecordIDs: []int64{2}})
	require.NoError(t, err)

	evt := s.read(t)
	require.Equal(t, wstypes.EventTypeMergeCompleted, evt.Type)
	data := evt.Data.(map[string]interface{})
	assert.Equal(t, "CU-30001", data["customer_id"])
	assert.Equal(t, []interface{}{"CU-30002"}, data["absorbed_ids"])
}

func TestScanRequestRepliesWithGroups(t *testing.T) {
	s := startSession(t)

	s.send(t, wstypes.EventTypeDuplicatesScan, wstypes.ScanRequest{})
	reply := s.read(t)
	require.Equal(t, wstypes.EventTypeDuplicatesFound, reply.Type)

	data := reply.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
	groups := data["duplicate_groups"].([]interface{})
	require.Len(t, groups, 1)
	assert.Equal(t, "phone_exact", groups[0].(map[string]interface{})["match_reason"])
}

func TestPingAndUnknownEvent(t *testing.T) {
	s := startSession(t)

	s.send(t, wstypes.EventTypePing, nil)
	assert.Equal(t, wstypes.EventTypePong, s.read(t).Type)

	s.send(t, "billing:refund", nil)
	assert.Equal(t, wstypes.EventTypeError, s.read(t).Type)
}

func TestUnsubscribedClientGetsNoEvents(t *testing.T) {
	s := startSession(t)

	s.hub.BroadcastSystemAlert(&wstypes.SystemAlertData{Severity: "info", Title: "t", Message: "m"})

	// The ping reply is the next message; the alert was never delivered.
	s.send(t, wstypes.EventTypePing, nil)
	assert.Equal(t, wstypes.EventTypePong, s.read(t).Type)
}

func TestHubStatsCountSubscribers(t *testing.T) {
	s := startSession(t)

	s.send(t, wstypes.EventTypeSubscribe, wstypes.SubscribeRequest{Channels: []wstypes.ChannelType{wstypes.ChannelSystem}})
	require.Equal(t, wstypes.EventTypeSubscribe, s.read(t).Type)

	st := s.hub.Stats()
	assert.Equal(t, 1, st.Connections)
	assert.Equal(t, 1, st.Operators)
	assert.Equal(t, 1, st.Subscribers[wstypes.ChannelSystem])
	assert.Zero(t, st.Subscribers[wstypes.ChannelMerges])
}

type stubValidator struct{}

func (stubValidator) ValidateToken(_ context.Context, token string) (*jwt.Claims, error) {
	if token != "good" {
		return nil, fmt.Errorf("%w: token is malformed", xerrors.ErrUnauthorized)
	}
	claims := &jwt.Claims{OperatorID: "op-1", Roles: []string{jwt.RoleOperator}}
	claims.ID = "jti-1"
	return claims, nil
}

type failingValidator struct{}

func (failingValidator) ValidateToken(context.Context, string) (*jwt.Claims, error) {
	return nil, errors.New("failed to check blacklist: connection refused")
}

func TestConnectionRequiresValidToken(t *testing.T) {
	hub := ws.NewHub(stubValidator{}, false, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	url := serve(t, hub, []string{"*"})

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=forged", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=good", nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello wstypes.WSMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "op-1", hello.Data.(map[string]interface{})["operator_id"])

	assert.Zero(t, hub.DropToken("jti-other"))
	assert.Equal(t, 1, hub.DropToken("jti-1"))
	assert.Zero(t, hub.Stats().Connections, "dropped connections leave the hub at once")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "connection is closed once its token is dropped")
	assert.Zero(t, hub.Stats().Connections)
	assert.Zero(t, hub.Stats().Operators)
}

func TestRepeatedTokenDropsLeaveNoClients(t *testing.T) {
	hub := ws.NewHub(stubValidator{}, false, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	url := serve(t, hub, []string{"*"})

	for i := 0; i < 20; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url+"?token=good", nil)
		require.NoError(t, err)
		var hello wstypes.WSMessage
		require.NoError(t, conn.ReadJSON(&hello))

		require.Equal(t, 1, hub.DropToken("jti-1"))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, _, err = conn.ReadMessage()
		require.Error(t, err)
		conn.Close()
	}

	assert.Eventually(t, func() bool {
		return hub.Stats().Connections == 0
	}, time.Second, 10*time.Millisecond)
}

func TestValidatorOutageIsServerError(t *testing.T) {
	hub := ws.NewHub(failingValidator{}, false, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	_, resp, err := websocket.DefaultDialer.Dial(serve(t, hub, []string{"*"})+"?token=good", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestUpgradeRejectsUnknownOrigin(t *testing.T) {
	hub := ws.NewHub(nil, true, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	url := serve(t, hub, []string{"https://ops.example.com"})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
