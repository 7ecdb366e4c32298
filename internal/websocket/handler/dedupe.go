// internal/websocket/handler/dedupe.go
package handler

import (
	"context"
	"fmt"

	"dedupe-service/internal/domain/dedupe"
	wstypes "dedupe-service/internal/domain/websocket"
	ws "dedupe-service/internal/websocket"

	"go.uber.org/zap"
)

// Scanner runs a duplicate scan. *dedupe.DedupeService satisfies it.
type Scanner interface {
	FindDuplicates(ctx context.Context) (*dedupe.FindDuplicatesResponse, error)
}

// DedupeHandler answers duplicates:scan requests with the scan result.
type DedupeHandler struct {
	scanner Scanner
	logger  *zap.Logger
}

func NewDedupeHandler(scanner Scanner, logger *zap.Logger) *DedupeHandler {
	return &DedupeHandler{
		scanner: scanner,
		logger:  logger,
	}
}

// SupportedEvents returns events this handler supports
func (h *DedupeHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeDuplicatesScan,
	}
}

func (h *DedupeHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeDuplicatesScan:
		return h.handleScan(ctx, client, msg)
	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

func (h *DedupeHandler) handleScan(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	var req wstypes.ScanRequest
	if err := ws.DecodeData(msg.Data, &req); err != nil {
		client.SendError("invalid_request", "Invalid scan request", err.Error())
		return nil
	}

	resp, err := h.scanner.FindDuplicates(ctx)
	if err != nil {
		h.logger.Error("websocket scan failed", zap.String("operator_id", client.OperatorID()), zap.Error(err))
		client.SendError("scan_failed", "Failed to scan for duplicates", err.Error())
		return nil
	}

	groups := resp.DuplicateGroups
	if req.Limit > 0 && len(groups) > req.Limit {
		groups = groups[:req.Limit]
	}

	reply := wstypes.NewMessage(wstypes.EventTypeDuplicatesFound, dedupe.FindDuplicatesResponse{
		DuplicateGroups: groups,
		Total:           resp.Total,
	})
	reply.Metadata = map[string]interface{}{"request_id": msg.ID}
	client.SendMessage(reply)

	return nil
}
