package clients

import (
	"context"

	ws "fee-ledger/internal/transport/websocket"
)

// WebSocketClient pushes ledger events to a user's open websocket connections.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

func (c *WebSocketClient) send(username, typ, channel string, data map[string]any) {
	if c.hub == nil {
		return
	}
	c.hub.Broadcast(username, &ws.Message{
		Type:    typ,
		Channel: channel + "#" + username,
		Data:    data,
	})
}

func (c *WebSocketClient) NotifyExportProgress(ctx context.Context, username, exportID string, progress float64, stage string) error {
	data := map[string]any{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}
	c.send(username, "export_progress", "notify_user_of_progress_export", data)
	return nil
}

func (c *WebSocketClient) NotifyExportComplete(ctx context.Context, username, exportID, url, filename string) error {
	c.send(username, "export_complete", "notify_user_when_export_complete", map[string]any{
		"id":       exportID,
		"url":      url,
		"filename": filename,
	})
	return nil
}

func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, username, exportID, errMsg string) error {
	c.send(username, "export_failed", "notify_user_when_export_failed", map[string]any{
		"id":      exportID,
		"message": errMsg,
	})
	return nil
}

// NotifyFeesRecorded tells the submitting user which months were written for a student.
func (c *WebSocketClient) NotifyFeesRecorded(ctx context.Context, username, studentID string, months []string, total int64) error {
	c.send(username, "fees_recorded", "notify_user_when_fees_recorded", map[string]any{
		"student_id": studentID,
		"months":     months,
		"total":      total,
	})
	return nil
}
