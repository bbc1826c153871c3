package botservice

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/voicetyped/botkit/pkg/activity"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsConn serialises writes; gorilla connections allow one writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Stream handles GET /api/v1/stream. Every inbound text frame is one
// activity; every activity the turn produces goes out as its own frame.
// The channel_id, conversation_id and user_id query parameters fill routing
// fields the frames leave empty.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	q := r.URL.Query()
	defaults := activity.Activity{
		ChannelID:    q.Get("channel_id"),
		Conversation: activity.ConversationAccount{ID: q.Get("conversation_id")},
		From:         activity.ChannelAccount{ID: q.Get("user_id")},
	}
	if defaults.ChannelID == "" {
		defaults.ChannelID = "websocket"
	}
	if defaults.Conversation.ID == "" {
		defaults.Conversation.ID = xid.New().String()
	}
	if defaults.From.ID == "" {
		defaults.From.ID = "anonymous"
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go keepAlive(ctx, conn)

	raw.SetReadLimit(maxActivityBytes)
	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		var in activity.Activity
		if err := sonic.Unmarshal(data, &in); err != nil {
			if err := conn.writeJSON(ErrorResponse{Error: "invalid activity: " + err.Error()}); err != nil {
				return
			}
			continue
		}
		fillRouting(&in, defaults)

		out, _, err := h.process(ctx, in)
		if err != nil {
			if err := conn.writeJSON(ErrorResponse{Error: err.Error()}); err != nil {
				return
			}
			continue
		}
		for _, a := range out {
			if err := conn.writeJSON(a); err != nil {
				slog.WarnContext(ctx, "websocket write failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func keepAlive(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

func fillRouting(in *activity.Activity, defaults activity.Activity) {
	if in.Type == "" {
		in.Type = activity.TypeMessage
	}
	if in.ChannelID == "" {
		in.ChannelID = defaults.ChannelID
	}
	if in.Conversation.ID == "" {
		in.Conversation.ID = defaults.Conversation.ID
	}
	if in.From.ID == "" {
		in.From.ID = defaults.From.ID
	}
}
