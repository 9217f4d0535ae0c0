package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/miaoge/backend/internal/analysis/emotion"
	"github.com/zhouzirui/miaoge/backend/internal/model/chat"
	"github.com/zhouzirui/miaoge/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/miaoge/backend/internal/service/chat"
	"github.com/zhouzirui/miaoge/backend/internal/service/conversation"
	"github.com/zhouzirui/miaoge/backend/internal/storage"
)

type stubReplier struct{ reply string }

func (s stubReplier) GenerateReply(context.Context, []chat.Message, string) (string, error) {
	return s.reply, nil
}

type frame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

func dial(t *testing.T) (*websocket.Conn, *chatservice.Service) {
	t.Helper()
	p := persona.Default()
	store := chatservice.NewService(storage.NewMemory(), p, nil)
	controller := conversation.NewController(stubReplier{reply: "在呢"}, emotion.NewClassifier(p.EmotionalTraits), p)

	r := chi.NewRouter()
	New(store, controller, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + chat.DefaultSessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, store
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readMessages(t *testing.T, conn *websocket.Conn) MessagesPayload {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, "messages", f.Type)
	var payload MessagesPayload
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	return payload
}

func TestConnectPushesWelcome(t *testing.T) {
	conn, _ := dial(t)

	payload := readMessages(t, conn)
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, persona.Default().WelcomeMessage, payload.Messages[0].Content)
	assert.Equal(t, conversation.Idle, payload.State)
}

func TestSendPushesStatusThenMessages(t *testing.T) {
	conn, store := dial(t)
	readMessages(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "send",
		"data": SendPayload{Content: "你好"},
	}))

	status := readFrame(t, conn)
	assert.Equal(t, "status", status.Type)
	assert.Contains(t, string(status.Data), string(conversation.Sending))

	payload := readMessages(t, conn)
	require.Len(t, payload.Messages, 3)
	assert.True(t, strings.HasSuffix(payload.Messages[2].Content, " 在呢"))
	assert.Equal(t, conversation.Idle, payload.State)

	assert.Equal(t, 3, store.Load(context.Background(), chat.DefaultSessionID).Len())
}

func TestClearPushesClearedMessage(t *testing.T) {
	conn, _ := dial(t)
	readMessages(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "clear"}))

	payload := readMessages(t, conn)
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, persona.Default().ClearedMessage, payload.Messages[0].Content)
}

func TestEmptySendReportsError(t *testing.T) {
	conn, _ := dial(t)
	readMessages(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "send",
		"data": SendPayload{Content: "  "},
	}))

	assert.Equal(t, "status", readFrame(t, conn).Type)
	errFrame := readFrame(t, conn)
	assert.Equal(t, "error", errFrame.Type)
	assert.Contains(t, string(errFrame.Data), conversation.ErrEmptyMessage.Error())

	payload := readMessages(t, conn)
	assert.Len(t, payload.Messages, 1)
}

func TestUnknownTypeReportsError(t *testing.T) {
	conn, _ := dial(t)
	readMessages(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	assert.Equal(t, "error", readFrame(t, conn).Type)
}
