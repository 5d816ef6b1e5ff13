package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerlearn/peerlearn/internal/domain"
)

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?access_token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// readUntil skips frames until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 10; i++ {
		frame := readWS(t, conn)
		if frame["type"] == frameType {
			return frame
		}
	}
	t.Fatalf("no %s frame received", frameType)
	return nil
}

func TestWebSocket_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_ChatSession(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	_, alice := s.newUser(t, "alice")
	bobID, bob := s.newUser(t, "bob")

	_, resp := s.do(t, http.MethodPost, "/api/v1/chats", alice, map[string]string{"user_id": bobID})
	var created domain.CreateChatResponse
	decodeData(t, resp, &created)
	_, _ = s.do(t, http.MethodPost, "/api/v1/chats/"+created.ChatID+"/messages", alice, map[string]string{"content": "earlier"})

	aliceConn := dialWS(t, srv, alice)
	bobConn := dialWS(t, srv, bob)

	// no active chat yet
	require.NoError(t, bobConn.WriteJSON(map[string]string{"type": domain.MsgTypeSendMessage, "content": "hi"}))
	frame := readWS(t, bobConn)
	assert.Equal(t, domain.MsgTypeError, frame["type"])
	assert.Equal(t, domain.ErrCodeNoActiveChat, frame["code"])

	require.NoError(t, bobConn.WriteJSON(map[string]string{"type": domain.MsgTypePing}))
	assert.Equal(t, domain.MsgTypePong, readWS(t, bobConn)["type"])

	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"type":     domain.MsgTypeSwitchChat,
			"chat_id":  created.ChatID,
			"is_group": false,
		}))
		loading := readWS(t, conn)
		assert.Equal(t, domain.MsgTypeLoading, loading["type"])
		assert.Equal(t, true, loading["value"])

		switched := readUntil(t, conn, domain.MsgTypeChatSwitched)
		assert.Equal(t, created.ChatID, switched["chat_id"])
		messages, ok := switched["messages"].([]interface{})
		require.True(t, ok)
		assert.Len(t, messages, 1)
	}

	require.NoError(t, bobConn.WriteJSON(map[string]string{"type": domain.MsgTypeSendMessage, "content": "hey alice"}))

	var messageID string
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		frame := readUntil(t, conn, domain.MsgTypeNewMessage)
		msg, ok := frame["message"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "hey alice", msg["content"])
		assert.Equal(t, bobID, msg["user_id"])
		messageID, _ = msg["id"].(string)
	}
	require.NotEmpty(t, messageID)

	require.NoError(t, aliceConn.WriteJSON(map[string]string{
		"type":       domain.MsgTypeReact,
		"message_id": messageID,
		"emoji":      "❤️",
	}))
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		frame := readUntil(t, conn, domain.MsgTypeMessageReacted)
		reaction, ok := frame["reaction"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, messageID, reaction["message_id"])
		assert.Equal(t, true, reaction["added"])
	}

	// only the author may unsend
	require.NoError(t, aliceConn.WriteJSON(map[string]string{"type": domain.MsgTypeUnsend, "message_id": messageID}))
	frame = readUntil(t, aliceConn, domain.MsgTypeError)
	assert.Equal(t, domain.ErrCodeForbidden, frame["code"])

	require.NoError(t, bobConn.WriteJSON(map[string]string{"type": domain.MsgTypeUnsend, "message_id": messageID}))
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		frame := readUntil(t, conn, domain.MsgTypeMessageUnsent)
		assert.Equal(t, messageID, frame["message_id"])
	}
}

func TestWebSocket_SwitchToForbiddenChat(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	_, alice := s.newUser(t, "alice")
	bobID, _ := s.newUser(t, "bob")
	_, carol := s.newUser(t, "carol")

	_, resp := s.do(t, http.MethodPost, "/api/v1/chats", alice, map[string]string{"user_id": bobID})
	var created domain.CreateChatResponse
	decodeData(t, resp, &created)

	conn := dialWS(t, srv, carol)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    domain.MsgTypeSwitchChat,
		"chat_id": created.ChatID,
	}))

	frame := readUntil(t, conn, domain.MsgTypeError)
	assert.Equal(t, domain.ErrCodeForbidden, frame["code"])
}

func TestWebSocket_BackToBackSwitchesFollowLast(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	_, alice := s.newUser(t, "alice")
	bobID, bob := s.newUser(t, "bob")

	_, resp := s.do(t, http.MethodPost, "/api/v1/chats", alice, map[string]string{"user_id": bobID})
	var chat domain.CreateChatResponse
	decodeData(t, resp, &chat)

	_, resp = s.do(t, http.MethodPost, "/api/v1/groups", alice, map[string]string{"name": "Study"})
	var group domain.Group
	decodeData(t, resp, &group)
	w, _ := s.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/join", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)

	conn := dialWS(t, srv, alice)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": domain.MsgTypeSwitchChat, "chat_id": chat.ChatID}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": domain.MsgTypeSwitchChat, "chat_id": group.ID, "is_group": true}))

	for i := 0; ; i++ {
		require.Less(t, i, 10, "group switch never completed")
		frame := readUntil(t, conn, domain.MsgTypeChatSwitched)
		if frame["chat_id"] == group.ID {
			break
		}
	}

	w, _ = s.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/messages", bob, map[string]string{"content": "live"})
	require.Equal(t, http.StatusCreated, w.Code)

	frame := readUntil(t, conn, domain.MsgTypeNewMessage)
	msg, ok := frame["message"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "live", msg["content"])
	assert.Equal(t, group.ID, msg["chat_id"])
}
