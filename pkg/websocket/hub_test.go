package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"geowatch/internal/config"
	"geowatch/pkg/logger"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func allowAll(context.Context, primitive.ObjectID, primitive.ObjectID) (bool, error) {
	return true, nil
}

func newTestServer(t *testing.T, userID primitive.ObjectID, isMember MembershipFunc) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.Discard())
	go hub.Run(ctx)

	handler := NewHandler(hub, &config.WebSocketConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		PingInterval:    time.Minute,
		PongTimeout:     2 * time.Minute,
		AllowedOrigins:  []string{"*"},
	}, isMember)

	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}, handler.HandleWebSocket)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, sessionID primitive.ObjectID) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?session_id=" + sessionID.Hex()
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gorilla.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestHub_BroadcastReachesOnlySessionRoom(t *testing.T) {
	hub, server := newTestServer(t, primitive.NewObjectID(), allowAll)

	watched := primitive.NewObjectID()
	other := primitive.NewObjectID()

	conn := dial(t, server, watched)
	if msg := readMessage(t, conn); msg.Type != "welcome" {
		t.Fatalf("first message = %q, want welcome", msg.Type)
	}
	otherConn := dial(t, server, other)
	readMessage(t, otherConn)

	if err := hub.BroadcastToSession(watched, "geofence_alert", map[string]string{"message": "Alice entered School"}); err != nil {
		t.Fatalf("BroadcastToSession: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != "geofence_alert" || msg.SessionID != watched {
		t.Fatalf("got %+v", msg)
	}
	data, _ := json.Marshal(msg.Data)
	if !strings.Contains(string(data), "Alice entered School") {
		t.Errorf("payload = %s", data)
	}

	otherConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := otherConn.ReadMessage(); err == nil {
		t.Error("client of another session received the broadcast")
	}
}

func TestHandler_RejectsNonParticipant(t *testing.T) {
	member := primitive.NewObjectID()
	stranger := primitive.NewObjectID()
	session := primitive.NewObjectID()

	_, server := newTestServer(t, stranger, func(_ context.Context, sessionID, userID primitive.ObjectID) (bool, error) {
		return sessionID == session && userID == member, nil
	})

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?session_id=" + session.Hex()
	conn, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("non-participant was allowed to subscribe")
	}
	if resp == nil {
		t.Fatalf("dial: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestHandler_MembershipErrorIsServerError(t *testing.T) {
	_, server := newTestServer(t, primitive.NewObjectID(), func(context.Context, primitive.ObjectID, primitive.ObjectID) (bool, error) {
		return false, errors.New("database unavailable")
	})

	resp, err := http.Get(server.URL + "/ws?session_id=" + primitive.NewObjectID().Hex())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestHandler_RejectsInvalidSessionID(t *testing.T) {
	_, server := newTestServer(t, primitive.NewObjectID(), allowAll)

	resp, err := http.Get(server.URL + "/ws?session_id=nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := check(r); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}
}
