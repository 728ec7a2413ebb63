package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"MicroGrid/internal/domain/models"
)

func TestStreamHubDeliversRecords(t *testing.T) {
	hub := NewStreamHub(nil)
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/records"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := hub.Publish(context.Background(), &models.Record{RunTag: "r", Iteration: 7, Frequency: 60.01}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got models.Record
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Iteration != 7 || got.RunTag != "r" {
		t.Fatalf("unexpected record %+v", got)
	}

	hub.mu.RLock()
	for _, cl := range hub.clients {
		hub.limiter.Every(cl.dropKey(), 5*time.Second)
	}
	hub.mu.RUnlock()

	if err := hub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if hub.Clients() != 0 {
		t.Fatalf("clients after close = %d", hub.Clients())
	}
	if hub.limiter.Len() != 0 {
		t.Fatalf("drop throttles left after close = %d", hub.limiter.Len())
	}
}

func TestStreamHubPublishWithoutClients(t *testing.T) {
	hub := NewStreamHub(nil)
	if err := hub.Publish(context.Background(), &models.Record{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := hub.Publish(context.Background(), nil); err != nil {
		t.Fatalf("publish nil: %v", err)
	}
}
