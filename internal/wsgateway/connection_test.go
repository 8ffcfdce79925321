package wsgateway

import (
	"testing"
	"time"
)

func TestConnection_SubscribeUnsubscribe(t *testing.T) {
	conn := &Connection{
		ID:            "conn-1",
		UserID:        "user-1",
		Subscriptions: make(map[string]bool),
	}

	// Subscribe to symbol
	conn.Subscribe("AAPL")
	if !conn.IsSubscribed("AAPL") {
		t.Error("Expected connection to be subscribed to AAPL")
	}

	// Unsubscribe
	conn.Unsubscribe("AAPL")
	if conn.IsSubscribed("AAPL") {
		t.Error("Expected connection to be unsubscribed from AAPL")
	}
}

func TestConnection_ShouldReceiveUpdate(t *testing.T) {
	conn := &Connection{
		ID:            "conn-1",
		UserID:        "user-1",
		Subscriptions: make(map[string]bool),
	}

	// MVP: No subscriptions means receive updates for every symbol
	if !conn.ShouldReceiveUpdate("AAPL") {
		t.Error("Expected connection to receive update (no subscriptions = all symbols)")
	}

	// Subscribe to specific symbol
	conn.Subscribe("AAPL")
	if !conn.ShouldReceiveUpdate("AAPL") {
		t.Error("Expected connection to receive update for subscribed symbol")
	}

	// Different symbol should not be received
	if conn.ShouldReceiveUpdate("MSFT") {
		t.Error("Expected connection not to receive update for unsubscribed symbol")
	}
}

func TestConnection_UpdateLastPong(t *testing.T) {
	conn := &Connection{
		ID:            "conn-1",
		UserID:        "user-1",
		Subscriptions: make(map[string]bool),
		lastPong:      time.Now().Add(-1 * time.Hour),
	}

	initialPong := conn.GetLastPong()
	time.Sleep(10 * time.Millisecond)

	conn.UpdateLastPong()
	newPong := conn.GetLastPong()

	if !newPong.After(initialPong) {
		t.Error("Expected last pong time to be updated")
	}
}
