package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newStreamServer runs a WebSocket server that records subscribe frames and
// pushes the given raw messages to each client after the first subscription.
func newStreamServer(t *testing.T, pushAfterSubscribe []string) (*httptest.Server, chan subscribeFrame) {
	t.Helper()

	frames := make(chan subscribeFrame, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var frame subscribeFrame
			if json.Unmarshal(raw, &frame) == nil && frame.Action == "subscribe" {
				frames <- frame
				for _, msg := range pushAfterSubscribe {
					if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
						return
					}
				}
				pushAfterSubscribe = nil
			}
		}
	}))

	return srv, frames
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConfig(url string) Config {
	return Config{
		URL:                   url,
		DialTimeout:           time.Second,
		PingInterval:          time.Minute,
		ReconnectInitialDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:     100 * time.Millisecond,
		ReconnectBackoffMult:  2.0,
		MessageBufferSize:     16,
		Logger:                zap.NewNop(),
	}
}

func TestManager_SubscribeSendsWalletFilter(t *testing.T) {
	srv, frames := newStreamServer(t, nil)
	defer srv.Close()

	m := New(testConfig(wsURL(srv)))
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Close()

	wallets := []string{"0xaaa", "0xbbb"}
	if err := m.SubscribeWallets(context.Background(), wallets); err != nil {
		t.Fatalf("SubscribeWallets() error = %v", err)
	}

	select {
	case frame := <-frames:
		if len(frame.Subscriptions) != 1 {
			t.Fatalf("subscriptions = %d, want 1", len(frame.Subscriptions))
		}
		sub := frame.Subscriptions[0]
		if sub.Topic != "activity" || sub.Type != "trades" {
			t.Errorf("subscription = %+v, want activity/trades", sub)
		}

		var filter map[string][]string
		if err := json.Unmarshal([]byte(sub.Filters), &filter); err != nil {
			t.Fatalf("filter is not valid JSON: %v", err)
		}
		if len(filter["proxyWallet"]) != 2 {
			t.Errorf("filter wallets = %v, want 2 entries", filter["proxyWallet"])
		}
	case <-time.After(time.Second):
		t.Fatal("server did not receive a subscribe frame")
	}
}

func TestManager_DeliversActivityMessages(t *testing.T) {
	activity := `{"topic":"activity","type":"trades","payload":{"proxyWallet":"0xaaa","side":"BUY","price":0.42}}`
	srv, _ := newStreamServer(t, []string{activity, `{}`})
	defer srv.Close()

	m := New(testConfig(wsURL(srv)))
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Close()

	if err := m.SubscribeWallets(context.Background(), []string{"0xaaa"}); err != nil {
		t.Fatalf("SubscribeWallets() error = %v", err)
	}

	select {
	case msg := <-m.MessageChan():
		if msg.Topic != "activity" {
			t.Errorf("topic = %q, want %q", msg.Topic, "activity")
		}
		if len(msg.Payload) == 0 {
			t.Error("payload is empty")
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestManager_ReplaceWalletsSwapsFilter(t *testing.T) {
	srv, frames := newStreamServer(t, nil)
	defer srv.Close()

	m := New(testConfig(wsURL(srv)))
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Close()

	if err := m.SubscribeWallets(context.Background(), []string{"0xaaa", "0xbbb"}); err != nil {
		t.Fatalf("SubscribeWallets() error = %v", err)
	}
	<-frames

	if err := m.ReplaceWallets(context.Background(), []string{"0xccc"}); err != nil {
		t.Fatalf("ReplaceWallets() error = %v", err)
	}

	select {
	case frame := <-frames:
		var filter map[string][]string
		if err := json.Unmarshal([]byte(frame.Subscriptions[0].Filters), &filter); err != nil {
			t.Fatalf("filter is not valid JSON: %v", err)
		}
		if len(filter["proxyWallet"]) != 1 || filter["proxyWallet"][0] != "0xccc" {
			t.Errorf("filter wallets = %v, want [0xccc]", filter["proxyWallet"])
		}
	case <-time.After(time.Second):
		t.Fatal("server did not receive the replacement frame")
	}
}

func TestBuildSubscribeFrame(t *testing.T) {
	frame, err := buildSubscribeFrame([]string{"0x1", "0x2"})
	if err != nil {
		t.Fatalf("buildSubscribeFrame() error = %v", err)
	}

	if frame.Action != "subscribe" {
		t.Errorf("action = %q, want subscribe", frame.Action)
	}
	if len(frame.Subscriptions) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(frame.Subscriptions))
	}
	if !strings.Contains(frame.Subscriptions[0].Filters, "proxyWallet") {
		t.Errorf("filters missing proxyWallet: %s", frame.Subscriptions[0].Filters)
	}
}
