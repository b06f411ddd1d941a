package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
)

// Manager manages a single WebSocket connection to the real-time data feed.
// It tracks wallet subscriptions and restores them after a reconnect.
type Manager struct {
	url             string
	conn            *websocket.Conn
	logger          *zap.Logger
	reconnectMgr    *ReconnectManager
	config          Config
	messageChan     chan *types.StreamMessage
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	wallets         map[string]bool // subscribed proxy wallets, lowercase
	connected       atomic.Bool
	lastPongTime    atomic.Int64
	connectionStart atomic.Int64 // Unix timestamp of connection start
}

// Config holds WebSocket manager configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// New creates a new WebSocket manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	return &Manager{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		messageChan:  make(chan *types.StreamMessage, cfg.MessageBufferSize),
		ctx:          ctx,
		cancel:       cancel,
		wallets:      make(map[string]bool),
	}
}

// Start starts the WebSocket manager.
func (m *Manager) Start() error {
	m.logger.Info("websocket-manager-starting", zap.String("url", m.url))

	// Initial connection
	err := m.connect(m.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	// Start goroutines
	m.wg.Add(3)
	go m.readLoop()
	go m.pingLoop()
	go m.reconnectLoop()

	return nil
}

// connect establishes a WebSocket connection.
func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.DialTimeout,
	}

	m.logger.Info("connecting-to-websocket", zap.String("url", m.url))

	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		m.lastPongTime.Store(time.Now().Unix())
		return nil
	})

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	now := time.Now()
	m.connected.Store(true)
	m.lastPongTime.Store(now.Unix())
	m.connectionStart.Store(now.Unix())
	ActiveConnections.Set(1)

	m.logger.Info("websocket-connected")

	return nil
}

// activitySubscription is the subscribe frame for the activity topic.
type activitySubscription struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Filters string `json:"filters,omitempty"`
}

type subscribeFrame struct {
	Action        string                 `json:"action"`
	Subscriptions []activitySubscription `json:"subscriptions"`
}

// buildSubscribeFrame builds the activity subscription covering the given
// wallets. The feed expects the wallet filter as a JSON-encoded string.
func buildSubscribeFrame(wallets []string) (*subscribeFrame, error) {
	filter, err := json.Marshal(map[string][]string{"proxyWallet": wallets})
	if err != nil {
		return nil, fmt.Errorf("marshal wallet filter: %w", err)
	}

	return &subscribeFrame{
		Action: "subscribe",
		Subscriptions: []activitySubscription{
			{
				Topic:   "activity",
				Type:    "trades",
				Filters: string(filter),
			},
		},
	}, nil
}

// SubscribeWallets subscribes the connection to trade activity of the given
// proxy wallets. Already subscribed wallets are kept; the feed replaces the
// previous filter with the full set.
func (m *Manager) SubscribeWallets(ctx context.Context, wallets []string) error {
	if len(wallets) == 0 {
		return nil
	}

	m.mu.Lock()
	for _, w := range wallets {
		m.wallets[w] = true
	}
	all := make([]string, 0, len(m.wallets))
	for w := range m.wallets {
		all = append(all, w)
	}
	conn := m.conn
	m.mu.Unlock()

	frame, err := buildSubscribeFrame(all)
	if err != nil {
		return err
	}

	err = conn.WriteJSON(frame)
	if err != nil {
		return fmt.Errorf("write subscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(len(all)))

	m.logger.Info("subscribed-to-wallet-activity", zap.Int("wallet-count", len(all)))

	return nil
}

// ReplaceWallets swaps the subscribed wallet set, used when the donor
// roster is reloaded.
func (m *Manager) ReplaceWallets(ctx context.Context, wallets []string) error {
	m.mu.Lock()
	m.wallets = make(map[string]bool, len(wallets))
	for _, w := range wallets {
		m.wallets[w] = true
	}
	conn := m.conn
	m.mu.Unlock()

	frame, err := buildSubscribeFrame(wallets)
	if err != nil {
		return err
	}

	err = conn.WriteJSON(frame)
	if err != nil {
		return fmt.Errorf("write subscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(len(wallets)))

	m.logger.Info("wallet-subscriptions-replaced", zap.Int("wallet-count", len(wallets)))

	return nil
}

// readLoop reads messages from the WebSocket.
func (m *Manager) readLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			m.logger.Warn("read-error", zap.Error(err))

			// Observe connection duration before marking as disconnected
			startTime := m.connectionStart.Load()
			if startTime > 0 {
				duration := time.Since(time.Unix(startTime, 0)).Seconds()
				ConnectionDuration.Observe(duration)
			}

			m.connected.Store(false)
			ActiveConnections.Set(0)
			return
		}

		// Heartbeats and acks arrive as short non-envelope frames
		if len(message) < 10 {
			m.logger.Debug("websocket-heartbeat-received", zap.Int("bytes", len(message)))
			continue
		}

		start := time.Now()

		var msg types.StreamMessage
		err = json.Unmarshal(message, &msg)
		if err != nil || msg.Topic == "" {
			preview := string(message)
			if len(preview) > 100 {
				preview = preview[:100]
			}
			m.logger.Debug("websocket-unparseable-message",
				zap.Int("bytes", len(message)),
				zap.String("preview", preview))
			continue
		}

		MessagesReceivedTotal.WithLabelValues(msg.Topic).Inc()

		// Send to channel (non-blocking)
		select {
		case m.messageChan <- &msg:
		default:
			m.logger.Warn("message-channel-full", zap.String("topic", msg.Topic))
			MessagesDroppedTotal.WithLabelValues("channel_full").Inc()
		}

		MessageLatencySeconds.Observe(time.Since(start).Seconds())
	}
}

// pingLoop sends periodic PING messages.
func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}

			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()

			if conn == nil {
				continue
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				m.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop handles reconnection when connection drops.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		// Wait for disconnection
		if m.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		m.logger.Warn("connection-lost-initiating-reconnect")

		err := m.reconnectMgr.Reconnect(m.ctx, m.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			m.logger.Error("reconnection-failed", zap.Error(err))
			continue
		}

		// Restore the wallet filter
		err = m.resubscribeAll(m.ctx)
		if err != nil {
			m.logger.Error("resubscribe-failed", zap.Error(err))
			m.connected.Store(false)
			continue
		}

		m.logger.Info("reconnection-complete-restarting-read-loop")

		m.wg.Add(1)
		go m.readLoop()
	}
}

// resubscribeAll restores the activity subscription for all tracked wallets.
func (m *Manager) resubscribeAll(ctx context.Context) error {
	m.mu.RLock()
	wallets := make([]string, 0, len(m.wallets))
	for w := range m.wallets {
		wallets = append(wallets, w)
	}
	conn := m.conn
	m.mu.RUnlock()

	if len(wallets) == 0 {
		return nil
	}

	frame, err := buildSubscribeFrame(wallets)
	if err != nil {
		return err
	}

	err = conn.WriteJSON(frame)
	if err != nil {
		return fmt.Errorf("write resubscribe message: %w", err)
	}

	m.logger.Info("resubscribed-to-wallet-activity", zap.Int("wallet-count", len(wallets)))

	return nil
}

// MessageChan returns the channel for receiving stream messages.
func (m *Manager) MessageChan() <-chan *types.StreamMessage {
	return m.messageChan
}

// Close gracefully closes the WebSocket manager.
func (m *Manager) Close() error {
	m.logger.Info("closing-websocket-manager")

	m.cancel()

	m.mu.RLock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.RUnlock()

	m.wg.Wait()

	close(m.messageChan)

	ActiveConnections.Set(0)

	m.logger.Info("websocket-manager-closed")

	return nil
}
