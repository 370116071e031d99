package main

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks connected clients and hands departures to the game
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	unregister chan *Client
	game       *Game
	auth       *Auth
	journal    *Journal
	log        *zap.Logger
	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu        sync.Mutex
	ipConns       map[string]int
	totalConns    int
	maxConnsPerIP int
	maxTotalConns int
}

// NewHub creates a new Hub in front of game
func NewHub(game *Game, auth *Auth, journal *Journal, cfg ServerConfig, logger *zap.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		unregister:    make(chan *Client, 64),
		game:          game,
		auth:          auth,
		journal:       journal,
		log:           logger,
		ipConns:       make(map[string]int),
		maxConnsPerIP: cfg.MaxConnsPerIP,
		maxTotalConns: cfg.MaxTotalConns,
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= h.maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= h.maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Register adds the client. It must run before the client's pumps start
// so that its unregister can never be handled first.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

// Run processes unregister events until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.game.Leave(client.id)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Disconnect()
			}
			h.mu.Unlock()
			return
		}
	}
}
