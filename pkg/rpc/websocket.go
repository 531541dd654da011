package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/torcnet/powchain/pkg/core"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
	sendBuffer     = 64
)

// Websocket methods.
const (
	MethodSubscribe    = "subscribe"
	MethodUnsubscribe  = "unsubscribe"
	MethodSubscription = "subscription"
)

// RPCError represents an RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// WSRequest is a websocket request.
type WSRequest struct {
	ID     interface{} `json:"id"`
	Method string      `json:"method"`
	Params []string    `json:"params"`
}

// WSResponse answers a WSRequest.
type WSResponse struct {
	ID     interface{} `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *RPCError   `json:"error,omitempty"`
}

// WSNotification delivers a chain event to one subscription.
type WSNotification struct {
	Method string            `json:"method"`
	Params SubscriptionEvent `json:"params"`
}

// SubscriptionEvent pairs an event with the subscription it matched.
type SubscriptionEvent struct {
	Subscription string     `json:"subscription"`
	Result       core.Event `json:"result"`
}

// WebSocketServer streams chain events to subscribed websocket clients.
// Clients send {"method":"subscribe","params":["block_appended"]} and get
// back a subscription id that tags every matching notification.
type WebSocketServer struct {
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[string]*WSConnection

	nextSubID uint64

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	wg        sync.WaitGroup
}

// WSConnection represents a websocket connection.
type WSConnection struct {
	conn *websocket.Conn
	id   string
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]core.EventType

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWebSocketServer creates a websocket server.
func NewWebSocketServer() *WebSocketServer {
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[string]*WSConnection),
		quit:        make(chan struct{}),
	}
}

// Start forwards events from chain to subscribers until Stop.
func (ws *WebSocketServer) Start(chain *core.Blockchain) {
	ws.startOnce.Do(func() {
		events, cancel := chain.Subscribe()

		ws.wg.Add(1)
		go func() {
			defer ws.wg.Done()
			defer cancel()

			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					ws.Broadcast(ev)

				case <-ws.quit:
					return
				}
			}
		}()
	})
}

// Stop ends event forwarding and closes every connection.
func (ws *WebSocketServer) Stop() {
	ws.stopOnce.Do(func() {
		close(ws.quit)
		ws.wg.Wait()

		ws.mu.Lock()
		defer ws.mu.Unlock()
		for _, c := range ws.connections {
			c.cancel()
			c.conn.Close()
		}
	})
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (ws *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &WSConnection{
		conn:          conn,
		id:            uuid.NewString(),
		send:          make(chan []byte, sendBuffer),
		subscriptions: make(map[string]core.EventType),
		ctx:           ctx,
		cancel:        cancel,
	}

	ws.mu.Lock()
	ws.connections[c.id] = c
	ws.mu.Unlock()

	go c.writePump()
	go c.readPump(ws)

	log.Debugf("WebSocket connection %s established from %s", c.id, r.RemoteAddr)
}

// Broadcast delivers ev to every matching subscription. Connections whose
// buffer is full miss the event.
func (ws *WebSocketServer) Broadcast(ev core.Event) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	for _, c := range ws.connections {
		c.mu.RLock()
		for subID, typ := range c.subscriptions {
			if typ != ev.Type {
				continue
			}

			data, err := json.Marshal(WSNotification{
				Method: MethodSubscription,
				Params: SubscriptionEvent{Subscription: subID, Result: ev},
			})
			if err != nil {
				log.Errorf("Unable to encode %s event: %v", ev.Type, err)
				continue
			}

			select {
			case c.send <- data:
			default:
				log.Debugf("Dropping %s event for slow connection %s",
					ev.Type, c.id)
			}
		}
		c.mu.RUnlock()
	}
}

// ActiveConnections returns the number of open connections.
func (ws *WebSocketServer) ActiveConnections() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.connections)
}

func (c *WSConnection) readPump(server *WebSocketServer) {
	defer c.cleanup(server)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {

				log.Debugf("WebSocket %s closed: %v", c.id, err)
			}
			return
		}

		c.handleMessage(server, message)
	}
}

func (c *WSConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSConnection) handleMessage(server *WebSocketServer, message []byte) {
	var req WSRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.sendError(nil, codeParseError, "parse error")
		return
	}

	switch req.Method {
	case MethodSubscribe:
		if len(req.Params) != 1 {
			c.sendError(req.ID, codeInvalidParams, "expected one event type")
			return
		}
		typ := core.EventType(req.Params[0])
		if typ != core.EventBlockAppended && typ != core.EventChainReplaced {
			c.sendError(req.ID, codeInvalidParams,
				fmt.Sprintf("unknown event type %q", req.Params[0]))
			return
		}

		subID := fmt.Sprintf("0x%x", atomic.AddUint64(&server.nextSubID, 1))
		c.mu.Lock()
		c.subscriptions[subID] = typ
		c.mu.Unlock()

		c.sendResult(req.ID, subID)

	case MethodUnsubscribe:
		if len(req.Params) != 1 {
			c.sendError(req.ID, codeInvalidParams, "expected a subscription id")
			return
		}

		c.mu.Lock()
		_, ok := c.subscriptions[req.Params[0]]
		delete(c.subscriptions, req.Params[0])
		c.mu.Unlock()

		c.sendResult(req.ID, ok)

	default:
		c.sendError(req.ID, codeMethodNotFound,
			fmt.Sprintf("method %q not found", req.Method))
	}
}

func (c *WSConnection) sendResult(id, result interface{}) {
	c.sendResponse(WSResponse{ID: id, Result: result})
}

func (c *WSConnection) sendError(id interface{}, code int, msg string) {
	c.sendResponse(WSResponse{ID: id, Error: &RPCError{Code: code, Message: msg}})
}

func (c *WSConnection) sendResponse(resp WSResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("Unable to encode websocket response: %v", err)
		return
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
	}
}

func (c *WSConnection) cleanup(server *WebSocketServer) {
	server.mu.Lock()
	delete(server.connections, c.id)
	server.mu.Unlock()

	c.cancel()
	log.Debugf("WebSocket connection %s closed", c.id)
}
