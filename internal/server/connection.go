package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/protocol"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// requestTimeout bounds how long a message waits for its table
	requestTimeout = 5 * time.Second
)

var ErrConnectionClosed = errors.New("connection closed")

// Connection is one websocket client. It may own seats at several tables
// and receives the state of every table it has joined or asked about.
type Connection struct {
	conn      *websocket.Conn
	send      chan []byte
	server    *Server
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.RWMutex
	seats    map[string]map[int]struct{} // table ID -> owned seats
	watching map[string]struct{}
}

// NewConnection wraps an upgraded websocket
func NewConnection(conn *websocket.Conn, server *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:     conn,
		send:     make(chan []byte, 256),
		server:   server,
		logger:   server.logger.With().Str("component", "conn").Str("remote", conn.RemoteAddr().String()).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		seats:    make(map[string]map[int]struct{}),
		watching: make(map[string]struct{}),
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed when the connection closes
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Send queues an envelope. A client that cannot keep up is disconnected.
func (c *Connection) Send(env *protocol.Envelope) error {
	data, err := protocol.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn().Msg("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) own(tableID string, seat int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seats[tableID] == nil {
		c.seats[tableID] = make(map[int]struct{})
	}
	c.seats[tableID][seat] = struct{}{}
	c.watching[tableID] = struct{}{}
}

func (c *Connection) disown(tableID string, seat int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seats[tableID], seat)
	if len(c.seats[tableID]) == 0 {
		delete(c.seats, tableID)
	}
}

func (c *Connection) owns(tableID string, seat int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.seats[tableID][seat]
	return ok
}

func (c *Connection) watch(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watching[tableID] = struct{}{}
}

// Watching reports whether the connection follows a table
func (c *Connection) Watching(tableID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.watching[tableID]
	return ok
}

// viewer is the seat whose hole cards this connection may see at a table.
// A connection owning several seats at one table sees the lowest.
func (c *Connection) viewer(tableID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seats := make([]int, 0, len(c.seats[tableID]))
	for s := range c.seats[tableID] {
		seats = append(seats, s)
	}
	if len(seats) == 0 {
		return game.Spectator
	}
	sort.Ints(seats)
	return seats[0]
}

// ownedSeats lists every owned seat by table
func (c *Connection) ownedSeats() map[string][]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]int, len(c.seats))
	for table, seats := range c.seats {
		for s := range seats {
			out[table] = append(out[table], s)
		}
	}
	return out
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("websocket error")
			}
			return
		}
		c.handleMessage(data)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error().Err(err).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage decodes and dispatches one client message
func (c *Connection) handleMessage(data []byte) {
	env, err := protocol.Unmarshal(data)
	if errors.Is(err, protocol.ErrUnknownMessageType) {
		c.sendError(env.RequestID, "unknown_message_type", err.Error())
		return
	} else if err != nil {
		c.sendError("", "invalid_message", err.Error())
		return
	}
	c.server.countMessage(env.Type)
	c.logger.Debug().Str("type", string(env.Type)).Str("request_id", env.RequestID).Msg("received message")

	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	switch env.Type {
	case protocol.TypeCreateTable:
		var msg protocol.CreateTable
		if c.decode(env, &msg) {
			c.handleCreateTable(ctx, env.RequestID, msg)
		}
	case protocol.TypeSit:
		var msg protocol.Sit
		if c.decode(env, &msg) {
			c.handleSit(ctx, env.RequestID, msg)
		}
	case protocol.TypeAction:
		var msg protocol.Action
		if c.decode(env, &msg) {
			c.handleAction(ctx, env.RequestID, msg)
		}
	case protocol.TypeLeave:
		var msg protocol.Leave
		if c.decode(env, &msg) {
			c.handleLeave(ctx, env.RequestID, msg)
		}
	case protocol.TypeAway:
		var msg protocol.Away
		if c.decode(env, &msg) {
			c.handleAway(ctx, env.RequestID, msg)
		}
	case protocol.TypeState:
		var msg protocol.StateRequest
		if c.decode(env, &msg) {
			c.handleState(ctx, env.RequestID, msg)
		}
	default:
		c.sendError(env.RequestID, "unknown_message_type", "cannot handle "+string(env.Type))
	}
}

func (c *Connection) decode(env *protocol.Envelope, v any) bool {
	if err := env.Decode(v); err != nil {
		c.sendError(env.RequestID, "invalid_message", err.Error())
		return false
	}
	return true
}

func (c *Connection) reply(requestID string, t protocol.Type, payload any) {
	env, err := protocol.New(t, requestID, payload)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to encode reply")
		return
	}
	_ = c.Send(env)
}

// sendError reports a failure to this connection only
func (c *Connection) sendError(requestID, code, message string) {
	c.reply(requestID, protocol.TypeError, protocol.Error{Code: code, Message: message})
}

func (c *Connection) fail(requestID string, err error) {
	c.sendError(requestID, errorCode(err), err.Error())
}

func (c *Connection) handleCreateTable(ctx context.Context, requestID string, msg protocol.CreateTable) {
	kind, err := game.ParseKind(msg.Kind)
	if err != nil {
		c.sendError(requestID, "invalid_message", err.Error())
		return
	}
	id, err := c.server.registry.CreateTable(ctx, TableSpec{
		ID:       msg.ID,
		Kind:     kind,
		Blinds:   game.Blinds{Small: msg.SmallBlind, Big: msg.BigBlind},
		MaxSeats: msg.MaxSeats,
		BuyIn:    msg.BuyIn,
	})
	if err != nil {
		c.fail(requestID, err)
		return
	}
	c.watch(id)
	c.reply(requestID, protocol.TypeTableCreated, protocol.TableCreated{TableID: id})
}

func (c *Connection) handleSit(ctx context.Context, requestID string, msg protocol.Sit) {
	seat, err := c.server.registry.SeatPlayer(ctx, msg.TableID, msg.Identity, msg.Chips, SeatOptions{
		CPU:      msg.CPU,
		Strategy: msg.Strategy,
	})
	if err != nil {
		c.fail(requestID, err)
		return
	}
	if msg.CPU {
		// The house plays CPU seats; the connection only watches
		c.watch(msg.TableID)
	} else {
		c.own(msg.TableID, seat)
	}
	c.logger.Info().Str("table_id", msg.TableID).Int("seat", seat).Str("identity", msg.Identity).Msg("seated")
	c.reply(requestID, protocol.TypeSeated, protocol.Seated{TableID: msg.TableID, Seat: seat})
}

func (c *Connection) handleAction(ctx context.Context, requestID string, msg protocol.Action) {
	if !c.owns(msg.TableID, msg.Seat) {
		c.sendError(requestID, "not_your_seat", "this connection does not own that seat")
		return
	}
	action, err := game.ParseAction(msg.Action)
	if err != nil {
		c.fail(requestID, err)
		return
	}
	snap, err := c.server.registry.SubmitAction(ctx, msg.TableID, msg.Seat, action, msg.Amount)
	if err != nil {
		c.fail(requestID, err)
		return
	}
	c.reply(requestID, protocol.TypeState, protocol.TableState{State: snap})
}

func (c *Connection) handleLeave(ctx context.Context, requestID string, msg protocol.Leave) {
	if !c.owns(msg.TableID, msg.Seat) {
		c.sendError(requestID, "not_your_seat", "this connection does not own that seat")
		return
	}
	if err := c.server.registry.Leave(ctx, msg.TableID, msg.Seat); err != nil {
		c.fail(requestID, err)
		return
	}
	c.disown(msg.TableID, msg.Seat)
	c.reply(requestID, protocol.TypeLeft, protocol.Left{TableID: msg.TableID, Seat: msg.Seat})
}

func (c *Connection) handleAway(ctx context.Context, requestID string, msg protocol.Away) {
	if !c.owns(msg.TableID, msg.Seat) {
		c.sendError(requestID, "not_your_seat", "this connection does not own that seat")
		return
	}
	if err := c.server.registry.SetAway(ctx, msg.TableID, msg.Seat, msg.Away); err != nil {
		c.fail(requestID, err)
		return
	}
	c.handleState(ctx, requestID, protocol.StateRequest{TableID: msg.TableID})
}

func (c *Connection) handleState(ctx context.Context, requestID string, msg protocol.StateRequest) {
	snap, err := c.server.registry.GetStateFor(ctx, msg.TableID, c.viewer(msg.TableID))
	if err != nil {
		c.fail(requestID, err)
		return
	}
	c.watch(msg.TableID)
	c.reply(requestID, protocol.TypeState, protocol.TableState{State: snap})
}

// disconnect leaves every seat the connection still owns
func (c *Connection) disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	for table, seats := range c.ownedSeats() {
		for _, seat := range seats {
			if err := c.server.registry.Disconnect(ctx, table, seat); err != nil && !errors.Is(err, ErrTableNotFound) {
				c.logger.Warn().Err(err).Str("table_id", table).Int("seat", seat).Msg("leave on disconnect failed")
			}
		}
	}
}

// errorCode maps an error to the wire error code
func errorCode(err error) string {
	var verr *game.ValidationError
	var cerr *game.CapacityError
	switch {
	case errors.As(err, &verr):
		return string(verr.Code)
	case errors.As(err, &cerr):
		return "table_full"
	case errors.Is(err, ErrTableNotFound):
		return "table_not_found"
	case errors.Is(err, ErrTableExists):
		return "table_exists"
	case errors.Is(err, ErrInvalidTable):
		return "invalid_table"
	case errors.Is(err, ErrUnknownStrategy):
		return "unknown_strategy"
	case errors.Is(err, game.ErrNotTournament):
		return "not_tournament"
	case errors.Is(err, game.ErrTableHalted):
		return "table_halted"
	case errors.Is(err, ErrRegistryClosed):
		return "shutting_down"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "internal_error"
}
