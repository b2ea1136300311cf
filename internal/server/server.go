package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server is the websocket and HTTP front of a Registry. Clients play over
// /ws; /tables and /ledger serve read-only JSON and /metrics exports
// Prometheus metrics.
type Server struct {
	addr       string
	registry   *Registry
	upgrader   websocket.Upgrader
	router     *mux.Router
	logger     zerolog.Logger
	httpServer *http.Server

	mu          sync.RWMutex
	connections map[*Connection]struct{}

	metrics     *prometheus.Registry
	connected   prometheus.Gauge
	received    *prometheus.CounterVec
	broadcasted *prometheus.CounterVec
}

// NewServer builds a server for registry. It subscribes to the registry's
// state changes and settlements to broadcast them.
func NewServer(addr string, registry *Registry, logger zerolog.Logger) *Server {
	s := &Server{
		addr:     addr,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:      logger.With().Str("component", "server").Logger(),
		connections: make(map[*Connection]struct{}),
		metrics:     prometheus.NewRegistry(),
	}

	factory := promauto.With(s.metrics)
	s.connected = factory.NewGauge(prometheus.GaugeOpts{
		Name: "cardroom_connections",
		Help: "Open websocket connections",
	})
	s.received = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "cardroom_messages_received_total",
		Help: "Messages received from clients by type",
	}, []string{"type"})
	s.broadcasted = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "cardroom_messages_broadcast_total",
		Help: "Messages broadcast to table watchers by type",
	}, []string{"type"})
	s.metrics.MustRegister(collectors.NewGoCollector())
	if l := registry.Ledger(); l != nil {
		s.metrics.MustRegister(ledger.NewCollector(l))
	}

	s.router = mux.NewRouter()
	r := s.router
	r.Methods(http.MethodGet).Path("/health").HandlerFunc(s.handleHealth)
	r.Methods(http.MethodGet).Path("/ws").HandlerFunc(s.handleWebSocket)
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	r.Methods(http.MethodGet).Path("/tables").HandlerFunc(s.handleTables)
	r.Methods(http.MethodGet).Path("/tables/{id}").HandlerFunc(s.handleTable)
	r.Methods(http.MethodGet).Path("/tables/{id}/tournament").HandlerFunc(s.handleTournament)
	r.Methods(http.MethodGet).Path("/ledger/tables").HandlerFunc(s.handleLedgerTables)
	r.Methods(http.MethodGet).Path("/ledger/players").HandlerFunc(s.handleLedgerPlayers)
	r.Methods(http.MethodGet).Path("/ledger/rollup").HandlerFunc(s.handleLedgerRollup)
	r.Methods(http.MethodGet).Path("/ledger/efficiency/{id}").HandlerFunc(s.handleLedgerEfficiency)

	registry.OnStateChange(s.broadcastState)
	registry.OnHandSettled(s.broadcastSettlement)
	return s
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info().Str("addr", s.addr).Msg("starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every connection
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	conns := make([]*Connection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) register(c *Connection) {
	s.mu.Lock()
	s.connections[c] = struct{}{}
	total := len(s.connections)
	s.mu.Unlock()
	s.connected.Inc()
	s.logger.Info().Int("total", total).Msg("client connected")
}

func (s *Server) unregister(c *Connection) {
	s.mu.Lock()
	_, ok := s.connections[c]
	delete(s.connections, c)
	total := len(s.connections)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.connected.Dec()
	c.disconnect()
	s.logger.Info().Int("total", total).Msg("client disconnected")
}

func (s *Server) countMessage(t protocol.Type) {
	s.received.WithLabelValues(string(t)).Inc()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewConnection(conn, s)
	s.register(client)
	client.Start()

	go func() {
		<-client.Done()
		s.unregister(client)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// watchers returns the connections following a table
func (s *Server) watchers(tableID string) []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Connection
	for c := range s.connections {
		if c.Watching(tableID) {
			out = append(out, c)
		}
	}
	return out
}

// broadcastState sends every watcher the table as its seat sees it
func (s *Server) broadcastState(snap game.Snapshot) {
	for _, c := range s.watchers(snap.TableID) {
		env, err := protocol.New(protocol.TypeTableState, "", protocol.TableState{State: snap.For(c.viewer(snap.TableID))})
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to encode table state")
			return
		}
		if err := c.Send(env); err == nil {
			s.broadcasted.WithLabelValues(string(protocol.TypeTableState)).Inc()
		}
	}
}

func (s *Server) broadcastSettlement(settlement game.Settlement) {
	env, err := protocol.New(protocol.TypeHandSettled, "", protocol.HandSettled{Settlement: settlement})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode settlement")
		return
	}
	for _, c := range s.watchers(settlement.TableID) {
		if err := c.Send(env); err == nil {
			s.broadcasted.WithLabelValues(string(protocol.TypeHandSettled)).Inc()
		}
	}
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.registry.Summaries(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	if tables == nil {
		tables = []TableSummary{}
	}
	s.writeJSON(w, http.StatusOK, tables)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	snap, err := s.registry.GetStateFor(r.Context(), mux.Vars(r)["id"], game.Spectator)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTournament(w http.ResponseWriter, r *http.Request) {
	summary, err := s.registry.TournamentSummary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) ledger(w http.ResponseWriter) (*ledger.Ledger, bool) {
	l := s.registry.Ledger()
	if l == nil {
		s.writeJSONError(w, http.StatusNotFound, errors.New("no revenue ledger configured"))
		return nil, false
	}
	return l, true
}

func (s *Server) handleLedgerTables(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledger(w)
	if !ok {
		return
	}
	q, err := parseLedgerQuery(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l.TopTables(q.limit, q.from, q.to))
}

func (s *Server) handleLedgerPlayers(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledger(w)
	if !ok {
		return
	}
	q, err := parseLedgerQuery(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l.TopPlayers(q.limit, q.from, q.to))
}

func (s *Server) handleLedgerRollup(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledger(w)
	if !ok {
		return
	}
	q, err := parseLedgerQuery(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	bucket := ledger.Day
	if v := r.URL.Query().Get("bucket"); v != "" {
		if bucket, err = ledger.ParseBucket(v); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, l.Rollup(r.URL.Query().Get("table"), bucket, q.from, q.to))
}

func (s *Server) handleLedgerEfficiency(w http.ResponseWriter, r *http.Request) {
	l, ok := s.ledger(w)
	if !ok {
		return
	}
	q, err := parseLedgerQuery(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l.Efficiency(mux.Vars(r)["id"], q.from, q.to))
}

type ledgerQuery struct {
	from, to time.Time
	limit    int
}

// parseLedgerQuery reads the optional from and to (RFC 3339) and limit
// query parameters
func parseLedgerQuery(r *http.Request) (ledgerQuery, error) {
	var q ledgerQuery
	values := r.URL.Query()
	for name, dst := range map[string]*time.Time{"from": &q.from, "to": &q.to} {
		v := values.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = t
	}
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid limit %q", v)
		}
		q.limit = n
	}
	return q, nil
}

type errorResponse struct {
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	StatusCode int    `json:"status_code"`
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("could not write JSON response")
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, statusCode int, err error) {
	msg := http.StatusText(statusCode)
	if statusCode < 500 && err != nil {
		msg = err.Error()
	}
	if statusCode >= 500 {
		s.logger.Error().Err(err).Int("status_code", statusCode).Msg("request failed")
	}
	resp := errorResponse{Message: msg, StatusCode: statusCode}
	if err != nil {
		resp.Code = errorCode(err)
	}
	s.writeJSON(w, statusCode, resp)
}

func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var verr *game.ValidationError
	switch {
	case errors.Is(err, ErrTableNotFound):
		status = http.StatusNotFound
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, game.ErrNotTournament):
		status = http.StatusBadRequest
	case errors.Is(err, ErrRegistryClosed):
		status = http.StatusServiceUnavailable
	}
	s.writeJSONError(w, status, err)
}
