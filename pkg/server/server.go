package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ava-labs/chain-monitor/pkg/broadcast"
	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

const (
	DefaultMaxSubscribers = 1024
	DefaultWriteTimeout   = 10 * time.Second
	DefaultPingInterval   = 30 * time.Second

	maxClientMessageSize = 512
)

// StateSource is what the API reads from the aggregation store.
type StateSource interface {
	BestStatesByTicker() map[string]chainstate.TimestampedChainState
	Subscribe() (*broadcast.Subscription[chainstate.Event], []chainstate.Event)
}

// Config configures the API server.
type Config struct {
	Addr           string
	MaxSubscribers int64
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

// Server serves the current best states over REST and live updates over
// WebSocket.
type Server struct {
	log     *zap.SugaredLogger
	store   StateSource
	catalog *registry.Catalog
	cfg     Config
	metrics *metrics.Metrics

	subscribers *semaphore.Weighted
	upgrader    websocket.Upgrader
	httpServer  *http.Server

	// Cancelled on Shutdown to end hijacked WebSocket connections, which
	// http.Server.Shutdown does not track.
	streamsMu     sync.Mutex
	streamsCtx    context.Context
	cancelStreams context.CancelFunc
	streams       sync.WaitGroup
}

func New(
	log *zap.SugaredLogger,
	store StateSource,
	catalog *registry.Catalog,
	cfg Config,
	m *metrics.Metrics,
) (*Server, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if store == nil {
		return nil, errors.New("invalid store: must not be nil")
	}
	if catalog == nil {
		catalog = registry.NewCatalog()
	}
	if cfg.MaxSubscribers <= 0 {
		cfg.MaxSubscribers = DefaultMaxSubscribers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}

	s := &Server{
		log:         log,
		store:       store,
		catalog:     catalog,
		cfg:         cfg,
		metrics:     m,
		subscribers: semaphore.NewWeighted(cfg.MaxSubscribers),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The stream is public and read-only.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.streamsCtx, s.cancelStreams = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.Handle("GET /state", s.instrument("/state", http.HandlerFunc(s.handleState)))
	mux.Handle("GET /ws", s.instrument("/ws", http.HandlerFunc(s.handleWS)))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck // best-effort health response
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the routes, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving. This is non-blocking.
// Returns a channel that receives an error if the server fails.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("api server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops accepting requests, closes live streams and waits for them
// to finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	// No stream is added to the group once it is cancelled.
	s.streamsMu.Lock()
	s.cancelStreams()
	s.streamsMu.Unlock()
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(s.store.BestStatesByTicker()); err != nil {
		s.log.Debugw("failed to write state response", "error", err)
		s.metrics.IncError(metrics.ErrTypeEncode)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.subscribers.TryAcquire(1) {
		http.Error(w, "too many subscribers", http.StatusServiceUnavailable)
		return
	}
	defer s.subscribers.Release(1)

	if !s.addStream() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.streams.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.log.Debugw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	s.metrics.IncSubscribers()
	defer s.metrics.DecSubscribers()

	log := s.log.With("remote", r.RemoteAddr)
	log.Debugw("subscriber connected")

	if err := s.stream(conn, log); err != nil {
		log.Debugw("subscriber disconnected", "error", err)
		return
	}
	log.Debugw("subscriber disconnected")
}

func (s *Server) addStream() bool {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	if s.streamsCtx.Err() != nil {
		return false
	}
	s.streams.Add(1)
	return true
}

// stream writes the init message, the snapshot and then live updates until
// the client goes away or the server shuts down. The subscription is taken
// before anything is written so no update falls between snapshot and live.
func (s *Server) stream(conn *websocket.Conn, log *zap.SugaredLogger) error {
	sub, snapshot := s.store.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(s.streamsCtx)
	defer cancel()
	go s.readPump(conn, cancel)

	if err := s.write(conn, newInitMessage(s.catalog)); err != nil {
		return fmt.Errorf("write init: %w", err)
	}
	for _, ev := range snapshot {
		if err := s.write(conn, newUpdateMessage(ev)); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	nextPing := time.Now().Add(s.cfg.PingInterval)
	for {
		// Pings go out on schedule even when updates never pause.
		if !time.Now().Before(nextPing) {
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
			nextPing = time.Now().Add(s.cfg.PingInterval)
		}

		waitCtx, stop := context.WithDeadline(ctx, nextPing)
		ev, err := sub.Next(waitCtx)
		stop()

		switch {
		case err == nil:
			if err := s.write(conn, newUpdateMessage(ev)); err != nil {
				return fmt.Errorf("write update: %w", err)
			}
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			// Ping due.
		case ctx.Err() != nil && s.streamsCtx.Err() != nil:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, deadline) //nolint:errcheck // best-effort close frame
			return nil
		default:
			if dropped := sub.Dropped(); dropped > 0 {
				log.Debugw("subscriber fell behind", "dropped", dropped)
			}
			return err
		}
	}
}

// readPump drains client frames so control frames are processed, and
// cancels the stream when the client closes or stops answering pings.
func (s *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	pongWait := 2 * s.cfg.PingInterval
	conn.SetReadLimit(maxClientMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // error resurfaces on read
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// instrument records request counts and latency per route.
func (s *Server) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.ObserveHTTPRequest(path, rec.status, time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
