// Package server exposes tables over HTTP and streams their activity over
// websockets.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/store"
	"github.com/lox/dicepoker/internal/table"
)

// Bank is the account book behind table funds.
type Bank interface {
	Deposit(id game.Identity, amount uint64)
	Balance(id game.Identity) uint64
}

// History reads recorded settlements.
type History interface {
	ListSettlements(ctx context.Context, f store.Filter) ([]store.Record, error)
}

// SnapshotCache serves the last known state of tables this process does not
// run, such as tables lost in a restart.
type SnapshotCache interface {
	Get(ctx context.Context, tableID string) (game.Snapshot, error)
	Forget(ctx context.Context, tableID string) error
}

// Options configures a Server. Manager is required; the rest enable
// optional endpoints.
type Options struct {
	Manager *table.Manager
	Bank    Bank
	History History
	Cache   SnapshotCache
	// Hub must be the same hub registered as the manager's observer for
	// websocket clients to see table activity.
	Hub    *Hub
	Clock  quartz.Clock
	Logger *log.Logger
	// DefaultFulfillTimeout applies to tables created over HTTP that do not
	// set their own.
	DefaultFulfillTimeout time.Duration
}

// Server is the HTTP and websocket front end.
type Server struct {
	manager  *table.Manager
	bank     Bank
	history  History
	cache    SnapshotCache
	hub      *Hub
	clock    quartz.Clock
	logger   *log.Logger
	timeout  time.Duration
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

// New builds the server and its routes.
func New(opts Options) *Server {
	if opts.Manager == nil {
		panic("manager is required")
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Clock, opts.Logger)
	}

	s := &Server{
		manager: opts.Manager,
		bank:    opts.Bank,
		history: opts.History,
		cache:   opts.Cache,
		hub:     opts.Hub,
		clock:   opts.Clock,
		logger:  opts.Logger.WithPrefix("server"),
		timeout: opts.DefaultFulfillTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Clients only watch; nothing over the socket mutates state.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.hub.setLookup(s.lookupSnapshots)
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("Listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWebSocket)

	v1 := r.Group("/v1")
	{
		tables := v1.Group("/tables")
		tables.GET("", s.handleListTables)
		tables.POST("", s.handleCreateTable)
		tables.GET("/:id", s.handleGetTable)
		tables.DELETE("/:id", s.handleDeleteTable)
		tables.POST("/:id/actions", s.handleAction)
		tables.GET("/:id/call-amount", s.handleCallAmount)
		tables.GET("/:id/settlement", s.handleLastSettlement)
		tables.POST("/:id/settlement/retry", s.handleRetrySettlement)
		tables.GET("/:id/settlements", s.handleSettlements)
		tables.GET("/:id/oracle", s.handlePendingRequests)

		v1.POST("/oracle/fulfill", s.handleFulfill)

		players := v1.Group("/players")
		players.GET("/:id/balance", s.handleBalance)
		players.POST("/:id/deposit", s.handleDeposit)
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.clock.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", s.clock.Since(start),
		}
		if len(c.Errors) > 0 {
			s.logger.Error("Request failed", append(fields, "error", c.Errors.String())...)
			return
		}
		s.logger.Debug("Request", fields...)
	}
}

func (s *Server) lookupSnapshots(tableID string) ([]game.Snapshot, error) {
	if tableID == AllTables {
		return s.manager.Snapshots(), nil
	}
	t, err := s.manager.Get(tableID)
	if err != nil {
		return nil, err
	}
	return []game.Snapshot{t.Snapshot()}, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"tables":  len(s.manager.IDs()),
		"clients": s.hub.Count(),
	})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.hub, s.logger)
	if !s.hub.register(client) {
		_ = client.Close()
		return
	}
	client.Start()

	go func() {
		<-client.Done()
		s.hub.unregister(client)
	}()
}
