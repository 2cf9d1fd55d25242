package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/PlayConnect01/PlayConnect-sub002/internal/call"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/relay"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/rooms"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/router"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/server/middleware"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/sweeper"
	"github.com/PlayConnect01/PlayConnect-sub002/pkg/config"
	"github.com/PlayConnect01/PlayConnect-sub002/pkg/registry"
	"github.com/PlayConnect01/PlayConnect-sub002/pkg/transport"
)

type App struct {
	logger      *slog.Logger
	registry    *registry.Registry
	hub         *rooms.Hub
	eventRouter *router.EventRouter
	sweeper     *sweeper.Sweeper
	wg          sync.WaitGroup
	http        *http.Server
	config      *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, store call.Store) *App {
	reg := registry.New(logger)
	hub := rooms.NewHub(reg, logger)
	manager := call.NewManager(store, hub, logger)
	signalRelay := relay.New(reg, logger)
	eventRouter := router.NewEventRouter(signalRelay, manager, hub, logger)
	liveness := sweeper.New(reg, hub, cfg.Sweeper.Interval, cfg.Sweeper.ProbeTimeout, logger)

	app := &App{
		logger:      logger,
		registry:    reg,
		hub:         hub,
		eventRouter: eventRouter,
		sweeper:     liveness,
		config:      cfg,
		ctx:         rootCtx,
	}

	mux := http.NewServeMux()
	upgradeHandler := http.HandlerFunc(app.upgradeHandler)
	mux.Handle("/ws",
		middleware.Chain(upgradeHandler,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewAuthMiddleware(logger, app.config.Server.Auth.JWTSecret),
		),
	)

	app.http = &http.Server{Addr: app.config.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

func (a *App) Run() error {
	go a.sweeper.Run(a.ctx)
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	userID := reqMeta.UserID
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", userID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		nil,
		nil,
		a.logger,
	)
	conn.SetOnMessageHandler(func(ctx context.Context, _ uuid.UUID, msg []byte) {
		a.eventRouter.HandleMessage(ctx, userID, conn, msg)
	})
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Info("Connection closed, reaping", slog.String("connID", id.String()))
		a.sweeper.Reap(userID, conn)
	})

	// Register supersedes any prior connection for the same user, so a
	// reconnecting client never leaves a duplicate behind.
	a.registry.Register(userID, conn)

	connLogger.Info("User connection fully established")
	conn.Run()
	<-conn.Done()
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	a.registry.ForEach(func(userID string, conn registry.Conn) {
		conn.Close(errors.New("graceful shutdown"))
	})

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
