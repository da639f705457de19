package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/rfdetect/pkg/client"
	"github.com/dougsko/rfdetect/pkg/config"
	"github.com/dougsko/rfdetect/pkg/engine"
	"github.com/dougsko/rfdetect/pkg/logging"
)

// Daemon runs the detector engine and the web API in front of its socket
type Daemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	engine       *engine.Engine
	socketClient *client.SocketClient
	webServer    *http.Server

	socketPath string
}

// NewDaemon creates a new daemon instance
func NewDaemon(cfg *config.Config, simulate bool) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	socketPath := cfg.API.UnixSocket

	d := &Daemon{
		config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
		socketPath:   socketPath,
		engine:       engine.NewEngine(cfg, socketPath, simulate),
		socketClient: client.NewSocketClient(socketPath),
	}

	if cfg.Web.Enabled {
		d.setupWebServer()
	}
	return d, nil
}

// Start starts the daemon
func (d *Daemon) Start() error {
	logging.Info("web", "starting rfdetd daemon")

	if err := d.engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	if !d.socketClient.IsConnected() {
		d.engine.Stop()
		return fmt.Errorf("failed to connect to engine socket")
	}

	if d.webServer != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			logging.Infof("web", "starting web server on %s", d.webServer.Addr)
			if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Errorf("web", "web server error: %v", err)
			}
		}()
	}
	return nil
}

// PoweredOff is closed when the power sequence has cut power
func (d *Daemon) PoweredOff() <-chan struct{} {
	return d.engine.Done()
}

// Stop stops the daemon gracefully
func (d *Daemon) Stop() error {
	logging.Info("web", "stopping daemon")

	d.cancel()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			logging.Warnf("web", "web server shutdown error: %v", err)
		}
	}

	if err := d.engine.Stop(); err != nil {
		logging.Warnf("web", "engine shutdown error: %v", err)
	}

	d.wg.Wait()
	logging.Info("web", "daemon stopped")
	return nil
}

// setupWebServer initializes the web server and routes
func (d *Daemon) setupWebServer() {
	d.webServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port),
		Handler: d.router(),
	}
}

func (d *Daemon) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/threshold", d.handleGetThreshold)
		api.PUT("/threshold", d.handleSetThreshold)
		api.POST("/threshold/save", d.handleSaveThreshold)
		api.PUT("/screen", d.handleSetScreen)
		api.POST("/swipe", d.handleSwipe)
		api.POST("/menu", d.handleSelectMenu)
		api.POST("/chime", d.handleChime)
		api.GET("/detections", d.handleGetDetections)
		api.GET("/stats", d.handleGetStats)
		api.GET("/spectrum", d.handleGetSpectrum)
		api.GET("/view", d.handleGetView)
	}

	router.GET("/ws/view", d.handleViewWebSocket)
	return router
}
