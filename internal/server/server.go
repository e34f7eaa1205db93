// HTTP and websocket surface for live viewers.
package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"netsim/internal/device"
	"netsim/internal/logging"
	"netsim/internal/sim"
	"netsim/internal/stats"
	"netsim/internal/traffic"
)

// Simulation is the engine surface the HTTP layer exposes.
type Simulation interface {
	Controller
	Devices() []device.Device
	Status() sim.Status
	DeviceStats(id int) (stats.Snapshot, bool)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Viewers are trusted on the local network.
		return true
	},
}

// Server serves the viewer page, the REST endpoints, and the websocket
// stream.
type Server struct {
	addr string
	sim  Simulation
	hub  *Hub
	http *http.Server
}

// New builds the server. webDir points at the viewer assets; empty
// disables the HTML surface and leaves only REST and the websocket.
func New(addr string, simulation Simulation, hub *Hub, webDir string) *Server {
	s := &Server{addr: addr, sim: simulation, hub: hub}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if webDir != "" {
		router.LoadHTMLGlob(filepath.Join(webDir, "templates", "*.html"))
		router.Static("/static", filepath.Join(webDir, "static"))
		router.GET("/", func(c *gin.Context) {
			c.HTML(http.StatusOK, "index.html", gin.H{})
		})
	}

	router.GET("/devices", s.handleDevices)
	router.GET("/stats", s.handleStats)
	router.GET("/ws", s.handleWS)

	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	log := logging.FromContext(ctx)
	errCh := make(chan error, 1)

	go func() {
		log.Info("http server listening", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("http server shutting down")
	return s.http.Shutdown(shutdownCtx)
}

type deviceView struct {
	device.Device
	Stats stats.Snapshot `json:"stats"`
}

func (s *Server) handleDevices(c *gin.Context) {
	devices := s.sim.Devices()
	out := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		snap, _ := s.sim.DeviceStats(d.ID)
		out = append(out, deviceView{Device: d, Stats: snap})
	}
	c.JSON(http.StatusOK, gin.H{"devices": out})
}

func (s *Server) handleStats(c *gin.Context) {
	st := s.sim.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":  st,
		"viewers": s.hub.ClientCount(),
	})
}

func (s *Server) handleWS(c *gin.Context) {
	log := logging.FromContext(c.Request.Context())
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", "remote", c.ClientIP(), "err", err)
		return
	}
	s.hub.attach(conn, traffic.NewDeviceList(s.sim.Devices()))
}
