package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/rfdetect/pkg/config"
	"github.com/dougsko/rfdetect/pkg/logging"
)

// handleGetStatus returns daemon status via socket
func (d *Daemon) handleGetStatus(c *gin.Context) {
	status, err := d.socketClient.GetStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (d *Daemon) handleGetThreshold(c *gin.Context) {
	v, err := d.socketClient.GetThreshold()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threshold": v})
}

// handleSetThreshold moves the threshold slider. The value is only
// persisted by /threshold/save.
func (d *Daemon) handleSetThreshold(c *gin.Context) {
	var req struct {
		Threshold *int `json:"threshold" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threshold is required"})
		return
	}

	v, err := d.socketClient.SetThreshold(*req.Threshold)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threshold": v})
}

func (d *Daemon) handleSaveThreshold(c *gin.Context) {
	if err := d.socketClient.SaveThreshold(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (d *Daemon) handleSetScreen(c *gin.Context) {
	var req struct {
		Screen string `json:"screen" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "screen is required"})
		return
	}
	if err := d.socketClient.SetScreen(req.Screen); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"screen": req.Screen})
}

func (d *Daemon) handleSwipe(c *gin.Context) {
	var req struct {
		Direction string `json:"direction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction is required"})
		return
	}
	if err := d.socketClient.Swipe(req.Direction); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d.respondView(c)
}

func (d *Daemon) handleSelectMenu(c *gin.Context) {
	var req struct {
		Card string `json:"card" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card is required"})
		return
	}
	if err := d.socketClient.SelectMenu(req.Card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d.respondView(c)
}

func (d *Daemon) handleChime(c *gin.Context) {
	var req struct {
		Event string `json:"event" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event is required"})
		return
	}
	if err := d.socketClient.PlayChime(req.Event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": req.Event})
}

// handleGetDetections returns the detection history, newest first
func (d *Daemon) handleGetDetections(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		limit = 50
	}

	detections, err := d.socketClient.GetDetections(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"detections": detections,
		"count":      len(detections),
	})
}

func (d *Daemon) handleGetStats(c *gin.Context) {
	stats, err := d.socketClient.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (d *Daemon) handleGetSpectrum(c *gin.Context) {
	spectrum, err := d.socketClient.GetSpectrum()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, spectrum)
}

func (d *Daemon) handleGetView(c *gin.Context) {
	d.respondView(c)
}

func (d *Daemon) respondView(c *gin.Context) {
	view, err := d.socketClient.GetView()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleViewWebSocket streams the display view to a browser at the
// display refresh rate, sending only views that changed
func (d *Daemon) handleViewWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("web", "websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	logging.Debug("web", "view websocket client connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(config.Millis(d.config.Display.RefreshMs))
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-ticker.C:
			view, err := d.socketClient.GetView()
			if err != nil {
				conn.WriteJSON(gin.H{"error": err.Error()})
				return
			}
			data, err := json.Marshal(view)
			if err != nil || bytes.Equal(data, last) {
				continue
			}
			last = data
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debugf("web", "websocket write error: %v", err)
				return
			}

		case <-closed:
			logging.Debug("web", "view websocket client disconnected")
			return

		case <-d.ctx.Done():
			return
		}
	}
}
