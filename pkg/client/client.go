package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/dougsko/rfdetect/pkg/display"
	"github.com/dougsko/rfdetect/pkg/protocol"
	"github.com/dougsko/rfdetect/pkg/storage"
)

// SocketClient represents a client connection to the core engine
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return &response, nil
}

// call sends cmd and fails on an unsuccessful response
func (c *SocketClient) call(cmd string) (*protocol.Response, error) {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s error: %s", cmd, resp.Error)
	}
	return resp, nil
}

// decode re-marshals a response field into out
func decode(resp *protocol.Response, key string, out interface{}) error {
	raw, ok := resp.Data[key]
	if !ok {
		return fmt.Errorf("%s not found in response", key)
	}
	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

// GetStatus gets the current daemon status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	resp, err := c.call(protocol.CmdStatus)
	if err != nil {
		return nil, err
	}
	var status protocol.Status
	if err := decode(resp, "status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetThreshold returns the detection threshold in dBm
func (c *SocketClient) GetThreshold() (int, error) {
	resp, err := c.call(protocol.CmdThreshold)
	if err != nil {
		return 0, err
	}
	var v int
	err = decode(resp, "threshold", &v)
	return v, err
}

// SetThreshold changes the threshold without persisting it. The stored
// (clamped) value is returned.
func (c *SocketClient) SetThreshold(v int) (int, error) {
	resp, err := c.call(fmt.Sprintf("%s:%d", protocol.CmdThreshold, v))
	if err != nil {
		return 0, err
	}
	var got int
	err = decode(resp, "threshold", &got)
	return got, err
}

// SaveThreshold persists the current threshold
func (c *SocketClient) SaveThreshold() error {
	_, err := c.call(protocol.CmdSave)
	return err
}

// SetScreen switches the display screen
func (c *SocketClient) SetScreen(name string) error {
	_, err := c.call(protocol.CmdScreen + ":" + name)
	return err
}

// Swipe sends a touch gesture
func (c *SocketClient) Swipe(direction string) error {
	_, err := c.call(protocol.CmdSwipe + ":" + direction)
	return err
}

// SelectMenu opens a menu card
func (c *SocketClient) SelectMenu(card string) error {
	_, err := c.call(protocol.CmdMenu + ":" + card)
	return err
}

// PlayChime queues a feedback cue
func (c *SocketClient) PlayChime(event string) error {
	_, err := c.call(protocol.CmdChime + ":" + event)
	return err
}

// GetDetections returns recent detections, newest first
func (c *SocketClient) GetDetections(limit int) ([]storage.Detection, error) {
	cmd := protocol.CmdDetections
	if limit > 0 {
		cmd = fmt.Sprintf("%s:%d", protocol.CmdDetections, limit)
	}
	resp, err := c.call(cmd)
	if err != nil {
		return nil, err
	}
	if _, ok := resp.Data["detections"]; !ok {
		return []storage.Detection{}, nil
	}
	var out []storage.Detection
	err = decode(resp, "detections", &out)
	return out, err
}

// GetStats returns detection history statistics
func (c *SocketClient) GetStats() (*storage.DetectionStats, error) {
	resp, err := c.call(protocol.CmdStats)
	if err != nil {
		return nil, err
	}
	var stats storage.DetectionStats
	if err := decode(resp, "stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetSpectrum returns the last rendered spectrum
func (c *SocketClient) GetSpectrum() (*display.SpectrumView, error) {
	resp, err := c.call(protocol.CmdSpectrum)
	if err != nil {
		return nil, err
	}
	var sv display.SpectrumView
	if err := decode(resp, "spectrum", &sv); err != nil {
		return nil, err
	}
	return &sv, nil
}

// GetView returns everything the screens currently show
func (c *SocketClient) GetView() (*display.View, error) {
	resp, err := c.call(protocol.CmdView)
	if err != nil {
		return nil, err
	}
	var v display.View
	if err := decode(resp, "view", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	_, err := c.call(protocol.CmdPing)
	return err
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}
