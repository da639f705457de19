package protocol

import (
	"encoding/json"
	"strings"
	"time"
)

// Command represents a command sent to the core engine
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a response from the core engine
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Status represents the current daemon status
type Status struct {
	Device     string    `json:"device"`
	State      string    `json:"state"`
	Screen     string    `json:"screen"`
	Mode       string    `json:"mode"`
	Threshold  int       `json:"threshold"`
	ScanCount  int       `json:"scan_count"`
	Locked     bool      `json:"locked"`
	PowerPhase string    `json:"power_phase"`
	Battery    int       `json:"battery"`
	Voltage    float64   `json:"voltage"`
	LastSignal string    `json:"last_signal"`
	Simulated  bool      `json:"simulated"`
	Uptime     string    `json:"uptime"`
	StartTime  time.Time `json:"start_time"`
	Version    string    `json:"version"`
}

// ParseCommand parses a text command such as "THRESHOLD:-70" into a Command
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(strings.TrimSpace(parts[0])),
		Args: make(map[string]interface{}),
	}

	if len(parts) > 1 {
		args := strings.TrimSpace(parts[1])

		switch cmd.Type {
		case CmdThreshold:
			// THRESHOLD:-70
			cmd.Args["value"] = args

		case CmdScreen:
			// SCREEN:spectrum
			cmd.Args["screen"] = strings.ToLower(args)

		case CmdSwipe:
			// SWIPE:left
			cmd.Args["direction"] = strings.ToLower(args)

		case CmdMenu:
			// MENU:subghz
			cmd.Args["card"] = strings.ToLower(args)

		case CmdDetections:
			// DETECTIONS:20
			cmd.Args["limit"] = args

		case CmdChime:
			// CHIME:detect
			cmd.Args["event"] = strings.ToLower(args)
		}
	}

	return cmd, nil
}

// String converts a Response to a JSON line
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// Protocol commands
const (
	CmdStatus     = "STATUS"
	CmdPing       = "PING"
	CmdThreshold  = "THRESHOLD"
	CmdSave       = "SAVE"
	CmdScreen     = "SCREEN"
	CmdSwipe      = "SWIPE"
	CmdMenu       = "MENU"
	CmdDetections = "DETECTIONS"
	CmdStats      = "STATS"
	CmdSpectrum   = "SPECTRUM"
	CmdView       = "VIEW"
	CmdChime      = "CHIME"
	CmdQuit       = "QUIT"
)
