package engine

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dougsko/rfdetect/pkg/audio"
	"github.com/dougsko/rfdetect/pkg/display"
	"github.com/dougsko/rfdetect/pkg/logging"
	"github.com/dougsko/rfdetect/pkg/protocol"
)

const defaultDetectionLimit = 20

// acceptConnections accepts and handles socket connections
func (e *Engine) acceptConnections(ctx context.Context) error {
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || !e.isRunning() {
				return nil
			}
			logging.Warnf("engine", "socket accept error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		go e.handleConnection(conn)
	}
}

// handleConnection serves newline-delimited commands on one connection
func (e *Engine) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			conn.Write([]byte(protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err)).String() + "\n"))
			continue
		}

		response := e.HandleCommand(cmd)
		conn.Write([]byte(response.String() + "\n"))

		if cmd.Type == protocol.CmdQuit {
			break
		}
	}
}

// HandleCommand processes a single command
func (e *Engine) HandleCommand(cmd *protocol.Command) *protocol.Response {
	switch cmd.Type {
	case protocol.CmdStatus:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"status": e.Status(),
		})

	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})

	case protocol.CmdThreshold:
		return e.handleThreshold(cmd)

	case protocol.CmdSave:
		v, changed, err := e.SaveThreshold()
		if err != nil {
			return protocol.NewErrorResponse(fmt.Sprintf("save threshold: %v", err))
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"threshold": v,
			"changed":   changed,
		})

	case protocol.CmdScreen:
		return e.handleScreen(cmd)

	case protocol.CmdSwipe:
		name, _ := cmd.Args["direction"].(string)
		g, ok := display.ParseSwipe(name)
		if !ok {
			return protocol.NewErrorResponse(fmt.Sprintf("unknown swipe direction %q", name))
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"screen": e.model.HandleSwipe(g).String(),
		})

	case protocol.CmdMenu:
		card, _ := cmd.Args["card"].(string)
		if err := e.model.SelectMenu(card); err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"screen": e.model.Screen().String(),
		})

	case protocol.CmdDetections:
		return e.handleDetections(cmd)

	case protocol.CmdStats:
		if e.store == nil {
			return protocol.NewErrorResponse("storage not open")
		}
		stats, err := e.store.DetectionStats()
		if err != nil {
			return protocol.NewErrorResponse(fmt.Sprintf("detection stats: %v", err))
		}
		return protocol.NewSuccessResponse(map[string]interface{}{
			"stats": stats,
			"audio": e.feedback.Stats(),
		})

	case protocol.CmdSpectrum:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"spectrum": e.model.View().Spectrum,
		})

	case protocol.CmdView:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"view": e.model.View(),
		})

	case protocol.CmdChime:
		name, _ := cmd.Args["event"].(string)
		ev, ok := audio.ParseEvent(name)
		if !ok {
			return protocol.NewErrorResponse(fmt.Sprintf("unknown chime %q", name))
		}
		e.feedback.Enqueue(ev)
		return protocol.NewSuccessResponse(map[string]interface{}{
			"event":   ev.String(),
			"pending": len(e.feedback.Pending()),
		})

	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

func (e *Engine) handleThreshold(cmd *protocol.Command) *protocol.Response {
	raw, ok := cmd.Args["value"].(string)
	if !ok {
		return protocol.NewSuccessResponse(map[string]interface{}{
			"threshold": e.model.Threshold(),
		})
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return protocol.NewErrorResponse(fmt.Sprintf("invalid threshold %q", raw))
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"threshold": e.model.SetThreshold(v),
	})
}

func (e *Engine) handleScreen(cmd *protocol.Command) *protocol.Response {
	name, ok := cmd.Args["screen"].(string)
	if !ok {
		return protocol.NewSuccessResponse(map[string]interface{}{
			"screen": e.model.Screen().String(),
			"mode":   e.model.Mode().String(),
		})
	}

	s, ok := display.ParseScreen(name)
	if !ok || s == display.ScreenSplash {
		return protocol.NewErrorResponse(fmt.Sprintf("unknown screen %q", name))
	}
	if e.model.Screen() == display.ScreenSplash {
		return protocol.NewErrorResponse("splash still shown")
	}

	// Leaving the threshold screen saves the value, like its back button
	if e.model.Screen() == display.ScreenThreshold && s != display.ScreenThreshold {
		e.model.CommitThreshold()
	}
	e.model.SetScreen(s)
	return protocol.NewSuccessResponse(map[string]interface{}{
		"screen": s.String(),
		"mode":   display.ModeFor(s).String(),
	})
}

func (e *Engine) handleDetections(cmd *protocol.Command) *protocol.Response {
	limit := defaultDetectionLimit
	if raw, ok := cmd.Args["limit"].(string); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return protocol.NewErrorResponse(fmt.Sprintf("invalid limit %q", raw))
		}
		limit = n
	}

	if e.store == nil {
		return protocol.NewErrorResponse("storage not open")
	}
	detections, err := e.store.RecentDetections(limit)
	if err != nil {
		return protocol.NewErrorResponse(fmt.Sprintf("recent detections: %v", err))
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"detections": detections,
		"count":      len(detections),
	})
}
