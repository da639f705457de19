package engine

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dougsko/rfdetect/pkg/audio"
	"github.com/dougsko/rfdetect/pkg/battery"
	"github.com/dougsko/rfdetect/pkg/config"
	"github.com/dougsko/rfdetect/pkg/display"
	"github.com/dougsko/rfdetect/pkg/hardware"
	"github.com/dougsko/rfdetect/pkg/logging"
	"github.com/dougsko/rfdetect/pkg/power"
	"github.com/dougsko/rfdetect/pkg/protocol"
	"github.com/dougsko/rfdetect/pkg/scan"
	"github.com/dougsko/rfdetect/pkg/statebus"
	"github.com/dougsko/rfdetect/pkg/storage"
)

// Version is reported in the status
const Version = "0.1.0-dev"

// State is the application state of the detector
type State int32

const (
	StateBoot State = iota
	StateSplash
	StateScanning
	StatePowerOff
)

func (s State) String() string {
	switch s {
	case StateBoot:
		return "boot"
	case StateSplash:
		return "splash"
	case StateScanning:
		return "scanning"
	case StatePowerOff:
		return "power-off"
	default:
		return "unknown"
	}
}

// Engine wires the scan engine, the state bus, the audio feedback service
// and the power sequencer into the detector's tasks, and serves the unix
// socket control protocol.
type Engine struct {
	config     *config.Config
	socketPath string
	listener   net.Listener
	startTime  time.Time
	running    bool
	mutex      sync.Mutex

	hardware  *hardware.Manager
	store     *storage.Store
	bus       *statebus.Bus
	model     *display.Model
	scanner   *scan.Engine
	feedback  *audio.Service
	sequencer *power.Sequencer
	monitor   *battery.Monitor

	state     atomic.Int32
	phase     atomic.Int32
	scanCount atomic.Int64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once

	// owned by the rf task
	wasSpectrum  bool
	prevDetected bool
	lastBeep     time.Time
}

// NewEngine creates an engine. simulate forces the mock hardware.
func NewEngine(cfg *config.Config, socketPath string, simulate bool) *Engine {
	bus := statebus.New()
	e := &Engine{
		config:     cfg,
		socketPath: socketPath,
		hardware:   hardware.NewManager(cfg, simulate),
		bus:        bus,
		model:      display.NewModel(bus, cfg.Scan.DefaultThreshold),
		done:       make(chan struct{}),
	}

	e.model.OnThresholdChanged(func(v int) {
		logging.Debugf("engine", "threshold changed to %d dBm", v)
	})
	e.model.OnThresholdSaved(func(v int) {
		if _, err := e.persistThreshold(v); err != nil {
			logging.Errorf("engine", "save threshold: %v", err)
		}
	})
	e.model.OnSplashDone(func() {
		e.setState(StateScanning)
		logging.Info("engine", "splash done, scanning")
	})
	return e
}

// Start brings the detector up. It returns an error, and leaves nothing
// running, when storage, hardware or the radio cannot be initialized.
func (e *Engine) Start() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.running {
		return fmt.Errorf("engine already running")
	}

	e.startTime = time.Now()
	e.setState(StateBoot)

	store, err := storage.NewStore(e.config.Storage.DatabasePath, e.config.Storage.MaxDetections)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	e.store = store

	threshold := e.model.SetThreshold(store.GetInt(storage.KeyThreshold, e.config.Scan.DefaultThreshold))
	logging.Info("engine", "threshold loaded", logging.Fields{"threshold": threshold})

	if err := e.hardware.Initialize(); err != nil {
		e.store.Close()
		e.store = nil
		return fmt.Errorf("failed to initialize hardware: %w", err)
	}

	e.scanner = scan.NewEngine(e.hardware.Radio(), ScanTiming(e.config))
	if err := e.scanner.Init(); err != nil {
		e.closeDevices()
		return fmt.Errorf("failed to initialize radio: %w", err)
	}

	sink := e.hardware.Sink()
	if !e.config.Audio.Enabled {
		sink = audio.NewMemorySink(e.config.Audio.RecordSessions)
	}
	e.feedback = audio.NewService(sink, AudioOptions(e.config))

	if err := e.setupPower(); err != nil {
		e.closeDevices()
		return err
	}

	if e.config.Battery.Enabled {
		e.monitor = battery.NewMonitor(e.hardware.Battery(), &e.bus.Battery,
			config.Millis(e.config.Battery.StartDelayMs), config.Millis(e.config.Battery.PollMs))
	}

	os.Remove(e.socketPath)
	listener, err := net.Listen("unix", e.socketPath)
	if err != nil {
		e.closeDevices()
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}
	e.listener = listener
	if err := os.Chmod(e.socketPath, 0660); err != nil {
		logging.Warnf("engine", "failed to set socket permissions: %v", err)
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.running = true

	e.goTask("audio", e.feedback.Run)
	e.startupChime()

	e.setState(StateSplash)
	e.goTask("boot", e.splash)
	e.goTask("control", e.controlLoop)
	e.goTask("display", e.displayLoop)
	e.goTask("rf", e.rfLoop)
	if e.monitor != nil {
		e.goTask("battery", e.monitor.Run)
	}
	e.goTask("socket", e.acceptConnections)

	logging.Info("engine", "engine started", logging.Fields{
		"socket":    e.socketPath,
		"simulated": e.hardware.Simulated(),
	})
	return nil
}

func (e *Engine) setupPower() error {
	_, _, usb := e.hardware.Buttons().Levels()
	boot := power.BootInfo{ExternalReset: e.config.Power.ExternalReset, USBPresent: usb}

	latch := e.hardware.Latch()
	seq, err := power.NewSequencer(PowerConfig(e.config), boot, e.feedback, latch, screenLock{e.model, latch})
	if err != nil {
		return fmt.Errorf("failed to create power sequencer: %w", err)
	}
	seq.OnPhase(func(from, to power.Phase, at time.Duration) {
		e.phase.Store(int32(to))
		logging.Debugf("engine", "power %s -> %s at %v", from, to, at)
	})
	e.phase.Store(int32(seq.Phase()))
	e.sequencer = seq
	return nil
}

// startupChime plays the startup cue and waits a bounded time for it
func (e *Engine) startupChime() {
	e.feedback.Enqueue(audio.EventStartup)
	wait := config.Millis(e.config.Audio.StartupWaitMs)
	if !e.feedback.WaitIdle(e.ctx, wait) {
		logging.Warnf("engine", "startup chime still playing after %v", wait)
	}
	logging.Info("engine", "system ready")
}

func (e *Engine) goTask(name string, fn func(ctx context.Context) error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := fn(e.ctx); err != nil && err != context.Canceled {
			logging.Warnf("engine", "%s task stopped: %v", name, err)
		}
	}()
}

// Stop stops every task and releases the devices
func (e *Engine) Stop() error {
	e.mutex.Lock()
	if !e.running {
		e.mutex.Unlock()
		return nil
	}
	e.running = false
	e.mutex.Unlock()

	e.cancel()
	if e.listener != nil {
		e.listener.Close()
	}
	e.wg.Wait()

	e.closeDevices()
	os.Remove(e.socketPath)

	logging.Info("engine", "engine stopped")
	return nil
}

func (e *Engine) closeDevices() {
	if err := e.hardware.Close(); err != nil {
		logging.Warnf("engine", "close hardware: %v", err)
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logging.Warnf("engine", "close storage: %v", err)
		}
		e.store = nil
	}
}

func (e *Engine) isRunning() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.running
}

// Done is closed once the power sequence has cut power
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// State returns the application state
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// PowerPhase returns the power sequencer phase
func (e *Engine) PowerPhase() power.Phase {
	return power.Phase(e.phase.Load())
}

// Model returns the display model
func (e *Engine) Model() *display.Model {
	return e.model
}

// Hardware returns the hardware manager
func (e *Engine) Hardware() *hardware.Manager {
	return e.hardware
}

// Status returns the current daemon status
func (e *Engine) Status() protocol.Status {
	view := e.model.View()
	return protocol.Status{
		Device:     e.config.Device.Name,
		State:      e.State().String(),
		Screen:     view.Screen,
		Mode:       view.Mode,
		Threshold:  view.Threshold,
		ScanCount:  int(e.scanCount.Load()),
		Locked:     view.Locked,
		PowerPhase: e.PowerPhase().String(),
		Battery:    view.Battery.Level,
		Voltage:    view.Battery.Voltage,
		LastSignal: view.History,
		Simulated:  e.hardware.Simulated(),
		Uptime:     time.Since(e.startTime).Round(time.Second).String(),
		StartTime:  e.startTime,
		Version:    Version,
	}
}

// SaveThreshold persists the current threshold. It reports whether the
// stored value changed.
func (e *Engine) SaveThreshold() (int, bool, error) {
	v := e.model.Threshold()
	changed, err := e.persistThreshold(v)
	return v, changed, err
}

func (e *Engine) persistThreshold(v int) (bool, error) {
	if e.store == nil {
		return false, fmt.Errorf("storage not open")
	}
	changed, err := e.store.PutInt(storage.KeyThreshold, v)
	if err != nil {
		return false, err
	}
	if changed {
		logging.Info("engine", "threshold saved", logging.Fields{"threshold": v})
	}
	return changed, nil
}

// screenLock applies the lock button to the display and its backlight
type screenLock struct {
	model *display.Model
	latch *hardware.PowerLatch
}

func (l screenLock) SetLocked(locked bool) {
	l.model.SetLocked(locked)
	if err := l.latch.SetBacklight(!locked); err != nil {
		logging.Warnf("engine", "backlight: %v", err)
	}
}
