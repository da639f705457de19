package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dougsko/rfdetect/pkg/config"
	"github.com/dougsko/rfdetect/pkg/engine"
	"github.com/dougsko/rfdetect/pkg/logging"
)

var (
	configPath = flag.String("config", "config.yaml", "Configuration file path")
	version    = flag.Bool("version", false, "Show version information")
	simulate   = flag.Bool("simulate", false, "Run against simulated hardware")
)

const Build = "development"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("rfdetd version %s (%s)\n", engine.Version, Build)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()

	logging.Info("main", fmt.Sprintf("rfdetd version %s starting...", engine.Version))
	logging.Info("main", fmt.Sprintf("Radio: %s, simulate=%v", cfg.Radio.Driver, *simulate))
	if cfg.Web.Enabled {
		logging.Info("main", fmt.Sprintf("Web interface: http://%s:%d", cfg.Web.BindAddress, cfg.Web.Port))
	}

	daemon, err := NewDaemon(cfg, *simulate)
	if err != nil {
		logging.Error("main", fmt.Sprintf("Failed to create daemon: %v", err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := daemon.Start(); err != nil {
		logging.Error("main", fmt.Sprintf("Failed to start daemon: %v", err))
		os.Exit(1)
	}

	logging.Info("main", "rfdetd started successfully")

	select {
	case <-sigChan:
		logging.Info("main", "Shutting down...")
	case <-daemon.PoweredOff():
		logging.Info("main", "Power cut, exiting")
	}

	if err := daemon.Stop(); err != nil {
		logging.Error("main", fmt.Sprintf("Error during shutdown: %v", err))
	}

	logging.Info("main", "rfdetd stopped")
}

// loadConfig reads path, falling back to the defaults when it does not exist
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("No config at %s, using defaults", path)
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}
