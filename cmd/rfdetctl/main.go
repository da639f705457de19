package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dougsko/rfdetect/pkg/client"
)

var (
	socketPath = flag.String("socket", "/tmp/rfdetd.sock", "Unix socket path")
	command    = flag.String("cmd", "", "Command to send (e.g., 'STATUS', 'THRESHOLD:-70')")
)

func main() {
	flag.Parse()

	if *socketPath == "" {
		fmt.Fprintf(os.Stderr, "Socket path is required\n")
		os.Exit(1)
	}

	if *command == "" {
		if len(flag.Args()) > 0 {
			*command = strings.Join(flag.Args(), " ")
		} else {
			showHelp()
			return
		}
	}

	c := client.NewSocketClient(*socketPath)

	response, err := c.SendCommand(*command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", response.String())
	if !response.Success {
		os.Exit(2)
	}
}

func showHelp() {
	fmt.Println("rfdetctl - RF detector daemon control tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options] <command>\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -socket <path>    Unix socket path (default: /tmp/rfdetd.sock)")
	fmt.Println("  -cmd <command>    Command to send")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  STATUS                    Get daemon status")
	fmt.Println("  THRESHOLD                 Get the detection threshold")
	fmt.Println("  THRESHOLD:<dBm>           Set the detection threshold")
	fmt.Println("  SAVE                      Persist the current threshold")
	fmt.Println("  SCREEN[:<name>]           Get or switch the screen (menu, freq-only, main, spectrum, threshold, ir)")
	fmt.Println("  SWIPE:<dir>               Send a gesture (left, right, up, down)")
	fmt.Println("  MENU:<card>               Open a menu card (subghz, ir)")
	fmt.Println("  DETECTIONS[:<n>]          Get recent detections")
	fmt.Println("  STATS                     Get detection statistics")
	fmt.Println("  SPECTRUM                  Get the spectrum screen")
	fmt.Println("  VIEW                      Get everything the screens show")
	fmt.Println("  CHIME:<event>             Play a cue (startup, shutdown, detect)")
	fmt.Println("  PING                      Test connection")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s STATUS\n", os.Args[0])
	fmt.Printf("  %s THRESHOLD:-70\n", os.Args[0])
	fmt.Printf("  %s DETECTIONS:5\n", os.Args[0])
	fmt.Printf("  echo 'VIEW' | nc -U /tmp/rfdetd.sock\n")
}
