package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" ./cmd
var Version = "dev"

const usage = `keybridge - local device bridge for hardware wallet companion apps

Usage:
  keybridge <command> [options]

Commands:
  start             Start the bridge daemon
  status            Show bridge status (device state, paired services)
  services list     List paired services
  services remove <name>  Remove a paired service
  address           Show the bridge address (--qr for a scannable code)
  doctor            Diagnose bridge setup and connectivity

Run 'keybridge <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "start":
		return runStart(args[2:], stdout, stderr)
	case "status":
		return runStatus(args[2:], stdout, stderr)
	case "services":
		if len(args) < 3 {
			fmt.Fprintln(stdout, "Usage: keybridge services <list|remove>")
			return 1
		}
		switch args[2] {
		case "list":
			return runServicesList(args[3:], stdout, stderr)
		case "remove":
			return runServicesRemove(args[3:], stdout, stderr)
		default:
			fmt.Fprintf(stdout, "Unknown services command: %s\n", args[2])
			return 1
		}
	case "address":
		return runAddress(args[2:], stdout, stderr)
	case "doctor":
		return runDoctor(args[2:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "keybridge %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
