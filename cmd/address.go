package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/keybridge/keybridge/internal/config"
)

// runAddress implements "keybridge address": prints the bridge URL a
// wallet app should pair against, optionally as a QR code the app can
// scan.
func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", config.DefaultAddr, "Bridge address")
	qr := fs.Bool("qr", false, "Display the address as a QR code")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	url := "http://" + *addr
	if !*qr {
		fmt.Fprintln(stdout, url)
		return 0
	}

	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(stderr, "Error generating QR code: %v\n", err)
		fmt.Fprintln(stdout, url)
		return 1
	}

	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, "===========================================")
	fmt.Fprintln(stdout, "         SCAN TO CONNECT")
	fmt.Fprintln(stdout, "===========================================")
	fmt.Fprintln(stdout, "")
	fmt.Fprint(stdout, code.ToSmallString(false))
	fmt.Fprintln(stdout, "-------------------------------------------")
	fmt.Fprintf(stdout, "  Bridge: %s\n", url)
	fmt.Fprintln(stdout, "===========================================")
	return 0
}

// portOf parses the port out of a host:port address, defaulting to the
// standard bridge port on malformed input.
func portOf(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultPort()
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return defaultPort()
	}
	return port
}

func defaultPort() int {
	parts := strings.Split(config.DefaultAddr, ":")
	port, _ := strconv.Atoi(parts[len(parts)-1])
	return port
}
