package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/keybridge/keybridge/internal/config"
)

// bridgeStatus is the /status response shape.
type bridgeStatus struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	State   int    `json:"state"`
}

// bridgeServices is the /services response shape.
type bridgeServices struct {
	Success  bool `json:"success"`
	Services []struct {
		ServiceName string `json:"serviceName"`
		AddedOn     string `json:"addedOn"`
	} `json:"services"`
}

// runStatus implements "keybridge status": queries the running daemon.
func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", config.DefaultAddr, "Bridge address")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	client := &http.Client{Timeout: 5 * time.Second}

	st, err := fetchStatus(client, *addr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: bridge not reachable at %s: %v\n", *addr, err)
		return 1
	}

	if *jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(st)
		return 0
	}

	fmt.Fprintf(stdout, "Bridge:  %s\n", *addr)
	fmt.Fprintf(stdout, "Device:  %s (state %d)\n", st.Status, st.State)

	services, err := fetchServices(client, *addr)
	if err == nil {
		fmt.Fprintf(stdout, "Paired services: %d\n", len(services.Services))
	}
	return 0
}

func fetchStatus(client *http.Client, addr string) (*bridgeStatus, error) {
	resp, err := client.Get("http://" + addr + "/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var st bridgeStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &st, nil
}

func fetchServices(client *http.Client, addr string) (*bridgeServices, error) {
	resp, err := client.Get("http://" + addr + "/services")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var services bridgeServices
	if err := json.NewDecoder(resp.Body).Decode(&services); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &services, nil
}
