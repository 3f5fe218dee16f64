package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/keybridge/keybridge/internal/config"
	"github.com/keybridge/keybridge/internal/mdns"
	"github.com/keybridge/keybridge/internal/storage"
)

// runDoctor implements "keybridge doctor": a setup and connectivity
// check for the bridge. Each check prints PASS/FAIL/SKIP; the exit code
// is nonzero if any check fails.
func runDoctor(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", config.DefaultAddr, "Bridge address")
	configPath := fs.String("config", "", "Path to config file")
	discover := fs.Bool("discover", false, "Browse the local network for advertised bridges")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	failures := 0
	check := func(name string, err error) {
		if err != nil {
			failures++
			fmt.Fprintf(stdout, "  FAIL  %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(stdout, "  PASS  %s\n", name)
	}

	fmt.Fprintln(stdout, "keybridge doctor")
	fmt.Fprintln(stdout, "")

	// Config file parses (or is absent, which is fine for the default).
	cfg, err := config.Load(*configPath)
	check("config", err)
	if cfg == nil {
		cfg = &config.Config{}
	}

	// Store opens and migrates.
	storePath := cfg.Store
	if storePath == "" {
		storePath, err = config.DefaultStorePath()
		if err != nil {
			check("store", err)
			storePath = ""
		}
	}
	if storePath != "" {
		if _, statErr := os.Stat(storePath); os.IsNotExist(statErr) {
			fmt.Fprintf(stdout, "  SKIP  store: %s does not exist yet (created on first start)\n", storePath)
		} else {
			store, err := storage.NewSQLiteStore(storePath)
			check("store", err)
			if err == nil {
				services, listErr := store.ListServices()
				if listErr == nil {
					fmt.Fprintf(stdout, "        %d paired service(s)\n", len(services))
				}
				store.Close()
			}
		}
	}

	// Daemon reachable.
	bridgeAddr := cfg.Addr
	if *addr != config.DefaultAddr || bridgeAddr == "" {
		bridgeAddr = *addr
	}
	client := &http.Client{Timeout: 3 * time.Second}
	st, err := fetchStatus(client, bridgeAddr)
	if err != nil {
		fmt.Fprintf(stdout, "  SKIP  daemon: not running at %s\n", bridgeAddr)
	} else {
		check("daemon", nil)
		fmt.Fprintf(stdout, "        device: %s (state %d)\n", st.Status, st.State)
	}

	// Optional mDNS browse.
	if *discover {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		bridges, err := mdns.Discover(ctx)
		cancel()
		check("mdns discovery", err)
		for _, b := range bridges {
			fmt.Fprintf(stdout, "        found %s at %s:%d\n", b.Name, b.Host, b.Port)
		}
	}

	fmt.Fprintln(stdout, "")
	if failures > 0 {
		fmt.Fprintf(stdout, "%d check(s) failed.\n", failures)
		return 1
	}
	fmt.Fprintln(stdout, "All checks passed.")
	return 0
}
