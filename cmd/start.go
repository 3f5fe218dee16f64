package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/keybridge/keybridge/internal/config"
	"github.com/keybridge/keybridge/internal/device"
	"github.com/keybridge/keybridge/internal/mdns"
	"github.com/keybridge/keybridge/internal/server"
	"github.com/keybridge/keybridge/internal/storage"
)

// runStart implements "keybridge start": the bridge daemon.
//
// Startup order matters: the listener binds before the device status is
// flipped to bridge-online, so a port conflict reports the error state
// instead of a false "online". UI notifications raised before the UI
// connects are queued and flushed on its "@app/start" signal.
func runStart(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(stderr)

	addr := fs.String("addr", "", "Listen address (default: "+config.DefaultAddr+")")
	configPath := fs.String("config", "", "Path to config file (default: ~/.keybridge/config.toml)")
	storePath := fs.String("store", "", "Path to the pairing database (default: ~/.keybridge/keybridge.db)")
	enableMdns := fs.Bool("mdns", false, "Advertise the bridge via mDNS/Bonjour")
	pairTimeout := fs.Int("pair-timeout", -1, "Seconds before a pairing prompt expires (0 = never, default from config)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: keybridge start [options]

Start the bridge daemon. External wallet apps reach it over HTTP on the
loopback address; the desktop UI connects over WebSocket at /ws.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Flags override file values.
	if *addr != "" {
		cfg.Addr = *addr
	}
	if cfg.Addr == "" {
		cfg.Addr = config.DefaultAddr
	}
	if *storePath != "" {
		cfg.Store = *storePath
	}
	if cfg.Store == "" {
		cfg.Store, err = config.DefaultStorePath()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	if *enableMdns {
		cfg.MdnsEnabled = true
	}
	if *pairTimeout >= 0 {
		cfg.PairTimeoutSeconds = *pairTimeout
	}
	if cfg.PairRatePerMinute == 0 {
		cfg.PairRatePerMinute = config.DefaultPairRatePerMinute
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store), 0o700); err != nil {
		fmt.Fprintf(stderr, "Error: failed to create data directory: %v\n", err)
		return 1
	}
	store, err := storage.NewSQLiteStore(cfg.Store)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to open store: %v\n", err)
		return 1
	}
	defer store.Close()

	srv := server.NewServer(cfg.Addr, cfg.PairRatePerMinute)
	srv.SetStore(store)

	machine := device.NewStateMachine(srv.Router().Notify)
	srv.SetDeviceState(machine)
	srv.ConfigureBroker(time.Duration(cfg.PairTimeoutSeconds) * time.Second)

	// The UI process hosts the USB stack; its relayed events feed the
	// controller stream, which the listener folds into the state machine.
	controller := device.NewChannelController()
	srv.SetHardwareSink(func(ev device.Event) { controller.Emit(ev) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := device.NewListener(machine, controller)
	go func() {
		if err := listener.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("device listener stopped: %v", err)
		}
	}()

	if err := <-srv.StartAsync(); err != nil {
		machine.SetStatus(device.StateError, device.StatusText(device.StateError))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	machine.SetStatus(device.StateBridgeOnline, device.StatusText(device.StateBridgeOnline))
	srv.Router().Send(server.NewPlaySoundMessage("success"))
	srv.Router().Notify(device.NotifyCloseHardwareError, nil)

	var advertiser *mdns.Advertiser
	if cfg.MdnsEnabled {
		port := portOf(cfg.Addr)
		advertiser = mdns.NewAdvertiser(mdns.Config{Port: port})
		if err := advertiser.Start(); err != nil {
			// Discovery is a convenience; the bridge works without it.
			log.Printf("mdns advertisement failed: %v", err)
		} else {
			fmt.Fprintf(stdout, "mDNS: advertising as %s\n", mdns.ServiceType)
		}
	}

	fmt.Fprintf(stdout, "keybridge listening on %s\n", cfg.Addr)
	fmt.Fprintf(stdout, "Store: %s\n", cfg.Store)
	fmt.Fprintln(stdout, "UI channel: ws://"+cfg.Addr+"/ws")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigCh
	fmt.Fprintf(stdout, "\nReceived signal %v, stopping...\n", sig)

	machine.SetStatus(device.StateConnected, device.StatusText(device.StateConnected))
	cancel()
	controller.Close()
	if advertiser != nil {
		advertiser.Stop()
	}
	if err := srv.Stop(); err != nil {
		fmt.Fprintf(stderr, "Error during shutdown: %v\n", err)
		return 1
	}
	return 0
}
