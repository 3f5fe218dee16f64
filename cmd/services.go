package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/keybridge/keybridge/internal/config"
	"github.com/keybridge/keybridge/internal/storage"
)

// openStore opens the pairing database named by --store or the default
// location. The CLI reads the database directly; the daemon need not be
// running.
func openStore(storePath string, stderr io.Writer) (*storage.SQLiteStore, bool) {
	path := storePath
	if path == "" {
		var err error
		path, err = config.DefaultStorePath()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return nil, false
		}
	}
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to open store at %s: %v\n", path, err)
		return nil, false
	}
	return store, true
}

// runServicesList implements "keybridge services list".
func runServicesList(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("services list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	storePath := fs.String("store", "", "Path to the pairing database")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	store, ok := openStore(*storePath, stderr)
	if !ok {
		return 1
	}
	defer store.Close()

	services, err := store.ListServices()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if len(services) == 0 {
		fmt.Fprintln(stdout, "No paired services.")
		return 0
	}

	fmt.Fprintf(stdout, "%-30s %-20s\n", "SERVICE", "PAIRED ON")
	for _, svc := range services {
		fmt.Fprintf(stdout, "%-30s %-20s\n", svc.ServiceName, svc.AddedOn.Format("2006-01-02 15:04:05"))
	}
	return 0
}

// runServicesRemove implements "keybridge services remove <name>".
func runServicesRemove(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("services remove", flag.ContinueOnError)
	fs.SetOutput(stderr)
	storePath := fs.String("store", "", "Path to the pairing database")
	key := fs.String("key", "", "Remove only the record with this service key")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	remaining := fs.Args()
	if len(remaining) < 1 {
		fmt.Fprintln(stderr, "Usage: keybridge services remove <name> [--key <key>]")
		return 1
	}
	name := remaining[0]

	store, ok := openStore(*storePath, stderr)
	if !ok {
		return 1
	}
	defer store.Close()

	removed, err := store.RemoveService(name, *key)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if removed == 0 {
		fmt.Fprintf(stdout, "No paired service named %q.\n", name)
		return 1
	}
	fmt.Fprintf(stdout, "Removed %d record(s) for %q.\n", removed, name)
	return 0
}
