// Package mdns provides optional mDNS/Bonjour advertisement of the
// bridge on the local network.
//
// When enabled, companion apps on the same network can discover a
// running bridge without typing an address. Discovery only reveals
// presence; the pairing approval flow still gates wallet access.
package mdns

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type for keybridge daemons.
const ServiceType = "_keybridge._tcp"

// ProtocolVersion identifies the advertisement format for compatibility.
const ProtocolVersion = "1"

// Config holds configuration for mDNS advertisement.
type Config struct {
	// Port is the bridge port to advertise (e.g., 1646).
	Port int

	// Name is a human-readable name for this bridge.
	// Defaults to the system hostname if empty.
	Name string
}

// Advertiser manages the DNS-SD registration lifecycle.
type Advertiser struct {
	config Config
	server *zeroconf.Server
	mu     sync.Mutex
}

// NewAdvertiser creates an mDNS advertiser with the given configuration.
func NewAdvertiser(cfg Config) *Advertiser {
	return &Advertiser{config: cfg}
}

// Start registers the service. Safe to call more than once; a running
// advertiser is left alone.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	name := a.config.Name
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			name = "keybridge"
		} else {
			name = hostname
		}
	}

	txtRecords := []string{
		fmt.Sprintf("version=%s", ProtocolVersion),
		fmt.Sprintf("name=%s", name),
	}

	server, err := zeroconf.Register(
		name,
		ServiceType,
		"local.",
		a.config.Port,
		txtRecords,
		nil, // all interfaces
	)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	a.server = server
	return nil
}

// Stop unregisters the service. Safe to call repeatedly or on an
// advertiser that never started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// IsRunning reports whether the advertisement is active.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// DiscoveredBridge is one bridge found on the local network.
type DiscoveredBridge struct {
	// Name is the human-readable bridge name.
	Name string

	// Host is the IP address or hostname.
	Host string

	// Port is the bridge port.
	Port int

	// Version is the advertisement format version.
	Version string
}

// Discover browses the local network for running bridges until ctx
// expires. Used by the doctor command; companion apps use their
// platform's native discovery.
func Discover(ctx context.Context) ([]DiscoveredBridge, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	var (
		bridges []DiscoveredBridge
		mu      sync.Mutex
		wg      sync.WaitGroup
	)

	entries := make(chan *zeroconf.ServiceEntry)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			bridge := DiscoveredBridge{
				Name: entry.Instance,
				Port: entry.Port,
			}

			if len(entry.AddrIPv4) > 0 {
				bridge.Host = entry.AddrIPv4[0].String()
			} else if len(entry.AddrIPv6) > 0 {
				bridge.Host = entry.AddrIPv6[0].String()
			}

			for _, txt := range entry.Text {
				switch {
				case strings.HasPrefix(txt, "version="):
					bridge.Version = strings.TrimPrefix(txt, "version=")
				case strings.HasPrefix(txt, "name="):
					bridge.Name = strings.TrimPrefix(txt, "name=")
				}
			}

			mu.Lock()
			bridges = append(bridges, bridge)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	// zeroconf closes the entries channel when the context ends.
	<-ctx.Done()
	wg.Wait()

	return bridges, nil
}
