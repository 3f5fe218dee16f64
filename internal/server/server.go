package server

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/keybridge/keybridge/internal/device"
	apperrors "github.com/keybridge/keybridge/internal/errors"
	"github.com/keybridge/keybridge/internal/storage"
)

// channelBufferSize is the buffer size for the broadcast channel and
// per-client send channels. It absorbs bursts of notifications without
// blocking senders; a full buffer drops messages for that client.
const channelBufferSize = 256

// Store is the slice of the pairing store the server surfaces to UI
// clients (service list management, the origin cache, and the pairing
// broker's needs). *storage.SQLiteStore satisfies it.
type Store interface {
	ServiceStore
	ListServices() ([]*storage.Service, error)
	RemoveService(serviceName, serviceKey string) (int, error)
	ApproveOrigin(origin *storage.Origin) error
	ListOrigins() ([]*storage.Origin, error)
}

// Server is the local bridge surface: the REST endpoints external
// applications call and the WebSocket channel the desktop UI connects
// to. It binds to loopback only; pairing approval, not transport
// authentication, is the trust boundary.
type Server struct {
	// addr is the loopback address to listen on, e.g. "127.0.0.1:1646".
	addr string

	upgrader websocket.Upgrader

	// clients tracks connected UI clients. Guarded by mu.
	clients map[*Client]bool

	// mu protects clients and stopped.
	mu sync.RWMutex

	// stopped prevents broadcasts after shutdown closed the channel.
	stopped bool

	// broadcast receives messages to fan out to every UI client.
	broadcast chan Message

	httpServer *http.Server

	// router queues or delivers UI notifications (readiness handling).
	router *Router

	// broker runs the pairing handshake for POST /pair.
	broker *Broker

	// machine is the device state machine, read by /status and /device
	// and written by "@keepkey/info" messages.
	machine *device.StateMachine

	// store backs service list management and the origin cache.
	store Store

	// hardwareSink receives parsed controller events relayed by the UI.
	// Set before StartAsync; typically the channel controller's Emit.
	hardwareSink func(device.Event)

	// pairLimiter throttles pairing prompts so a misbehaving local app
	// cannot flood the user with modals.
	pairLimiter *rate.Limiter

	startedAt time.Time
}

// Client is one connected UI WebSocket. Each client gets its own write
// goroutine so a slow UI never blocks the broadcaster.
type Client struct {
	conn *websocket.Conn

	// send is the buffered outgoing queue drained by writePump.
	send chan Message

	// done is closed to signal shutdown. Senders check done before
	// sending; only done is closed, never send, to avoid racing with
	// in-flight sends.
	done chan struct{}

	// closeOnce ensures done is closed exactly once; both Stop and
	// readPump may try.
	closeOnce sync.Once

	server *Server
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// NewServer creates the bridge server. Call SetStore, SetDeviceState and
// SetPairTimeout as needed, then StartAsync.
func NewServer(addr string, ratePerMinute int) *Server {
	s := &Server{
		addr:      addr,
		clients:   make(map[*Client]bool),
		broadcast: make(chan Message, channelBufferSize),
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI connects from a file:// or app:// origin; the
			// pairing flow is the trust boundary, not the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = NewRouter(s)
	if ratePerMinute > 0 {
		s.pairLimiter = rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), ratePerMinute)
	}
	return s
}

// SetStore attaches the pairing store. Must be called before StartAsync.
func (s *Server) SetStore(store Store) {
	s.store = store
}

// SetDeviceState attaches the device state machine backing /status and
// /device. Must be called before StartAsync.
func (s *Server) SetDeviceState(machine *device.StateMachine) {
	s.machine = machine
}

// SetHardwareSink sets the destination for controller events relayed
// over the UI channel. Must be called before StartAsync.
func (s *Server) SetHardwareSink(sink func(device.Event)) {
	s.hardwareSink = sink
}

// ConfigureBroker creates the pairing broker. timeout of zero disables
// prompt expiry. Must be called before StartAsync.
func (s *Server) ConfigureBroker(timeout time.Duration) {
	s.broker = NewBroker(s.store, s.router, func() bool {
		return s.ClientCount() > 0
	}, timeout)
}

// Router returns the notification router; subsystems inject its Notify
// method as their notifier.
func (s *Server) Router() *Router {
	return s.router
}

// Broker returns the pairing broker, mainly for tests.
func (s *Server) Broker() *Broker {
	return s.broker
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Uptime reports how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// createMux wires the REST endpoints and the UI WebSocket.
func (s *Server) createMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/device", s.handleDevice)
	mux.HandleFunc("/pair", s.handlePair)
	mux.HandleFunc("/services", s.handleServices)

	return mux
}

// StartAsync binds the listener first so a port conflict is reported
// immediately, then serves in a goroutine. The returned channel receives
// nil once the server is accepting connections, or the bind error.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		errCh <- apperrors.BindFailed(s.addr, err)
		close(errCh)
		return errCh
	}

	s.httpServer = &http.Server{Handler: s.createMux()}

	go s.runBroadcaster()

	go func() {
		log.Printf("server: listening on %s", s.addr)
		errCh <- nil
		close(errCh)

		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	return errCh
}

// Stop shuts the server down: close frames to every UI client, then the
// broadcast channel, then the HTTP listener.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true

	for client := range s.clients {
		client.closeSend()
	}
	s.clients = make(map[*Client]bool)

	// Safe to close now: Broadcast holds the read lock while sending,
	// and checks stopped first.
	close(s.broadcast)
	s.mu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// Broadcast queues a message for delivery to all connected UI clients.
// Non-blocking; drops the message with a warning if the queue is full.
func (s *Server) Broadcast(msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return
	}

	select {
	case s.broadcast <- msg:
	default:
		log.Printf("server: broadcast channel full, dropping %s", msg.Type)
	}
}

// ClientCount returns the number of connected UI clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// runBroadcaster fans broadcast messages out to every client. Slow
// clients get messages dropped rather than stalling the rest.
func (s *Server) runBroadcaster() {
	for msg := range s.broadcast {
		s.mu.RLock()
		for client := range s.clients {
			select {
			case <-client.done:
			case client.send <- msg:
			default:
				log.Printf("server: client send buffer full, dropping %s", msg.Type)
			}
		}
		s.mu.RUnlock()
	}
}

// handleWebSocket upgrades a UI connection and starts its pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan Message, channelBufferSize),
		done:   make(chan struct{}),
		server: s,
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	log.Printf("server: UI client connected (%d total)", s.ClientCount())

	go client.writePump()
	go client.readPump()
}
