package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/keybridge/keybridge/internal/errors"
	"github.com/keybridge/keybridge/internal/storage"
)

// ServiceStore is the slice of the pairing store the broker needs.
// *storage.SQLiteStore satisfies it.
type ServiceStore interface {
	FindService(serviceName, serviceKey string) (*storage.Service, error)
	InsertService(service *storage.Service) error
	SavePairingAudit(entry *storage.PairingAuditEntry) error
}

// decision is the terminal outcome of one pairing prompt.
type decision struct {
	outcome string // "approved", "rejected", or "expired"
	err     error  // persistence failure on approve
}

// pendingPair is one outstanding pairing prompt awaiting a user decision.
type pendingPair struct {
	nonce           string
	serviceName     string
	serviceImageURL string
	serviceKey      string

	// done carries exactly one decision. Buffered so the resolver never
	// blocks even when the HTTP caller has already disconnected.
	done chan decision

	// expiry cancels the optional per-nonce expiration timer.
	expiry *time.Timer
}

// Broker owns the pairing handshake: it maps each issued nonce to a
// single-use decision channel, prompts the UI, and suspends the HTTP
// caller until the user decides. Exactly one decision is honored per
// nonce; the mapping is removed atomically with the first signal so a
// duplicate or stale signal is a no-op.
type Broker struct {
	mu      sync.Mutex
	pending map[string]*pendingPair

	store  ServiceStore
	router *Router

	// uiReachable reports whether the UI surface can show a prompt.
	// Checked before any state is mutated.
	uiReachable func() bool

	// timeout bounds how long a prompt may stay pending. Zero disables
	// expiry: a prompt then waits indefinitely for the user.
	timeout time.Duration
}

// NewBroker creates a pairing broker. timeout of zero means prompts
// never expire.
func NewBroker(store ServiceStore, router *Router, uiReachable func() bool, timeout time.Duration) *Broker {
	if uiReachable == nil {
		uiReachable = func() bool { return false }
	}
	return &Broker{
		pending:     make(map[string]*pendingPair),
		store:       store,
		router:      router,
		uiReachable: uiReachable,
		timeout:     timeout,
	}
}

// PendingCount reports the number of prompts awaiting a decision.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Pair runs the full pairing handshake for one caller.
//
// Returns (false, nil) when the user approves, and (true, nil) when the
// service is already paired so the caller can report the idempotent
// outcome distinctly. A caller disconnect (ctx cancellation) does not
// cancel the prompt: the user's decision is still honored when it
// arrives, it just has no receiver. The ctx error is returned so the
// HTTP handler can stop waiting.
func (b *Broker) Pair(ctx context.Context, serviceName, serviceImageURL, serviceKey string) (alreadyPaired bool, err error) {
	if serviceName == "" || serviceImageURL == "" {
		return false, apperrors.PairingMissingBody()
	}
	if !b.uiReachable() {
		return false, apperrors.PairingWindowClosed()
	}

	existing, err := b.store.FindService(serviceName, serviceKey)
	if err != nil {
		return false, apperrors.Internal("pairing lookup failed", err)
	}
	if existing != nil {
		log.Printf("pairing: %q already paired", serviceName)
		return true, nil
	}

	pending := b.register(serviceName, serviceImageURL, serviceKey)

	log.Printf("pairing: prompting user for %q (nonce %s)", serviceName, pending.nonce)
	b.router.Send(NewPairPromptMessage(serviceName, serviceImageURL, pending.nonce))

	select {
	case d := <-pending.done:
		switch d.outcome {
		case "approved":
			if d.err != nil {
				return false, d.err
			}
			return false, nil
		case "expired":
			return false, apperrors.PairingExpired(pending.nonce)
		default:
			return false, apperrors.PairingRejected(pending.nonce)
		}
	case <-ctx.Done():
		// Caller gave up. The prompt stays registered so a later
		// decision still persists (or audits) normally.
		log.Printf("pairing: caller disconnected before decision (nonce %s)", pending.nonce)
		return false, ctx.Err()
	}
}

// register creates the nonce, the decision channel, and the optional
// expiry timer, and publishes the mapping.
func (b *Broker) register(serviceName, serviceImageURL, serviceKey string) *pendingPair {
	pending := &pendingPair{
		nonce:           uuid.NewString(),
		serviceName:     serviceName,
		serviceImageURL: serviceImageURL,
		serviceKey:      serviceKey,
		done:            make(chan decision, 1),
	}

	b.mu.Lock()
	b.pending[pending.nonce] = pending
	b.mu.Unlock()

	if b.timeout > 0 {
		pending.expiry = time.AfterFunc(b.timeout, func() { b.expire(pending.nonce) })
	}
	return pending
}

// take atomically removes and returns the pending prompt for nonce.
// Returns nil when the nonce is unknown (already decided, expired, or
// never issued).
func (b *Broker) take(nonce string) *pendingPair {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending, ok := b.pending[nonce]
	if !ok {
		return nil
	}
	// The map key and the prompt's own nonce must agree. This is the
	// comparison that decides whether a signal resolves this request.
	if pending.nonce != nonce {
		return nil
	}
	delete(b.pending, nonce)
	return pending
}

// Resolve applies a user decision for nonce. The persistence write
// happens here, before success is reported, so an approval arriving
// after the HTTP caller disconnected still pairs the service.
// A nonce with no pending prompt is a no-op returning not-found.
func (b *Broker) Resolve(nonce string, approved bool) error {
	pending := b.take(nonce)
	if pending == nil {
		log.Printf("pairing: ignoring stale decision for nonce %s", nonce)
		return apperrors.PairingNotFound(nonce)
	}
	if pending.expiry != nil {
		pending.expiry.Stop()
	}

	if !approved {
		log.Printf("pairing: user rejected %q (nonce %s)", pending.serviceName, nonce)
		b.audit(pending, "rejected", "user")
		pending.done <- decision{outcome: "rejected"}
		return nil
	}

	service := &storage.Service{
		ServiceName:     pending.serviceName,
		ServiceImageURL: pending.serviceImageURL,
		ServiceKey:      pending.serviceKey,
		AddedOn:         time.Now(),
	}
	var persistErr error
	if err := b.store.InsertService(service); err != nil {
		log.Printf("pairing: failed to persist approved service %q: %v", pending.serviceName, err)
		persistErr = apperrors.SaveFailed("paired service", err)
	} else {
		log.Printf("pairing: user approved %q (nonce %s)", pending.serviceName, nonce)
		b.audit(pending, "approved", "user")
	}

	pending.done <- decision{outcome: "approved", err: persistErr}
	return persistErr
}

// expire resolves a pending prompt as expired when its timer fires.
func (b *Broker) expire(nonce string) {
	pending := b.take(nonce)
	if pending == nil {
		return
	}
	log.Printf("pairing: prompt for %q expired (nonce %s)", pending.serviceName, nonce)
	b.audit(pending, "expired", "timeout")
	pending.done <- decision{outcome: "expired"}
}

// audit records the decision for later inspection. Audit failures are
// logged only; they never affect the pairing outcome.
func (b *Broker) audit(pending *pendingPair, outcome, source string) {
	entry := &storage.PairingAuditEntry{
		ID:          uuid.NewString(),
		Nonce:       pending.nonce,
		ServiceName: pending.serviceName,
		Decision:    outcome,
		DecidedAt:   time.Now(),
		Source:      source,
	}
	if err := b.store.SavePairingAudit(entry); err != nil {
		log.Printf("pairing: audit write failed: %v", err)
	}
}
