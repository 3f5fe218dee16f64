package server

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/keybridge/keybridge/internal/errors"
	"github.com/keybridge/keybridge/internal/storage"
)

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// newTestBroker wires a broker to a ready router and a recording
// broadcaster so tests can read the issued nonce off the prompt.
func newTestBroker(t *testing.T, reachable bool, timeout time.Duration) (*Broker, *storage.SQLiteStore, *recordingBroadcaster) {
	t.Helper()
	store := newTestStore(t)
	rec := &recordingBroadcaster{}
	router := NewRouter(rec)
	router.AppStarted()
	broker := NewBroker(store, router, func() bool { return reachable }, timeout)
	return broker, store, rec
}

// promptNonce waits for the pairing prompt to appear and returns its nonce.
func promptNonce(t *testing.T, rec *recordingBroadcaster) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for _, msg := range rec.all() {
			if msg.Type == MessageTypePairPrompt {
				return msg.Payload.(PairPromptPayload).Nonce
			}
		}
		select {
		case <-deadline:
			t.Fatal("pairing prompt never sent")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPair_MissingBody(t *testing.T) {
	broker, _, _ := newTestBroker(t, true, 0)
	_, err := broker.Pair(context.Background(), "", "http://x/y.png", "key")
	if !apperrors.IsCode(err, apperrors.CodePairingMissingBody) {
		t.Fatalf("expected missing-body error, got %v", err)
	}
	if got := apperrors.GetMessage(err); got != "Missing body parameters" {
		t.Fatalf("unexpected reason: %q", got)
	}
}

func TestPair_WindowNotOpen(t *testing.T) {
	broker, store, rec := newTestBroker(t, false, 0)
	_, err := broker.Pair(context.Background(), "Acme", "http://x/y.png", "key123")
	if !apperrors.IsCode(err, apperrors.CodePairingWindowClosed) {
		t.Fatalf("expected window-closed error, got %v", err)
	}
	if got := apperrors.GetMessage(err); got != "Window not open" {
		t.Fatalf("unexpected reason: %q", got)
	}
	// No prompt, no store mutation.
	if len(rec.all()) != 0 {
		t.Fatal("prompt should not be sent when the UI is unreachable")
	}
	services, _ := store.ListServices()
	if len(services) != 0 {
		t.Fatal("store should be untouched")
	}
}

func TestPair_AlreadyPaired(t *testing.T) {
	broker, store, rec := newTestBroker(t, true, 0)
	if err := store.InsertService(&storage.Service{ServiceName: "Acme", ServiceKey: "key123"}); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	alreadyPaired, err := broker.Pair(context.Background(), "Acme", "http://x/y.png", "key123")
	if err != nil {
		t.Fatalf("expected idempotent success, got %v", err)
	}
	if !alreadyPaired {
		t.Fatal("existing pairing must be reported as already paired")
	}
	if len(rec.all()) != 0 {
		t.Fatal("no prompt expected for an already-paired service")
	}

	services, _ := store.ListServices()
	if len(services) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(services))
	}
}

func TestPair_ApproveFlow(t *testing.T) {
	broker, store, rec := newTestBroker(t, true, 0)

	errc := make(chan error, 1)
	go func() {
		_, err := broker.Pair(context.Background(), "Acme", "http://x/y.png", "key123")
		errc <- err
	}()

	nonce := promptNonce(t, rec)
	if err := broker.Resolve(nonce, true); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pair call never returned")
	}

	svc, err := store.FindService("Acme", "key123")
	if err != nil || svc == nil {
		t.Fatalf("approved service not persisted: svc=%v err=%v", svc, err)
	}
	if broker.PendingCount() != 0 {
		t.Fatal("decision channel should be torn down")
	}
}

func TestPair_RejectNeverPersists(t *testing.T) {
	broker, store, rec := newTestBroker(t, true, 0)

	errc := make(chan error, 1)
	go func() {
		_, err := broker.Pair(context.Background(), "Acme", "http://x/y.png", "key123")
		errc <- err
	}()

	nonce := promptNonce(t, rec)
	if err := broker.Resolve(nonce, false); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	err := <-errc
	if !apperrors.IsCode(err, apperrors.CodePairingRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if got := apperrors.GetMessage(err); got != "Pairing was rejected by user" {
		t.Fatalf("unexpected reason: %q", got)
	}

	svc, _ := store.FindService("Acme", "key123")
	if svc != nil {
		t.Fatal("rejected pairing must not persist")
	}
}

func TestPair_NonceIsolation(t *testing.T) {
	broker, store, rec := newTestBroker(t, true, 0)

	errA := make(chan error, 1)
	go func() { _, err := broker.Pair(context.Background(), "ServiceA", "http://a/a.png", "keyA"); errA <- err }()
	nonceA := promptNonce(t, rec)

	errB := make(chan error, 1)
	go func() { _, err := broker.Pair(context.Background(), "ServiceB", "http://b/b.png", "keyB"); errB <- err }()

	// Wait for the second prompt and pick out its nonce.
	var nonceB string
	deadline := time.After(2 * time.Second)
	for nonceB == "" {
		for _, msg := range rec.all() {
			if msg.Type == MessageTypePairPrompt {
				if n := msg.Payload.(PairPromptPayload).Nonce; n != nonceA {
					nonceB = n
				}
			}
		}
		select {
		case <-deadline:
			t.Fatal("second prompt never sent")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Approving A must not resolve B.
	if err := broker.Resolve(nonceA, true); err != nil {
		t.Fatalf("resolve A failed: %v", err)
	}
	if err := <-errA; err != nil {
		t.Fatalf("request A should succeed: %v", err)
	}

	select {
	case err := <-errB:
		t.Fatalf("request B resolved by A's approval: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	if err := broker.Resolve(nonceB, false); err != nil {
		t.Fatalf("resolve B failed: %v", err)
	}
	if err := <-errB; !apperrors.IsCode(err, apperrors.CodePairingRejected) {
		t.Fatalf("request B should be rejected: %v", err)
	}

	if svc, _ := store.FindService("ServiceB", "keyB"); svc != nil {
		t.Fatal("service B must not be persisted")
	}
}

func TestPair_StaleDecisionIsNoOp(t *testing.T) {
	broker, _, _ := newTestBroker(t, true, 0)
	err := broker.Resolve("no-such-nonce", true)
	if !apperrors.IsCode(err, apperrors.CodePairingNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestPair_DuplicateDecisionIgnored(t *testing.T) {
	broker, _, rec := newTestBroker(t, true, 0)

	errc := make(chan error, 1)
	go func() { _, err := broker.Pair(context.Background(), "Acme", "http://x/y.png", "key123"); errc <- err }()
	nonce := promptNonce(t, rec)

	if err := broker.Resolve(nonce, true); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	// Late duplicate for the same nonce.
	if err := broker.Resolve(nonce, false); !apperrors.IsCode(err, apperrors.CodePairingNotFound) {
		t.Fatalf("duplicate decision should be a no-op, got %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("approval outcome changed by late duplicate: %v", err)
	}
}

func TestPair_ApproveAfterCallerDisconnect(t *testing.T) {
	broker, store, rec := newTestBroker(t, true, 0)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { _, err := broker.Pair(ctx, "Acme", "http://x/y.png", "key123"); errc <- err }()
	nonce := promptNonce(t, rec)

	cancel()
	if err := <-errc; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The decision still lands: the approval persists the service even
	// though the HTTP caller is gone.
	if err := broker.Resolve(nonce, true); err != nil {
		t.Fatalf("resolve after disconnect failed: %v", err)
	}
	if svc, _ := store.FindService("Acme", "key123"); svc == nil {
		t.Fatal("approval after disconnect must still persist")
	}
}

func TestPair_ExpiryWhenConfigured(t *testing.T) {
	broker, store, rec := newTestBroker(t, true, 50*time.Millisecond)

	errc := make(chan error, 1)
	go func() { _, err := broker.Pair(context.Background(), "Acme", "http://x/y.png", "key123"); errc <- err }()
	promptNonce(t, rec)

	select {
	case err := <-errc:
		if !apperrors.IsCode(err, apperrors.CodePairingExpired) {
			t.Fatalf("expected expiry, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt never expired")
	}

	if svc, _ := store.FindService("Acme", "key123"); svc != nil {
		t.Fatal("expired pairing must not persist")
	}
	if broker.PendingCount() != 0 {
		t.Fatal("expired prompt should be deregistered")
	}
}

func TestPair_AuditTrail(t *testing.T) {
	broker, store, rec := newTestBroker(t, true, 0)

	errc := make(chan error, 1)
	go func() { _, err := broker.Pair(context.Background(), "Acme", "http://x/y.png", "key123"); errc <- err }()
	nonce := promptNonce(t, rec)
	broker.Resolve(nonce, true)
	<-errc

	entries, err := store.ListPairingAudit(10)
	if err != nil {
		t.Fatalf("audit list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}
	if entries[0].Decision != "approved" || entries[0].Nonce != nonce || entries[0].Source != "user" {
		t.Fatalf("unexpected audit entry: %+v", entries[0])
	}
}
