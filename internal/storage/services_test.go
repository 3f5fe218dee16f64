package storage

import (
	"sync"
	"testing"
	"time"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFindService_NotPaired(t *testing.T) {
	store := newTestStore(t)

	service, err := store.FindService("Acme", "key123")
	if err != nil {
		t.Fatalf("FindService: %v", err)
	}
	if service != nil {
		t.Errorf("expected nil for unpaired service, got %+v", service)
	}
}

func TestInsertAndFindService(t *testing.T) {
	store := newTestStore(t)

	added := time.Now()
	err := store.InsertService(&Service{
		ServiceName:     "Acme",
		ServiceImageURL: "http://x/y.png",
		ServiceKey:      "key123",
		AddedOn:         added,
	})
	if err != nil {
		t.Fatalf("InsertService: %v", err)
	}

	found, err := store.FindService("Acme", "key123")
	if err != nil {
		t.Fatalf("FindService: %v", err)
	}
	if found == nil {
		t.Fatal("expected service to be found")
	}
	if found.ServiceImageURL != "http://x/y.png" {
		t.Errorf("ServiceImageURL = %q", found.ServiceImageURL)
	}
	if !found.AddedOn.Equal(added) {
		t.Errorf("AddedOn = %v, want %v", found.AddedOn, added)
	}

	// Same name, different key is a different pairing.
	other, err := store.FindService("Acme", "otherkey")
	if err != nil {
		t.Fatalf("FindService: %v", err)
	}
	if other != nil {
		t.Error("different key should not match an existing pairing")
	}
}

func TestInsertService_Idempotent(t *testing.T) {
	store := newTestStore(t)

	svc := &Service{
		ServiceName:     "Acme",
		ServiceImageURL: "http://x/y.png",
		ServiceKey:      "key123",
		AddedOn:         time.Now(),
	}

	if err := store.InsertService(svc); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := store.InsertService(svc); err != nil {
		t.Fatalf("second insert: %v", err)
	}

	services, err := store.ListServices()
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(services) != 1 {
		t.Errorf("expected exactly one row after double insert, got %d", len(services))
	}
}

func TestRemoveService(t *testing.T) {
	store := newTestStore(t)

	for _, key := range []string{"key1", "key2"} {
		err := store.InsertService(&Service{
			ServiceName:     "Acme",
			ServiceImageURL: "http://x/y.png",
			ServiceKey:      key,
			AddedOn:         time.Now(),
		})
		if err != nil {
			t.Fatalf("InsertService: %v", err)
		}
	}

	// Keyed removal only removes the matching pairing.
	removed, err := store.RemoveService("Acme", "key1")
	if err != nil {
		t.Fatalf("RemoveService: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	// Name-only removal removes the rest.
	removed, err = store.RemoveService("Acme", "")
	if err != nil {
		t.Fatalf("RemoveService: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	// Removing a missing service is not an error.
	removed, err = store.RemoveService("Acme", "")
	if err != nil {
		t.Fatalf("RemoveService on empty store: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestListServices_Order(t *testing.T) {
	store := newTestStore(t)

	base := time.Now()
	names := []string{"First", "Second", "Third"}
	for i, name := range names {
		err := store.InsertService(&Service{
			ServiceName:     name,
			ServiceImageURL: "http://x/y.png",
			ServiceKey:      "k",
			AddedOn:         base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("InsertService: %v", err)
		}
	}

	services, err := store.ListServices()
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(services) != 3 {
		t.Fatalf("len = %d, want 3", len(services))
	}
	for i, name := range names {
		if services[i].ServiceName != name {
			t.Errorf("services[%d] = %q, want %q", i, services[i].ServiceName, name)
		}
	}
}

// TestConcurrentWrites exercises the store's internal locking: concurrent
// inserts for distinct pairings must all land.
func TestConcurrentWrites(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := store.InsertService(&Service{
				ServiceName:     "Service",
				ServiceImageURL: "http://x/y.png",
				ServiceKey:      string(rune('a' + n)),
				AddedOn:         time.Now(),
			})
			if err != nil {
				t.Errorf("InsertService: %v", err)
			}
		}(i)
	}
	wg.Wait()

	services, err := store.ListServices()
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(services) != 10 {
		t.Errorf("expected 10 services, got %d", len(services))
	}
}

func TestOrigins(t *testing.T) {
	store := newTestStore(t)

	err := store.ApproveOrigin(&Origin{
		Origin: "https://app.example.com",
		Added:  time.Now(),
	})
	if err != nil {
		t.Fatalf("ApproveOrigin: %v", err)
	}

	o, err := store.GetOrigin("https://app.example.com")
	if err != nil {
		t.Fatalf("GetOrigin: %v", err)
	}
	if o == nil {
		t.Fatal("expected origin to be found")
	}
	if o.IsVerified {
		t.Error("IsVerified should default to false")
	}

	origins, err := store.ListOrigins()
	if err != nil {
		t.Fatalf("ListOrigins: %v", err)
	}
	if len(origins) != 1 {
		t.Errorf("len = %d, want 1", len(origins))
	}

	if err := store.RemoveOrigin("https://app.example.com"); err != nil {
		t.Fatalf("RemoveOrigin: %v", err)
	}
	o, err = store.GetOrigin("https://app.example.com")
	if err != nil {
		t.Fatalf("GetOrigin after remove: %v", err)
	}
	if o != nil {
		t.Error("expected origin to be gone after removal")
	}
}

func TestPairingAudit(t *testing.T) {
	store := newTestStore(t)

	entries := []*PairingAuditEntry{
		{ID: "a1", Nonce: "n1", ServiceName: "Acme", Decision: "approved", DecidedAt: time.Now(), Source: "user"},
		{ID: "a2", Nonce: "n2", ServiceName: "Evil", Decision: "rejected", DecidedAt: time.Now().Add(time.Second), Source: "user"},
	}
	for _, e := range entries {
		if err := store.SavePairingAudit(e); err != nil {
			t.Fatalf("SavePairingAudit: %v", err)
		}
	}

	listed, err := store.ListPairingAudit(0)
	if err != nil {
		t.Fatalf("ListPairingAudit: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("len = %d, want 2", len(listed))
	}
	// Newest first.
	if listed[0].ID != "a2" {
		t.Errorf("listed[0].ID = %q, want a2", listed[0].ID)
	}

	limited, err := store.ListPairingAudit(1)
	if err != nil {
		t.Fatalf("ListPairingAudit(1): %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len = %d, want 1", len(limited))
	}
}
