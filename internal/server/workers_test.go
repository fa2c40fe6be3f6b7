package server

import (
	"context"
	"testing"
	"time"

	"github.com/ssd-technologies/cumulus/internal/notify"
	"github.com/ssd-technologies/cumulus/internal/storage"
)

func TestSweepBlobs(t *testing.T) {
	store, u := setupTestStore(t, 1000)
	srv := New(store, u.ID)
	f := uploadTestFile(t, srv, "live.txt", "live", "")

	ctx := context.Background()
	if err := store.Blobs().Put(ctx, "orphan", []byte("left behind")); err != nil {
		t.Fatalf("put orphan: %v", err)
	}

	srv.sweepBlobs(ctx) // marks
	srv.sweepBlobs(ctx) // deletes

	keys, err := store.Blobs().Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("blobs after sweep = %v, want only the live blob", keys)
	}
	if _, data, err := store.Content(ctx, f.ID); err != nil || string(data) != "live" {
		t.Fatalf("live content = %q, %v", data, err)
	}
}

func TestReconcileQuota_NoDrift(t *testing.T) {
	store, u := setupTestStore(t, 1000)
	srv := New(store, u.ID)
	uploadTestFile(t, srv, "a.txt", "abc", "")

	events, cancel := srv.Hub().Subscribe()
	defer cancel()

	srv.reconcileQuota(context.Background())

	q, err := store.Quota(u.ID)
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}
	if q.UsedBytes != 3 {
		t.Fatalf("usedBytes = %d, want 3", q.UsedBytes)
	}
	select {
	case e := <-events:
		t.Fatalf("unexpected event %+v without drift", e)
	default:
	}
}

func TestReconcileQuota_UnregisteredOwner(t *testing.T) {
	store := storage.New()
	// The ledger record for an unregistered owner is created with its
	// first file and stays in sync.
	if _, err := store.CreateFile(storage.NewFile{Name: "x", MimeType: "text/plain", Size: 5, OwnerID: 42, ContentID: "c1"}); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	srv := New(store, 42)

	events, cancel := srv.Hub().Subscribe()
	defer cancel()
	srv.reconcileQuota(context.Background())

	q, err := store.Quota(42)
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}
	if q.UsedBytes != 5 {
		t.Fatalf("usedBytes = %d, want 5", q.UsedBytes)
	}
	select {
	case e := <-events:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestStartWorkers_SweepsUntilCancelled(t *testing.T) {
	store, u := setupTestStore(t, 1000)
	srv := New(store, u.ID, WithWorkerIntervals(time.Hour, 10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := store.Blobs().Put(ctx, "orphan", []byte("x")); err != nil {
		t.Fatalf("put orphan: %v", err)
	}
	srv.StartWorkers(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		keys, err := store.Blobs().Keys(ctx)
		if err != nil {
			t.Fatalf("keys: %v", err)
		}
		if len(keys) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("orphan blob not swept: %v", keys)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubOption(t *testing.T) {
	hub := notify.NewHub(1)
	store, u := setupTestStore(t, 1000)
	srv := New(store, u.ID, WithHub(hub))
	if srv.Hub() != hub {
		t.Fatal("WithHub not applied")
	}
}
