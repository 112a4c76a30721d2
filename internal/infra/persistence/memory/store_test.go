package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"sheltercore/pkg/domain"
)

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindAnimal(99); ok {
			t.Fatalf("expected missing animal lookup")
		}
		created, err := tx.CreateAnimal(domain.Animal{Name: "Rex", Species: "dog", Age: 3, Description: "friendly"})
		if err != nil {
			return err
		}
		if created.ID != 1 {
			t.Fatalf("expected first identifier, got %d", created.ID)
		}
		if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
			t.Fatalf("expected timestamps to be set")
		}
		if _, err := tx.CreateUser(domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: "abc"}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListAnimals()) != 1 {
		t.Fatalf("expected persisted animal")
	}
	if store.CurrentRevision() != 1 {
		t.Fatalf("expected revision 1, got %d", store.CurrentRevision())
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListAnimals()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListAnimals()) != 1 || len(store.ListUsers()) != 1 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
	if store.NowFunc() == nil {
		t.Fatalf("expected now func")
	}
}

func TestIdentifiersAreNeverReused(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	seed := func() int64 {
		var id int64
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			animal, err := tx.CreateAnimal(domain.Animal{Name: "Milo", Species: "cat", Age: 1, Description: "shy"})
			id = animal.ID
			return err
		})
		if err != nil {
			t.Fatalf("create animal: %v", err)
		}
		return id
	}
	first := seed()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteAnimal(first)
	}); err != nil {
		t.Fatalf("delete animal: %v", err)
	}
	second := seed()
	if second <= first {
		t.Fatalf("expected identifier above %d after deletion, got %d", first, second)
	}
}

func TestTransactionRollbackOnError(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateAnimal(domain.Animal{Name: "Luna", Species: "cat", Age: 2, Description: "calm"}); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatalf("expected transaction error")
	}
	if len(store.ListAnimals()) != 0 {
		t.Fatalf("expected nothing committed after error")
	}
	if store.CurrentRevision() != 0 {
		t.Fatalf("expected revision unchanged, got %d", store.CurrentRevision())
	}
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateAnimal(domain.Animal{Name: "Fail", Species: "dog", Description: "x"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.ListAnimals()) != 0 {
		t.Fatalf("expected blocked transaction to leave no state")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	res.Merge(domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}})
	return res, nil
}

func TestUpdateAnimalErrors(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpdateAnimal(42, func(*domain.Animal) error { return nil }); !domain.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		animal, err := tx.CreateAnimal(domain.Animal{Name: "Coco", Species: "parrot", Age: 4, Description: "loud"})
		if err != nil {
			return err
		}
		if _, err := tx.UpdateAnimal(animal.ID, func(*domain.Animal) error { return fmt.Errorf("boom") }); err == nil {
			t.Fatalf("expected mutator error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestDeleteAnimalCascadesRequests(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		animal, err := tx.CreateAnimal(domain.Animal{Name: "Bella", Species: "dog", Age: 5, Description: "gentle"})
		if err != nil {
			return err
		}
		if _, err := tx.CreateUser(domain.User{Username: "bob", Email: "bob@example.com", PasswordHash: "abc"}); err != nil {
			return err
		}
		if _, err := tx.CreateAdoptionRequest(domain.AdoptionRequest{AnimalID: animal.ID, AnimalName: animal.Name, Username: "bob", Email: "bob@example.com"}); err != nil {
			return err
		}
		return tx.DeleteAnimal(animal.ID)
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if n := len(store.ListAdoptionRequests()); n != 0 {
		t.Fatalf("expected cascaded request deletion, got %d requests", n)
	}
}

func TestDeleteAdoptedAnimalRejected(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var animalID int64
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		animal, err := tx.CreateAnimal(domain.Animal{Name: "Max", Species: "dog", Age: 2, Description: "playful"})
		if err != nil {
			return err
		}
		animalID = animal.ID
		_, err = tx.CreateAdoption(domain.Adoption{AnimalID: animal.ID, AnimalName: animal.Name, AdopterUsername: "carol", AdopterEmail: "carol@example.com"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteAnimal(animalID)
	})
	if !errors.Is(err, domain.ErrAlreadyAdopted) {
		t.Fatalf("expected ErrAlreadyAdopted, got %v", err)
	}
}

func TestCreateAdoptionRequestErrors(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		animal, err := tx.CreateAnimal(domain.Animal{Name: "Nina", Species: "cat", Age: 1, Description: "curious"})
		if err != nil {
			return err
		}
		if _, err := tx.CreateUser(domain.User{Username: "dave", Email: "dave@example.com", PasswordHash: "abc"}); err != nil {
			return err
		}
		if _, err := tx.CreateAdoptionRequest(domain.AdoptionRequest{AnimalID: 404, Username: "dave"}); !domain.IsNotFound(err) {
			t.Fatalf("expected missing animal error, got %v", err)
		}
		if _, err := tx.CreateAdoptionRequest(domain.AdoptionRequest{AnimalID: animal.ID, Username: "ghost"}); !domain.IsNotFound(err) {
			t.Fatalf("expected missing user error, got %v", err)
		}
		if _, err := tx.CreateAdoptionRequest(domain.AdoptionRequest{AnimalID: animal.ID, AnimalName: animal.Name, Username: "dave", Email: "dave@example.com"}); err != nil {
			return err
		}
		if _, err := tx.CreateAdoptionRequest(domain.AdoptionRequest{AnimalID: animal.ID, Username: "dave"}); !errors.Is(err, domain.ErrDuplicateRequest) {
			t.Fatalf("expected ErrDuplicateRequest, got %v", err)
		}
		if _, err := tx.CreateAdoption(domain.Adoption{AnimalID: animal.ID, AdopterUsername: "dave"}); err != nil {
			return err
		}
		if err := tx.DeleteAdoptionRequest(animal.ID, "dave"); err != nil {
			return err
		}
		if _, err := tx.CreateAdoptionRequest(domain.AdoptionRequest{AnimalID: animal.ID, Username: "dave"}); !errors.Is(err, domain.ErrAlreadyAdopted) {
			t.Fatalf("expected ErrAlreadyAdopted, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestDuplicateUserRejected(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateUser(domain.User{Username: "erin", Email: "erin@example.com", PasswordHash: "abc"}); err != nil {
			return err
		}
		_, err := tx.CreateUser(domain.User{Username: "erin", Email: "other@example.com", PasswordHash: "def"})
		return err
	})
	if !errors.Is(err, domain.ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}
}

func TestMigrateSnapshotDropsStaleRequests(t *testing.T) {
	snapshot := Snapshot{
		Animals: map[int64]Animal{
			1: {ID: 1, Name: "Rex"},
			2: {ID: 2, Name: "Milo"},
		},
		Users: map[string]User{
			"alice": {Username: "alice"},
		},
		Adoptions: map[int64]Adoption{
			2: {AnimalID: 2, AdopterUsername: "alice"},
		},
		Requests: map[string]AdoptionRequest{
			"1/alice":  {AnimalID: 1, Username: "alice"},
			"1/ghost":  {AnimalID: 1, Username: "ghost"},
			"2/alice":  {AnimalID: 2, Username: "alice"},
			"99/alice": {AnimalID: 99, Username: "alice"},
			"legacy":   {AnimalID: 1, Username: "alice"},
		},
		Sequence: 1,
	}
	migrated := migrateSnapshot(snapshot)
	if len(migrated.Requests) != 1 {
		t.Fatalf("expected one surviving request, got %d", len(migrated.Requests))
	}
	if _, ok := migrated.Requests["1/alice"]; !ok {
		t.Fatalf("expected canonical request key to survive")
	}
	if migrated.Sequence != 2 {
		t.Fatalf("expected sequence raised to cover adoption identifiers, got %d", migrated.Sequence)
	}
}

func TestViewIsolation(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		ref := "animals/1/photo.jpg"
		_, err := tx.CreateAnimal(domain.Animal{Name: "Ziggy", Species: "lizard", Age: 1, Description: "green", PhotoRef: &ref})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var leaked *string
	if err := store.View(ctx, func(view domain.TransactionView) error {
		animal, ok := view.FindAnimal(1)
		if !ok {
			t.Fatalf("expected animal in view")
		}
		leaked = animal.PhotoRef
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	*leaked = "mutated"
	committed, _ := store.GetAnimal(1)
	if committed.PhotoRef == nil || *committed.PhotoRef != "animals/1/photo.jpg" {
		t.Fatalf("expected committed photo ref untouched, got %v", committed.PhotoRef)
	}
}
