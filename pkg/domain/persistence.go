package domain

import "context"

// TransactionView is the snapshot handed to rules during commit evaluation.
type TransactionView interface {
	RuleView
}

// Transaction stages mutations against a copy of the current state. Every
// mutation records a Change so the rules engine can evaluate the staged
// snapshot before commit.
type Transaction interface {
	// NextAnimalID issues a fresh identifier from the monotonic sequence.
	// Issued identifiers are never reused, even after deletions.
	NextAnimalID() int64

	CreateAnimal(animal Animal) (Animal, error)
	UpdateAnimal(id int64, mutate func(*Animal) error) (Animal, error)
	DeleteAnimal(id int64) error
	FindAnimal(id int64) (Animal, bool)

	CreateUser(user User) (User, error)
	FindUser(username string) (User, bool)

	CreateAdoption(adoption Adoption) (Adoption, error)
	FindAdoption(animalID int64) (Adoption, bool)

	CreateAdoptionRequest(request AdoptionRequest) (AdoptionRequest, error)
	DeleteAdoptionRequest(animalID int64, username string) error
	FindAdoptionRequest(animalID int64, username string) (AdoptionRequest, bool)

	// Changes returns the mutations staged so far in commit order.
	Changes() []Change
}

// PersistentStore is the storage contract the service layer depends on.
// Implementations guarantee that RunInTransaction is atomic: either every
// staged mutation becomes visible and durable, or none do.
type PersistentStore interface {
	// RunInTransaction executes fn against a transactional copy of the
	// current state, evaluates registered rules over the staged snapshot,
	// and commits if fn and every blocking rule succeed.
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)

	// View executes fn against a read-only copy of the committed state.
	View(ctx context.Context, fn func(TransactionView) error) error

	ListAnimals() []Animal
	GetAnimal(id int64) (Animal, bool)
	ListUsers() []User
	GetUser(username string) (User, bool)
	ListAdoptions() []Adoption
	GetAdoption(animalID int64) (Adoption, bool)
	ListAdoptionRequests() []AdoptionRequest
	GetAdoptionRequest(animalID int64, username string) (AdoptionRequest, bool)

	// CurrentRevision returns the committed snapshot revision. It increases
	// by one on every successful commit.
	CurrentRevision() uint64

	// Close releases any resources held by the backing driver.
	Close() error
}
