// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"sheltercore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Animal aliases domain.Animal for in-memory persistence operations.
	Animal = domain.Animal
	// User aliases domain.User.
	User = domain.User
	// Adoption aliases domain.Adoption.
	Adoption = domain.Adoption
	// AdoptionRequest aliases domain.AdoptionRequest.
	AdoptionRequest = domain.AdoptionRequest
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	animals   map[int64]Animal
	users     map[string]User
	adoptions map[int64]Adoption
	requests  map[string]AdoptionRequest
	sequence  int64
	revision  uint64
}

// Snapshot captures a point-in-time clone of the store state. Sequence is the
// highest animal identifier ever issued; it is persisted so identifiers stay
// monotonic across restarts and deletions. Revision counts committed
// transactions and drives optimistic concurrency in durable stores.
type Snapshot struct {
	Animals   map[int64]Animal           `json:"animals"`
	Users     map[string]User            `json:"users"`
	Adoptions map[int64]Adoption         `json:"adoptions"`
	Requests  map[string]AdoptionRequest `json:"requests"`
	Sequence  int64                      `json:"sequence"`
	Revision  uint64                     `json:"revision"`
}

func newMemoryState() memoryState {
	return memoryState{
		animals:   make(map[int64]Animal),
		users:     make(map[string]User),
		adoptions: make(map[int64]Adoption),
		requests:  make(map[string]AdoptionRequest),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Animals:   make(map[int64]Animal, len(state.animals)),
		Users:     make(map[string]User, len(state.users)),
		Adoptions: make(map[int64]Adoption, len(state.adoptions)),
		Requests:  make(map[string]AdoptionRequest, len(state.requests)),
		Sequence:  state.sequence,
		Revision:  state.revision,
	}
	for k, v := range state.animals {
		s.Animals[k] = cloneAnimal(v)
	}
	for k, v := range state.users {
		s.Users[k] = v
	}
	for k, v := range state.adoptions {
		s.Adoptions[k] = v
	}
	for k, v := range state.requests {
		s.Requests[k] = v
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Animals {
		state.animals[k] = cloneAnimal(v)
	}
	for k, v := range s.Users {
		state.users[k] = v
	}
	for k, v := range s.Adoptions {
		state.adoptions[k] = v
	}
	for k, v := range s.Requests {
		state.requests[k] = v
	}
	state.sequence = s.Sequence
	state.revision = s.Revision
	return state
}

// migrateSnapshot normalizes snapshots produced by older writers. Nil maps
// become empty, requests whose animal or user no longer exists are dropped,
// requests for already adopted animals are dropped, keys are rewritten to the
// canonical pair form, and the sequence counter is raised to cover every
// identifier present in the snapshot.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Animals == nil {
		snapshot.Animals = map[int64]Animal{}
	}
	if snapshot.Users == nil {
		snapshot.Users = map[string]User{}
	}
	if snapshot.Adoptions == nil {
		snapshot.Adoptions = map[int64]Adoption{}
	}
	if snapshot.Requests == nil {
		snapshot.Requests = map[string]AdoptionRequest{}
	}

	for key, request := range snapshot.Requests {
		if _, ok := snapshot.Animals[request.AnimalID]; !ok {
			delete(snapshot.Requests, key)
			continue
		}
		if _, ok := snapshot.Users[request.Username]; !ok {
			delete(snapshot.Requests, key)
			continue
		}
		if _, ok := snapshot.Adoptions[request.AnimalID]; ok {
			delete(snapshot.Requests, key)
			continue
		}
		if canonical := domain.RequestKey(request.AnimalID, request.Username); canonical != key {
			delete(snapshot.Requests, key)
			snapshot.Requests[canonical] = request
		}
	}

	for id := range snapshot.Animals {
		if id > snapshot.Sequence {
			snapshot.Sequence = id
		}
	}
	for id := range snapshot.Adoptions {
		if id > snapshot.Sequence {
			snapshot.Sequence = id
		}
	}

	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.animals {
		cloned.animals[k] = cloneAnimal(v)
	}
	for k, v := range s.users {
		cloned.users[k] = v
	}
	for k, v := range s.adoptions {
		cloned.adoptions[k] = v
	}
	for k, v := range s.requests {
		cloned.requests[k] = v
	}
	cloned.sequence = s.sequence
	cloned.revision = s.revision
	return cloned
}

func cloneAnimal(a Animal) Animal {
	cp := a
	if a.PhotoRef != nil {
		ref := *a.PhotoRef
		cp.PhotoRef = &ref
	}
	return cp
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// CurrentRevision returns the committed snapshot revision.
func (s *Store) CurrentRevision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.revision
}

// RulesEngine exposes the currently configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListAnimals returns all animals within the snapshot ordered by identifier.
func (v transactionView) ListAnimals() []Animal {
	out := make([]Animal, 0, len(v.state.animals))
	for _, a := range v.state.animals {
		out = append(out, cloneAnimal(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListUsers returns all users ordered by username.
func (v transactionView) ListUsers() []User {
	out := make([]User, 0, len(v.state.users))
	for _, u := range v.state.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// ListAdoptions returns all adoptions ordered by animal identifier.
func (v transactionView) ListAdoptions() []Adoption {
	out := make([]Adoption, 0, len(v.state.adoptions))
	for _, a := range v.state.adoptions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnimalID < out[j].AnimalID })
	return out
}

// ListAdoptionRequests returns all pending requests ordered by animal
// identifier, then requester username.
func (v transactionView) ListAdoptionRequests() []AdoptionRequest {
	out := make([]AdoptionRequest, 0, len(v.state.requests))
	for _, r := range v.state.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AnimalID != out[j].AnimalID {
			return out[i].AnimalID < out[j].AnimalID
		}
		return out[i].Username < out[j].Username
	})
	return out
}

// FindAnimal retrieves an animal by identifier from the snapshot.
func (v transactionView) FindAnimal(id int64) (Animal, bool) {
	a, ok := v.state.animals[id]
	if !ok {
		return Animal{}, false
	}
	return cloneAnimal(a), true
}

// FindUser retrieves a user by username from the snapshot.
func (v transactionView) FindUser(username string) (User, bool) {
	u, ok := v.state.users[username]
	return u, ok
}

// FindAdoption retrieves the adoption record for an animal, if any.
func (v transactionView) FindAdoption(animalID int64) (Adoption, bool) {
	a, ok := v.state.adoptions[animalID]
	return a, ok
}

// FindAdoptionRequest retrieves the pending request for an (animal, user) pair.
func (v transactionView) FindAdoptionRequest(animalID int64, username string) (AdoptionRequest, bool) {
	r, ok := v.state.requests[domain.RequestKey(animalID, username)]
	return r, ok
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	tx.state.revision++
	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Changes returns the mutations staged so far in commit order.
func (tx *transaction) Changes() []Change {
	return append([]Change(nil), tx.changes...)
}

// NextAnimalID issues the next identifier from the monotonic sequence.
// Identifiers are never reissued, even after the animal is deleted.
func (tx *transaction) NextAnimalID() int64 {
	tx.state.sequence++
	return tx.state.sequence
}

// FindAnimal exposes animal lookup within the transaction scope.
func (tx *transaction) FindAnimal(id int64) (Animal, bool) {
	a, ok := tx.state.animals[id]
	if !ok {
		return Animal{}, false
	}
	return cloneAnimal(a), true
}

// FindUser exposes user lookup within the transaction scope.
func (tx *transaction) FindUser(username string) (User, bool) {
	u, ok := tx.state.users[username]
	return u, ok
}

// FindAdoption exposes adoption lookup within the transaction scope.
func (tx *transaction) FindAdoption(animalID int64) (Adoption, bool) {
	a, ok := tx.state.adoptions[animalID]
	return a, ok
}

// FindAdoptionRequest exposes pending request lookup within the transaction scope.
func (tx *transaction) FindAdoptionRequest(animalID int64, username string) (AdoptionRequest, bool) {
	r, ok := tx.state.requests[domain.RequestKey(animalID, username)]
	return r, ok
}

// CreateAnimal stores a new animal within the transaction. A zero identifier
// is assigned from the sequence; an explicit identifier must be unused and
// advances the sequence past itself.
func (tx *transaction) CreateAnimal(a Animal) (Animal, error) {
	if a.ID <= 0 {
		a.ID = tx.NextAnimalID()
	}
	if _, exists := tx.state.animals[a.ID]; exists {
		return Animal{}, domain.ValidationError{Field: "id", Reason: "already in use"}
	}
	if a.ID > tx.state.sequence {
		tx.state.sequence = a.ID
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.animals[a.ID] = cloneAnimal(a)
	tx.recordChange(Change{Entity: domain.EntityAnimal, Action: domain.ActionCreate, After: cloneAnimal(a)})
	return cloneAnimal(a), nil
}

// UpdateAnimal mutates an animal using the provided mutator function.
func (tx *transaction) UpdateAnimal(id int64, mutator func(*Animal) error) (Animal, error) {
	current, ok := tx.state.animals[id]
	if !ok {
		return Animal{}, domain.NotFoundError{Entity: domain.EntityAnimal, ID: formatID(id)}
	}
	before := cloneAnimal(current)
	if err := mutator(&current); err != nil {
		return Animal{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.animals[id] = cloneAnimal(current)
	tx.recordChange(Change{Entity: domain.EntityAnimal, Action: domain.ActionUpdate, Before: before, After: cloneAnimal(current)})
	return cloneAnimal(current), nil
}

// DeleteAnimal removes an animal from the transaction state. Pending requests
// for the animal are removed with it; an adopted animal cannot be deleted
// while its adoption record still references it.
func (tx *transaction) DeleteAnimal(id int64) error {
	current, ok := tx.state.animals[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityAnimal, ID: formatID(id)}
	}
	if _, adopted := tx.state.adoptions[id]; adopted {
		return domain.ErrAlreadyAdopted
	}
	for key, request := range tx.state.requests {
		if request.AnimalID != id {
			continue
		}
		delete(tx.state.requests, key)
		tx.recordChange(Change{Entity: domain.EntityAdoptionRequest, Action: domain.ActionDelete, Before: request})
	}
	delete(tx.state.animals, id)
	tx.recordChange(Change{Entity: domain.EntityAnimal, Action: domain.ActionDelete, Before: cloneAnimal(current)})
	return nil
}

// CreateUser stores a new user within the transaction.
func (tx *transaction) CreateUser(u User) (User, error) {
	if u.Username == "" {
		return User{}, domain.ValidationError{Field: "username"}
	}
	if _, exists := tx.state.users[u.Username]; exists {
		return User{}, domain.ErrDuplicateUser
	}
	u.CreatedAt = tx.now
	tx.state.users[u.Username] = u
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: u})
	return u, nil
}

// CreateAdoption stores the adoption record for an animal.
func (tx *transaction) CreateAdoption(a Adoption) (Adoption, error) {
	if _, ok := tx.state.animals[a.AnimalID]; !ok {
		return Adoption{}, domain.NotFoundError{Entity: domain.EntityAnimal, ID: formatID(a.AnimalID)}
	}
	if _, exists := tx.state.adoptions[a.AnimalID]; exists {
		return Adoption{}, domain.ErrAlreadyAdopted
	}
	a.AdoptedAt = tx.now
	tx.state.adoptions[a.AnimalID] = a
	tx.recordChange(Change{Entity: domain.EntityAdoption, Action: domain.ActionCreate, After: a})
	return a, nil
}

// CreateAdoptionRequest stores a pending request for an (animal, user) pair.
func (tx *transaction) CreateAdoptionRequest(r AdoptionRequest) (AdoptionRequest, error) {
	if _, ok := tx.state.animals[r.AnimalID]; !ok {
		return AdoptionRequest{}, domain.NotFoundError{Entity: domain.EntityAnimal, ID: formatID(r.AnimalID)}
	}
	if _, ok := tx.state.users[r.Username]; !ok {
		return AdoptionRequest{}, domain.NotFoundError{Entity: domain.EntityUser, ID: r.Username}
	}
	if _, adopted := tx.state.adoptions[r.AnimalID]; adopted {
		return AdoptionRequest{}, domain.ErrAlreadyAdopted
	}
	key := domain.RequestKey(r.AnimalID, r.Username)
	if _, exists := tx.state.requests[key]; exists {
		return AdoptionRequest{}, domain.ErrDuplicateRequest
	}
	r.RequestedAt = tx.now
	tx.state.requests[key] = r
	tx.recordChange(Change{Entity: domain.EntityAdoptionRequest, Action: domain.ActionCreate, After: r})
	return r, nil
}

// DeleteAdoptionRequest removes a pending request.
func (tx *transaction) DeleteAdoptionRequest(animalID int64, username string) error {
	key := domain.RequestKey(animalID, username)
	current, ok := tx.state.requests[key]
	if !ok {
		return domain.ErrRequestNotFound
	}
	delete(tx.state.requests, key)
	tx.recordChange(Change{Entity: domain.EntityAdoptionRequest, Action: domain.ActionDelete, Before: current})
	return nil
}

// ListAnimals returns committed animals ordered by identifier.
func (s *Store) ListAnimals() []Animal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListAnimals()
}

// GetAnimal returns a committed animal by identifier.
func (s *Store) GetAnimal(id int64) (Animal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindAnimal(id)
}

// ListUsers returns committed users ordered by username.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListUsers()
}

// GetUser returns a committed user by username.
func (s *Store) GetUser(username string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindUser(username)
}

// ListAdoptions returns committed adoptions ordered by animal identifier.
func (s *Store) ListAdoptions() []Adoption {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListAdoptions()
}

// GetAdoption returns the committed adoption record for an animal.
func (s *Store) GetAdoption(animalID int64) (Adoption, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindAdoption(animalID)
}

// ListAdoptionRequests returns committed pending requests in stable order.
func (s *Store) ListAdoptionRequests() []AdoptionRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListAdoptionRequests()
}

// GetAdoptionRequest returns the committed pending request for a pair.
func (s *Store) GetAdoptionRequest(animalID int64, username string) (AdoptionRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindAdoptionRequest(animalID, username)
}

// Close releases resources held by the store. The in-memory store holds none.
func (s *Store) Close() error {
	return nil
}
