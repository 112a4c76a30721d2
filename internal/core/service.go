// Package core exposes the adoption lifecycle service built on the
// transactional persistence layer. Every mutating operation runs as one
// load-validate-mutate-save transaction; the rules engine re-checks the
// staged snapshot before any commit.
package core

import (
	"context"
	"strconv"
	"time"

	"sheltercore/internal/infra/persistence/memory"
	"sheltercore/pkg/domain"
)

// Service exposes higher-level transactional operations over the shelter state.
type Service struct {
	store    domain.PersistentStore
	photos   PhotoStore
	operator OperatorCredential
	logger   Logger
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
	nowFn    func() time.Time
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: noopLogger{},
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// instrument wraps a service operation with tracing, metrics, audit, and
// logging. fn returns the entity identifier for the audit trail.
func (s *Service) instrument(ctx context.Context, operation string, fn func(ctx context.Context) (string, error)) error {
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	start := time.Now()
	entityID, err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, duration)
	}
	if s.audit != nil {
		entry := AuditEntry{
			Operation:  operation,
			Status:     AuditStatusSuccess,
			EntityID:   entityID,
			OccurredAt: s.nowFn(),
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	if err != nil {
		s.logger.Warn("operation failed", "operation", operation, "entity_id", entityID, "error", err)
		return err
	}
	s.logger.Debug("operation committed", "operation", operation, "entity_id", entityID)
	return nil
}

// AnimalInput carries the caller-supplied fields for a new animal.
type AnimalInput struct {
	Name        string
	Species     string
	Age         int
	Description string
}

func (in AnimalInput) validate() error {
	switch {
	case in.Name == "":
		return domain.ValidationError{Field: "name"}
	case in.Species == "":
		return domain.ValidationError{Field: "species"}
	case in.Description == "":
		return domain.ValidationError{Field: "description"}
	case in.Age < 0:
		return domain.ValidationError{Field: "age", Reason: "must not be negative"}
	}
	return nil
}

// AddAnimal registers a new animal with the next identifier in the sequence.
func (s *Service) AddAnimal(ctx context.Context, input AnimalInput) (Animal, Result, error) {
	var created Animal
	var res Result
	err := s.instrument(ctx, "add_animal", func(ctx context.Context) (string, error) {
		if err := input.validate(); err != nil {
			return "", err
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var txErr error
			created, txErr = tx.CreateAnimal(Animal{
				Name:        input.Name,
				Species:     input.Species,
				Age:         input.Age,
				Description: input.Description,
			})
			return txErr
		})
		return formatID(created.ID), err
	})
	return created, res, err
}

// ListAnimals returns the catalog ordered by identifier.
func (s *Service) ListAnimals(_ context.Context) []Animal {
	return s.store.ListAnimals()
}

// GetAnimal returns one animal by identifier.
func (s *Service) GetAnimal(_ context.Context, id int64) (Animal, error) {
	animal, ok := s.store.GetAnimal(id)
	if !ok {
		return Animal{}, domain.NotFoundError{Entity: EntityAnimal, ID: formatID(id)}
	}
	return animal, nil
}

// RemoveAnimal deletes an animal and its pending requests. An adopted animal
// cannot be removed while the ledger references it.
func (s *Service) RemoveAnimal(ctx context.Context, id int64) (Result, error) {
	var res Result
	err := s.instrument(ctx, "remove_animal", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.DeleteAnimal(id)
		})
		return formatID(id), err
	})
	return res, err
}

// SetAnimalPhoto records a photo reference for an animal. Overwrites are
// idempotent.
func (s *Service) SetAnimalPhoto(ctx context.Context, id int64, ref string) (Animal, Result, error) {
	var updated Animal
	var res Result
	err := s.instrument(ctx, "set_animal_photo", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateAnimal(id, func(a *Animal) error {
				a.PhotoRef = &ref
				return nil
			})
			return txErr
		})
		return formatID(id), err
	})
	return updated, res, err
}

// RegisterUser stores a new adopter account. Only the password digest is kept.
func (s *Service) RegisterUser(ctx context.Context, username, email, password string) (User, Result, error) {
	var created User
	var res Result
	err := s.instrument(ctx, "register_user", func(ctx context.Context) (string, error) {
		switch {
		case username == "":
			return "", domain.ValidationError{Field: "username"}
		case email == "":
			return "", domain.ValidationError{Field: "email"}
		case password == "":
			return "", domain.ValidationError{Field: "password"}
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var txErr error
			created, txErr = tx.CreateUser(User{
				Username:     username,
				Email:        email,
				PasswordHash: HashPassword(password),
			})
			return txErr
		})
		return username, err
	})
	return created, res, err
}

// Authenticate verifies an adopter login. Absent users and digest mismatches
// report the same error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	var user User
	err := s.instrument(ctx, "authenticate", func(_ context.Context) (string, error) {
		stored, ok := s.store.GetUser(username)
		if !ok || stored.PasswordHash != HashPassword(password) {
			return username, domain.ErrInvalidCredentials
		}
		user = stored
		return username, nil
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ValidateOperator checks the configured operator credential.
func (s *Service) ValidateOperator(username, password string) bool {
	return s.operator.Validate(username, password)
}

// ListAdoptions returns the ledger ordered by animal identifier.
func (s *Service) ListAdoptions(_ context.Context) []Adoption {
	return s.store.ListAdoptions()
}

// ListAdoptionsFor returns (AnimalID, AnimalName) pairs for one adopter.
func (s *Service) ListAdoptionsFor(_ context.Context, username string) []AdoptionSummary {
	var out []AdoptionSummary
	for _, adoption := range s.store.ListAdoptions() {
		if adoption.AdopterUsername == username {
			out = append(out, AdoptionSummary{AnimalID: adoption.AnimalID, AnimalName: adoption.AnimalName})
		}
	}
	return out
}

// ListPendingRequests returns the queue ordered by (AnimalID, Username).
func (s *Service) ListPendingRequests(_ context.Context) []AdoptionRequest {
	return s.store.ListAdoptionRequests()
}

// CountPendingRequests returns the number of live requests.
func (s *Service) CountPendingRequests(_ context.Context) int {
	return len(s.store.ListAdoptionRequests())
}

// RequestAdoption files a request for an (animal, user) pair, snapshotting
// the animal name and adopter email at request time.
func (s *Service) RequestAdoption(ctx context.Context, animalID int64, username string) (AdoptionRequest, Result, error) {
	var created AdoptionRequest
	var res Result
	err := s.instrument(ctx, "request_adoption", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			animal, ok := tx.FindAnimal(animalID)
			if !ok {
				return domain.NotFoundError{Entity: EntityAnimal, ID: formatID(animalID)}
			}
			user, ok := tx.FindUser(username)
			if !ok {
				return domain.NotFoundError{Entity: EntityUser, ID: username}
			}
			var txErr error
			created, txErr = tx.CreateAdoptionRequest(AdoptionRequest{
				AnimalID:   animalID,
				AnimalName: animal.Name,
				Username:   username,
				Email:      user.Email,
			})
			return txErr
		})
		return domain.RequestKey(animalID, username), err
	})
	return created, res, err
}

// DecideRequest resolves a pending request. Accept atomically appends the
// adoption and consumes the request; Reject consumes the request only, so a
// later re-request for the pair succeeds.
func (s *Service) DecideRequest(ctx context.Context, animalID int64, username string, decision Decision) (Result, error) {
	var res Result
	err := s.instrument(ctx, "decide_request", func(ctx context.Context) (string, error) {
		if decision != DecisionAccept && decision != DecisionReject {
			return "", domain.ValidationError{Field: "decision", Reason: "must be accept or reject"}
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			request, ok := tx.FindAdoptionRequest(animalID, username)
			if !ok {
				return domain.ErrRequestNotFound
			}
			if decision == DecisionAccept {
				if _, txErr := tx.CreateAdoption(Adoption{
					AnimalID:        request.AnimalID,
					AnimalName:      request.AnimalName,
					AdopterUsername: request.Username,
					AdopterEmail:    request.Email,
				}); txErr != nil {
					return txErr
				}
			}
			return tx.DeleteAdoptionRequest(animalID, username)
		})
		return domain.RequestKey(animalID, username), err
	})
	return res, err
}

// AnimalStatus derives the state of an (animal, user) pair: Adopted wins,
// then Pending for the pair, otherwise Available.
func (s *Service) AnimalStatus(ctx context.Context, animalID int64, username string) (AnimalStatus, error) {
	var status AnimalStatus
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindAnimal(animalID); !ok {
			return domain.NotFoundError{Entity: EntityAnimal, ID: formatID(animalID)}
		}
		if _, ok := view.FindAdoption(animalID); ok {
			status = StatusAdopted
		} else if _, ok := view.FindAdoptionRequest(animalID, username); ok {
			status = StatusPending
		} else {
			status = StatusAvailable
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
