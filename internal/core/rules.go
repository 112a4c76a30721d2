package core

import (
	"context"
	"fmt"

	"sheltercore/pkg/domain"
)

// DefaultRulesEngine returns an engine with the shelter safety rules
// registered. The transaction operations enforce these constraints up front;
// the rules re-check the whole staged snapshot so no commit path can slip a
// violation past them.
func DefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(adoptionUniquenessRule{})
	engine.Register(requestIntegrityRule{})
	engine.Register(identityIntegrityRule{})
	return engine
}

// adoptionUniquenessRule blocks snapshots where an animal is adopted more
// than once or still has a pending request after its adoption.
type adoptionUniquenessRule struct{}

func (adoptionUniquenessRule) Name() string { return "adoption_uniqueness" }

func (adoptionUniquenessRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	var result domain.Result
	seen := make(map[int64]bool)
	for _, adoption := range view.ListAdoptions() {
		if seen[adoption.AnimalID] {
			result.Merge(domain.Result{Violations: []domain.Violation{{
				Rule:     "adoption_uniqueness",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("animal %d has more than one adoption record", adoption.AnimalID),
				Entity:   domain.EntityAdoption,
				EntityID: formatID(adoption.AnimalID),
			}}})
		}
		seen[adoption.AnimalID] = true
	}
	for _, request := range view.ListAdoptionRequests() {
		if _, adopted := view.FindAdoption(request.AnimalID); adopted && request.Username == adoptedBy(view, request.AnimalID) {
			result.Merge(domain.Result{Violations: []domain.Violation{{
				Rule:     "adoption_uniqueness",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("request for animal %d by %s survived its own adoption", request.AnimalID, request.Username),
				Entity:   domain.EntityAdoptionRequest,
				EntityID: domain.RequestKey(request.AnimalID, request.Username),
			}}})
		}
	}
	return result, nil
}

func adoptedBy(view domain.RuleView, animalID int64) string {
	adoption, ok := view.FindAdoption(animalID)
	if !ok {
		return ""
	}
	return adoption.AdopterUsername
}

// requestIntegrityRule blocks requests that reference a missing animal or
// user. Requests for an adopted animal by other applicants only warn; the
// stores drop those tombstones on the next load.
type requestIntegrityRule struct{}

func (requestIntegrityRule) Name() string { return "request_integrity" }

func (requestIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, request := range view.ListAdoptionRequests() {
		key := domain.RequestKey(request.AnimalID, request.Username)
		if _, ok := view.FindAnimal(request.AnimalID); !ok {
			result.Merge(domain.Result{Violations: []domain.Violation{{
				Rule:     "request_integrity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("request %s references a missing animal", key),
				Entity:   domain.EntityAdoptionRequest,
				EntityID: key,
			}}})
		}
		if _, ok := view.FindUser(request.Username); !ok {
			result.Merge(domain.Result{Violations: []domain.Violation{{
				Rule:     "request_integrity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("request %s references a missing user", key),
				Entity:   domain.EntityAdoptionRequest,
				EntityID: key,
			}}})
		}
		if adopter := adoptedBy(view, request.AnimalID); adopter != "" && adopter != request.Username {
			result.Merge(domain.Result{Violations: []domain.Violation{{
				Rule:     "request_integrity",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("request %s targets an already adopted animal", key),
				Entity:   domain.EntityAdoptionRequest,
				EntityID: key,
			}}})
		}
	}
	return result, nil
}

// identityIntegrityRule blocks adoptions and users with malformed identity
// fields. Usernames are the identity key and must never be empty.
type identityIntegrityRule struct{}

func (identityIntegrityRule) Name() string { return "identity_integrity" }

func (identityIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, user := range view.ListUsers() {
		if user.Username == "" || user.PasswordHash == "" {
			result.Merge(domain.Result{Violations: []domain.Violation{{
				Rule:     "identity_integrity",
				Severity: domain.SeverityBlock,
				Message:  "user record is missing its username or password digest",
				Entity:   domain.EntityUser,
				EntityID: user.Username,
			}}})
		}
	}
	for _, adoption := range view.ListAdoptions() {
		if adoption.AdopterUsername == "" {
			result.Merge(domain.Result{Violations: []domain.Violation{{
				Rule:     "identity_integrity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("adoption of animal %d has no adopter", adoption.AnimalID),
				Entity:   domain.EntityAdoption,
				EntityID: formatID(adoption.AnimalID),
			}}})
		}
	}
	return result, nil
}
