// Package domain defines the core persistent entities, typed errors, and
// rule evaluation primitives used by sheltercore.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAnimal identifies a rescue-animal record.
	EntityAnimal EntityType = "animal"
	// EntityUser identifies an adopter account record.
	EntityUser EntityType = "user"
	// EntityAdoption identifies a finalized adoption ledger row.
	EntityAdoption EntityType = "adoption"
	// EntityAdoptionRequest identifies a pending adoption request.
	EntityAdoptionRequest EntityType = "adoption_request"
)

// AnimalStatus is the derived lifecycle state of an animal with respect to
// one requesting user. It is computed from the snapshot, never stored.
type AnimalStatus string

// Derived animal statuses presented to callers.
const (
	// StatusAvailable means the animal is neither adopted nor requested by the user.
	StatusAvailable AnimalStatus = "available"
	// StatusPending means the user has a live request for the animal.
	StatusPending AnimalStatus = "pending"
	// StatusAdopted means an adoption ledger row exists for the animal.
	StatusAdopted AnimalStatus = "adopted"
)

// Decision is an operator verdict on a pending adoption request.
type Decision string

// Operator decisions consumed by the adoption engine.
const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Animal represents an individual rescue animal tracked by the shelter.
// IDs are assigned from a persisted monotonic sequence and never reused,
// even after delete.
type Animal struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Species     string    `json:"species"`
	Age         int       `json:"age"`
	Description string    `json:"description"`
	PhotoRef    *string   `json:"photo_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User represents a registered adopter account. Usernames are unique and
// immutable; only the one-way password digest is ever stored.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdoptionRequest is a live request by one user for one animal. The animal
// name and user email are snapshots taken at request time and are not
// re-joined later.
type AdoptionRequest struct {
	AnimalID    int64     `json:"animal_id"`
	AnimalName  string    `json:"animal_name"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	RequestedAt time.Time `json:"requested_at"`
}

// Adoption is an append-only ledger row binding an animal to its adopter.
// At most one row exists per animal.
type Adoption struct {
	AnimalID        int64     `json:"animal_id"`
	AnimalName      string    `json:"animal_name"`
	AdopterUsername string    `json:"adopter_username"`
	AdopterEmail    string    `json:"adopter_email"`
	AdoptedAt       time.Time `json:"adopted_at"`
}

// AdoptionSummary is the (ID, name) projection returned by per-adopter
// ledger listings.
type AdoptionSummary struct {
	AnimalID   int64  `json:"animal_id"`
	AnimalName string `json:"animal_name"`
}

// RequestKey returns the canonical map key for the (animal, user) pair.
func RequestKey(animalID int64, username string) string {
	return fmt.Sprintf("%d/%s", animalID, username)
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured for rule evaluation.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
