package core

import "sheltercore/pkg/domain"

type (
	EntityType         = domain.EntityType
	AnimalStatus       = domain.AnimalStatus
	Decision           = domain.Decision
	Severity           = domain.Severity
	Animal             = domain.Animal
	User               = domain.User
	Adoption           = domain.Adoption
	AdoptionRequest    = domain.AdoptionRequest
	AdoptionSummary    = domain.AdoptionSummary
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityAnimal          = domain.EntityAnimal
	EntityUser            = domain.EntityUser
	EntityAdoption        = domain.EntityAdoption
	EntityAdoptionRequest = domain.EntityAdoptionRequest
)

const (
	StatusAvailable = domain.StatusAvailable
	StatusPending   = domain.StatusPending
	StatusAdopted   = domain.StatusAdopted
)

const (
	DecisionAccept = domain.DecisionAccept
	DecisionReject = domain.DecisionReject
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine re-exports the domain constructor for call-site convenience.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
