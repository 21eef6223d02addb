package storage

import "errors"

// Storage error constants
var (
	// ErrRuleNotFound is returned when a rule is not found
	ErrRuleNotFound = errors.New("rule not found")

	// ErrDuplicateRule is returned when attempting to create a rule whose id
	// or rule_id is already taken
	ErrDuplicateRule = errors.New("rule already exists")

	// ErrInvalidIdentifier is returned when an update carries neither id nor rule_id
	ErrInvalidIdentifier = errors.New("rule update has no identifier")
)
