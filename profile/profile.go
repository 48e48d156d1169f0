// Package profile defines PII sanitization profiles: which action to take
// for each category of personally identifiable information found in a
// document. Profiles are validated against a fixed category/action matrix
// so an illegal assignment fails loudly instead of degrading silently.
package profile

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Category is a class of personally identifiable information.
type Category string

const (
	PersonName  Category = "person_name"
	Email       Category = "email"
	Phone       Category = "phone"
	Company     Category = "company"
	Address     Category = "address"
	Financial   Category = "financial"
	IDNumbers   Category = "id_numbers"
	DateOfBirth Category = "date_of_birth"
)

// Categories lists every PII category in display order.
var Categories = []Category{
	PersonName, Email, Phone, Company,
	Address, Financial, IDNumbers, DateOfBirth,
}

// Action is the transformation applied to detected PII of a category.
type Action string

const (
	// ActionDelete removes the value entirely, replaced by a marker.
	ActionDelete Action = "delete"
	// ActionInvent replaces the value with a plausible synthetic one.
	ActionInvent Action = "invent"
	// ActionKeepPart retains a redacted or partial form of the value.
	ActionKeepPart Action = "keep_part"
)

// validActions is the legal action set per category. Not every action makes
// sense for every category: inventing an email invites accidental real
// addresses, and deleting company names usually destroys document meaning.
var validActions = map[Category][]Action{
	PersonName:  {ActionDelete, ActionInvent, ActionKeepPart},
	Email:       {ActionDelete, ActionKeepPart},
	Phone:       {ActionDelete, ActionInvent, ActionKeepPart},
	Company:     {ActionKeepPart, ActionInvent},
	Address:     {ActionDelete, ActionInvent},
	Financial:   {ActionDelete, ActionInvent},
	IDNumbers:   {ActionDelete, ActionInvent},
	DateOfBirth: {ActionDelete, ActionInvent},
}

// actionDescriptions holds the human-readable effect of each legal
// category/action pair, surfaced by the get_profile and list_profiles tools.
var actionDescriptions = map[Category]map[Action]string{
	PersonName: {
		ActionDelete:   "Remove name completely, replace with [NAME_REMOVED]",
		ActionInvent:   "Replace with consistent synthetic name",
		ActionKeepPart: "Keep first name only, number duplicates (e.g., John 1, John 2)",
	},
	Email: {
		ActionDelete:   "Remove email completely, replace with [EMAIL_REMOVED]",
		ActionKeepPart: "Keep domain only (e.g., [EMAIL_REDACTED]@company.com)",
	},
	Phone: {
		ActionDelete:   "Remove phone completely, replace with [PHONE_REMOVED]",
		ActionInvent:   "Replace with synthetic phone number",
		ActionKeepPart: "Keep country/area code only (e.g., +1 (555) [REDACTED])",
	},
	Company: {
		ActionKeepPart: "Keep company name as-is",
		ActionInvent:   "Replace with consistent synthetic company name",
	},
	Address: {
		ActionDelete: "Remove address completely, replace with [ADDRESS_REMOVED]",
		ActionInvent: "Replace with synthetic address",
	},
	Financial: {
		ActionDelete: "Remove financial data, replace with [FINANCIAL_REMOVED]",
		ActionInvent: "Replace with synthetic financial data",
	},
	IDNumbers: {
		ActionDelete: "Remove ID numbers, replace with [ID_REMOVED]",
		ActionInvent: "Replace with synthetic ID numbers",
	},
	DateOfBirth: {
		ActionDelete: "Remove date of birth, replace with [DOB_REMOVED]",
		ActionInvent: "Replace with synthetic date of birth",
	},
}

var (
	ErrNotFound   = errors.New("profile not found")
	ErrValidation = errors.New("profile validation failed")
)

// ValidActions returns the legal actions for a category.
func ValidActions(c Category) []Action {
	return validActions[c]
}

// ActionAllowed reports whether action is legal for category.
func ActionAllowed(c Category, a Action) bool {
	for _, v := range validActions[c] {
		if v == a {
			return true
		}
	}
	return false
}

// Describe returns the human-readable effect of applying action to category.
func Describe(c Category, a Action) string {
	return actionDescriptions[c][a]
}

// Rules maps every PII category to its configured action.
type Rules map[Category]Action

// DefaultRules returns the rule set of the built-in default profile.
func DefaultRules() Rules {
	return Rules{
		PersonName:  ActionKeepPart,
		Email:       ActionKeepPart,
		Phone:       ActionDelete,
		Company:     ActionKeepPart,
		Address:     ActionDelete,
		Financial:   ActionDelete,
		IDNumbers:   ActionDelete,
		DateOfBirth: ActionDelete,
	}
}

// Validate checks that every category has exactly one legal action and that
// no unknown category or action appears.
func (r Rules) Validate() error {
	for _, c := range Categories {
		a, ok := r[c]
		if !ok {
			return fmt.Errorf("%w: missing action for %s", ErrValidation, c)
		}
		if !ActionAllowed(c, a) {
			return fmt.Errorf("%w: action %q is not valid for %s (valid: %v)",
				ErrValidation, a, c, validActions[c])
		}
	}
	for c := range r {
		if _, known := validActions[c]; !known {
			return fmt.Errorf("%w: unknown PII category %q", ErrValidation, c)
		}
	}
	return nil
}

// Clone returns an independent copy of the rule set. The sanitization
// engine clones rules at resolve time so a concurrent profile update cannot
// change the policy of an in-flight run.
func (r Rules) Clone() Rules {
	out := make(Rules, len(r))
	for c, a := range r {
		out[c] = a
	}
	return out
}

// Profile is a named, validated rule set.
type Profile struct {
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Rules      Rules     `json:"rules"`
}

// New builds a validated profile. It fails if the name is malformed or the
// rules violate the category/action matrix.
func New(name string, rules Rules) (*Profile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Profile{
		Name:       name,
		CreatedAt:  now,
		ModifiedAt: now,
		Rules:      rules.Clone(),
	}, nil
}

var nameRE = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateName checks a profile name against the allowed charset and length.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: profile name cannot be empty", ErrValidation)
	}
	if len(name) > 50 {
		return fmt.Errorf("%w: profile name must be 50 characters or less", ErrValidation)
	}
	if !nameRE.MatchString(name) {
		return fmt.Errorf("%w: profile name must contain only letters, numbers, underscores, and hyphens", ErrValidation)
	}
	return nil
}
