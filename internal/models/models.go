package models

import (
	"errors"
	"fmt"
)

// NoComponent is the sentinel component id meaning "no source".
const NoComponent = 0

// TimeSubtype marks the sensor used as the trigger source of time rules.
const TimeSubtype = "Time"

// Greenhouse represents a managed site
type Greenhouse struct {
	ID       int    `json:"gh_id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// Role of a component inside a greenhouse
type Role string

const (
	RoleSensor   Role = "sensor"
	RoleActuator Role = "actuator"
)

// Component represents a sensor or actuator of one greenhouse
type Component struct {
	ID           int    `json:"comp_id"`
	GreenhouseID int    `json:"gh_id"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	Subtype      string `json:"subtype"`
}

// Kind discriminates the shape of a rule
type Kind string

const (
	KindTime      Kind = "time"
	KindThreshold Kind = "threshold"
)

// Valid reports whether k is a known rule kind.
func (k Kind) Valid() bool {
	return k == KindTime || k == KindThreshold
}

// Operator is the comparison used by threshold rules
type Operator string

const (
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "=="
	OpGreaterOrEqual Operator = ">="
	OpGreater        Operator = ">"
)

// DefaultOperator is assigned when a draft becomes a threshold rule.
const DefaultOperator = OpLess

// Operators lists the supported operators in display order.
var Operators = []Operator{OpLess, OpLessOrEqual, OpEqual, OpGreaterOrEqual, OpGreater}

// Valid returns true when operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OpLess, OpLessOrEqual, OpEqual, OpGreaterOrEqual, OpGreater:
		return true
	default:
		return false
	}
}

var (
	ErrUnknownKind = errors.New("unknown rule kind")
	ErrBadShape    = errors.New("rule fields do not match kind")
)

// ThresholdTrigger holds the fields of a threshold rule
type ThresholdTrigger struct {
	Operator Operator
	Value    float64
}

// TimeTrigger holds the fields of a time rule. Spec is opaque here.
type TimeTrigger struct {
	Spec string
}

// Rule is an automation binding. Exactly one of Threshold and Time is set,
// matching Kind.
type Rule struct {
	ID              int
	GreenhouseID    int
	Name            string
	Kind            Kind
	FromComponentID int
	ToComponentID   int
	Threshold       *ThresholdTrigger
	Time            *TimeTrigger
	Enabled         bool
	CreatedAt       string
	UpdatedAt       string
}

// NewThresholdRule builds an uncommitted threshold rule.
func NewThresholdRule(ghID int, name string, from, to int, op Operator, value float64) Rule {
	return Rule{
		GreenhouseID:    ghID,
		Name:            name,
		Kind:            KindThreshold,
		FromComponentID: from,
		ToComponentID:   to,
		Threshold:       &ThresholdTrigger{Operator: op, Value: value},
		Enabled:         true,
	}
}

// NewTimeRule builds an uncommitted time rule.
func NewTimeRule(ghID int, name string, from, to int, spec string) Rule {
	return Rule{
		GreenhouseID:    ghID,
		Name:            name,
		Kind:            KindTime,
		FromComponentID: from,
		ToComponentID:   to,
		Time:            &TimeTrigger{Spec: spec},
		Enabled:         true,
	}
}

// CheckShape verifies that the rule carries exactly the fields legal for its kind.
func (r Rule) CheckShape() error {
	switch r.Kind {
	case KindThreshold:
		if r.Threshold == nil || r.Time != nil {
			return fmt.Errorf("rule %d: %w", r.ID, ErrBadShape)
		}
	case KindTime:
		if r.Time == nil || r.Threshold != nil {
			return fmt.Errorf("rule %d: %w", r.ID, ErrBadShape)
		}
	default:
		return fmt.Errorf("rule %d: %w %q", r.ID, ErrUnknownKind, r.Kind)
	}
	return nil
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	cp := r
	if r.Threshold != nil {
		t := *r.Threshold
		cp.Threshold = &t
	}
	if r.Time != nil {
		t := *r.Time
		cp.Time = &t
	}
	return cp
}

// ToggleResult is the authority's answer to a toggle request
type ToggleResult struct {
	RuleID  int  `json:"rule_id"`
	Enabled bool `json:"enabled"`
}
