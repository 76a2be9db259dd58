package models

import (
	"encoding/json"
	"fmt"
)

// wireRule is the flat JSON record exchanged with the authority.
// The authority stores the comparison under "operator"; "operator_" is
// accepted on input only.
type wireRule struct {
	ID              int       `json:"rule_id,omitempty"`
	GreenhouseID    int       `json:"gh_id"`
	Name            string    `json:"name"`
	FromComponentID int       `json:"from_comp_id"`
	ToComponentID   int       `json:"to_comp_id"`
	Kind            Kind      `json:"kind"`
	Operator        *Operator `json:"operator,omitempty"`
	LegacyOperator  *Operator `json:"operator_,omitempty"`
	Threshold       *float64  `json:"threshold,omitempty"`
	TimeSpec        *string   `json:"time_spec,omitempty"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       string    `json:"created_at,omitempty"`
	UpdatedAt       string    `json:"updated_at,omitempty"`
}

// MarshalJSON emits only the fields legal for the rule's kind.
func (r Rule) MarshalJSON() ([]byte, error) {
	w := wireRule{
		ID:              r.ID,
		GreenhouseID:    r.GreenhouseID,
		Name:            r.Name,
		FromComponentID: r.FromComponentID,
		ToComponentID:   r.ToComponentID,
		Kind:            r.Kind,
		Enabled:         r.Enabled,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	switch r.Kind {
	case KindThreshold:
		if r.Threshold != nil {
			op := r.Threshold.Operator
			v := r.Threshold.Value
			w.Operator = &op
			w.Threshold = &v
		}
	case KindTime:
		if r.Time != nil {
			spec := r.Time.Spec
			w.TimeSpec = &spec
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON builds the tagged union from a wire record, dropping
// whatever is illegal for the record's kind.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w wireRule
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Kind.Valid() {
		return fmt.Errorf("rule %d: %w %q", w.ID, ErrUnknownKind, w.Kind)
	}

	out := Rule{
		ID:              w.ID,
		GreenhouseID:    w.GreenhouseID,
		Name:            w.Name,
		Kind:            w.Kind,
		FromComponentID: w.FromComponentID,
		ToComponentID:   w.ToComponentID,
		Enabled:         w.Enabled,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}
	switch w.Kind {
	case KindThreshold:
		t := &ThresholdTrigger{}
		if w.Operator != nil {
			t.Operator = *w.Operator
		} else if w.LegacyOperator != nil {
			t.Operator = *w.LegacyOperator
		}
		if w.Threshold != nil {
			t.Value = *w.Threshold
		}
		out.Threshold = t
	case KindTime:
		t := &TimeTrigger{}
		if w.TimeSpec != nil {
			t.Spec = *w.TimeSpec
		}
		out.Time = t
	}
	*r = out
	return nil
}
