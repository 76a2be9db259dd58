package models

import "encoding/json"

// RulePatch carries only the fields that changed. Nil means "unchanged".
type RulePatch struct {
	Name            *string
	Kind            *Kind
	FromComponentID *int
	ToComponentID   *int
	Operator        *Operator
	Threshold       *float64
	TimeSpec        *string
	Enabled         *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p RulePatch) IsEmpty() bool {
	return p.Name == nil && p.Kind == nil && p.FromComponentID == nil && p.ToComponentID == nil &&
		p.Operator == nil && p.Threshold == nil && p.TimeSpec == nil && p.Enabled == nil
}

// MarshalJSON writes the changed fields. A kind change also writes explicit
// nulls for the fields the new kind does not allow.
//
// The authority's update handler reads the comparison from "operator_" while
// its create handler reads "operator", so patches carry both keys.
func (p RulePatch) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	if p.Name != nil {
		body["name"] = *p.Name
	}
	if p.Kind != nil {
		body["kind"] = *p.Kind
		switch *p.Kind {
		case KindTime:
			body["operator"] = nil
			body["operator_"] = nil
			body["threshold"] = nil
		case KindThreshold:
			body["time_spec"] = nil
		}
	}
	if p.FromComponentID != nil {
		body["from_comp_id"] = *p.FromComponentID
	}
	if p.ToComponentID != nil {
		body["to_comp_id"] = *p.ToComponentID
	}
	if p.Operator != nil {
		body["operator"] = *p.Operator
		body["operator_"] = *p.Operator
	}
	if p.Threshold != nil {
		body["threshold"] = *p.Threshold
	}
	if p.TimeSpec != nil {
		body["time_spec"] = *p.TimeSpec
	}
	if p.Enabled != nil {
		body["enabled"] = *p.Enabled
	}
	return json.Marshal(body)
}

// Apply merges the patch onto r and returns the result; r is not modified.
func (p RulePatch) Apply(r Rule) Rule {
	out := r.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Kind != nil && *p.Kind != out.Kind {
		out.Kind = *p.Kind
		switch out.Kind {
		case KindTime:
			out.Threshold = nil
			out.Time = &TimeTrigger{}
		case KindThreshold:
			out.Time = nil
			out.Threshold = &ThresholdTrigger{Operator: DefaultOperator}
		}
	}
	if p.FromComponentID != nil {
		out.FromComponentID = *p.FromComponentID
	}
	if p.ToComponentID != nil {
		out.ToComponentID = *p.ToComponentID
	}
	if out.Threshold != nil {
		if p.Operator != nil {
			out.Threshold.Operator = *p.Operator
		}
		if p.Threshold != nil {
			out.Threshold.Value = *p.Threshold
		}
	}
	if out.Time != nil && p.TimeSpec != nil {
		out.Time.Spec = *p.TimeSpec
	}
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	return out
}

// Diff computes the patch turning before into after. When the kind changes
// every field of the new kind is included.
func Diff(before, after Rule) RulePatch {
	var p RulePatch
	if before.Name != after.Name {
		p.Name = ptr(after.Name)
	}
	kindChanged := before.Kind != after.Kind
	if kindChanged {
		p.Kind = ptr(after.Kind)
	}
	if kindChanged || before.FromComponentID != after.FromComponentID {
		p.FromComponentID = ptr(after.FromComponentID)
	}
	if before.ToComponentID != after.ToComponentID {
		p.ToComponentID = ptr(after.ToComponentID)
	}
	if before.Enabled != after.Enabled {
		p.Enabled = ptr(after.Enabled)
	}

	switch after.Kind {
	case KindThreshold:
		if after.Threshold == nil {
			break
		}
		if kindChanged || before.Threshold == nil || before.Threshold.Operator != after.Threshold.Operator {
			p.Operator = ptr(after.Threshold.Operator)
		}
		if kindChanged || before.Threshold == nil || before.Threshold.Value != after.Threshold.Value {
			p.Threshold = ptr(after.Threshold.Value)
		}
	case KindTime:
		if after.Time == nil {
			break
		}
		if kindChanged || before.Time == nil || before.Time.Spec != after.Time.Spec {
			p.TimeSpec = ptr(after.Time.Spec)
		}
	}
	return p
}

func ptr[T any](v T) *T { return &v }
