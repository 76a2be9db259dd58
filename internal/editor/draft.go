package editor

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"smartgreenhouse/internal/models"
)

// Draft is a rule under construction. Fields illegal for Kind stay zero.
type Draft struct {
	RuleID          int             `json:"rule_id,omitempty"`
	GreenhouseID    int             `json:"gh_id" validate:"required"`
	Name            string          `json:"name" validate:"required"`
	Kind            models.Kind     `json:"kind" validate:"required,oneof=time threshold"`
	FromComponentID int             `json:"from_comp_id" validate:"required_if=Kind threshold"`
	ToComponentID   int             `json:"to_comp_id" validate:"required"`
	Operator        models.Operator `json:"operator,omitempty" validate:"required_if=Kind threshold,omitempty,operator"`
	Threshold       *float64        `json:"threshold,omitempty" validate:"required_if=Kind threshold"`
	TimeSpec        string          `json:"time_spec,omitempty" validate:"required_if=Kind time"`
	Enabled         bool            `json:"enabled"`
}

// FromRule copies every field of r into a draft.
func FromRule(r models.Rule) Draft {
	d := Draft{
		RuleID:          r.ID,
		GreenhouseID:    r.GreenhouseID,
		Name:            r.Name,
		Kind:            r.Kind,
		FromComponentID: r.FromComponentID,
		ToComponentID:   r.ToComponentID,
		Enabled:         r.Enabled,
	}
	if r.Threshold != nil {
		v := r.Threshold.Value
		d.Operator = r.Threshold.Operator
		d.Threshold = &v
	}
	if r.Time != nil {
		d.TimeSpec = r.Time.Spec
	}
	return d
}

// Rule converts the draft to the tagged rule shape. Call Validate first.
func (d Draft) Rule() models.Rule {
	r := models.Rule{
		ID:              d.RuleID,
		GreenhouseID:    d.GreenhouseID,
		Name:            d.Name,
		Kind:            d.Kind,
		FromComponentID: d.FromComponentID,
		ToComponentID:   d.ToComponentID,
		Enabled:         d.Enabled,
	}
	switch d.Kind {
	case models.KindThreshold:
		t := &models.ThresholdTrigger{Operator: d.Operator}
		if d.Threshold != nil {
			t.Value = *d.Threshold
		}
		r.Threshold = t
	case models.KindTime:
		r.Time = &models.TimeTrigger{Spec: d.TimeSpec}
	}
	return r
}

func (d Draft) clone() Draft {
	if d.Threshold != nil {
		v := *d.Threshold
		d.Threshold = &v
	}
	return d
}

// ValidationError lists the draft fields that failed, keyed by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, f := range names {
		parts[i] = fmt.Sprintf("%s (%s)", f, e.Fields[f])
	}
	return "invalid draft: " + strings.Join(parts, ", ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("operator", func(fl validator.FieldLevel) bool {
		return models.Operator(fl.Field().String()).Valid()
	})
	v.RegisterStructValidation(exclusiveFields, Draft{})
	return v
}

// exclusiveFields rejects fields that do not belong to the draft's kind.
func exclusiveFields(sl validator.StructLevel) {
	d := sl.Current().Interface().(Draft)
	switch d.Kind {
	case models.KindTime:
		if d.Operator != "" {
			sl.ReportError(d.Operator, "operator", "Operator", "excluded", "")
		}
		if d.Threshold != nil {
			sl.ReportError(d.Threshold, "threshold", "Threshold", "excluded", "")
		}
	case models.KindThreshold:
		if d.TimeSpec != "" {
			sl.ReportError(d.TimeSpec, "time_spec", "TimeSpec", "excluded", "")
		}
	}
}

func validateDraft(v *validator.Validate, d Draft) error {
	err := v.Struct(d)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = fe.Tag()
	}
	return out
}
