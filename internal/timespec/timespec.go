// Package timespec previews when a time rule would fire. The rule itself
// keeps time_spec as an opaque string; parsing here is for display only.
package timespec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrUnrecognized is returned for specs that are neither daily nor one-shot.
var ErrUnrecognized = errors.New("unrecognized time spec")

const (
	dailyLayout   = "15:04"
	oneShotLayout = "2006-01-02 15:04:05"
)

// Kind of a parsed spec
type Kind string

const (
	KindDaily   Kind = "daily"
	KindOneShot Kind = "once"
)

// Spec is a parsed time_spec
type Spec struct {
	Raw  string
	Kind Kind
	// Cron is the standard expression of a daily spec.
	Cron string

	schedule cron.Schedule
	at       time.Time
}

// Parse reads "HH:MM" as a daily trigger and "YYYY-MM-DD HH:MM:SS" or
// RFC 3339 as a one-shot trigger. Wall times are read in loc.
func Parse(raw string, loc *time.Location) (Spec, error) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(raw)

	if t, err := time.ParseInLocation(dailyLayout, s, loc); err == nil {
		expr := fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
		sched, err := cron.ParseStandard(fmt.Sprintf("CRON_TZ=%s %s", loc.String(), expr))
		if err != nil {
			return Spec{}, fmt.Errorf("time spec %q: %w", raw, err)
		}
		return Spec{Raw: raw, Kind: KindDaily, Cron: expr, schedule: sched}, nil
	}
	if t, err := time.ParseInLocation(oneShotLayout, s, loc); err == nil {
		return Spec{Raw: raw, Kind: KindOneShot, at: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Spec{Raw: raw, Kind: KindOneShot, at: t}, nil
	}
	return Spec{}, fmt.Errorf("time spec %q: %w", raw, ErrUnrecognized)
}

// Next returns the first firing strictly after t. A one-shot spec in the
// past has no next firing.
func (s Spec) Next(t time.Time) (time.Time, bool) {
	switch s.Kind {
	case KindDaily:
		return s.schedule.Next(t), true
	case KindOneShot:
		if s.at.After(t) {
			return s.at, true
		}
	}
	return time.Time{}, false
}

// Preview is the display form of a spec
type Preview struct {
	Spec string     `json:"time_spec"`
	Kind Kind       `json:"kind"`
	Cron string     `json:"cron,omitempty"`
	Next *time.Time `json:"next,omitempty"`
}

// PreviewAt parses raw and computes its next firing after now.
func PreviewAt(raw string, now time.Time, loc *time.Location) (Preview, error) {
	spec, err := Parse(raw, loc)
	if err != nil {
		return Preview{}, err
	}
	p := Preview{Spec: raw, Kind: spec.Kind, Cron: spec.Cron}
	if next, ok := spec.Next(now); ok {
		p.Next = &next
	}
	return p, nil
}
