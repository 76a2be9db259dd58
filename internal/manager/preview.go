package manager

import (
	"errors"
	"fmt"

	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/timespec"
)

// ErrNotTimeRule is returned when previewing a threshold rule.
var ErrNotTimeRule = errors.New("rule is not a time rule")

// NextFiring previews when time rule id would fire next. The evaluator owns
// actual firing; this is display only.
func (m *Manager) NextFiring(id int) (timespec.Preview, error) {
	rule, err := m.store.Get(id)
	if err != nil {
		return timespec.Preview{}, err
	}
	if rule.Kind != models.KindTime || rule.Time == nil {
		return timespec.Preview{}, fmt.Errorf("rule %d: %w", id, ErrNotTimeRule)
	}
	return timespec.PreviewAt(rule.Time.Spec, m.now(), m.loc)
}
