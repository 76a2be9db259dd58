package rules

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"smartgreenhouse/internal/models"
)

// Toggle asks the authority to set the enabled flag of rule id to desired and
// stores whatever value the authority reports back.
func (s *Store) Toggle(ctx context.Context, id int, desired bool) (models.Rule, error) {
	existing, err := s.Get(id)
	if err != nil {
		return models.Rule{}, err
	}
	res, err := s.authority.ToggleRule(ctx, id, desired)
	if err != nil {
		return models.Rule{}, fmt.Errorf("toggle rule %d: %w", id, err)
	}
	if res.RuleID != 0 && res.RuleID != id {
		s.logger.Warn("Toggle reply names another rule", zap.Int("rule_id", id), zap.Int("reply_rule_id", res.RuleID))
		return models.Rule{}, fmt.Errorf("toggle rule %d: %w: reply for rule %d", id, ErrBadReply, res.RuleID)
	}
	if res.Enabled != desired {
		s.logger.Info("Authority adjusted toggle",
			zap.Int("rule_id", id),
			zap.Bool("desired", desired),
			zap.Bool("enabled", res.Enabled),
		)
	}

	updated := existing
	updated.Enabled = res.Enabled
	s.replaceLocal(updated)
	s.notify(ctx, Change{Op: OpToggled, Rule: updated})
	return updated, nil
}

// Flip toggles rule id to the opposite of its current local value.
func (s *Store) Flip(ctx context.Context, id int) (models.Rule, error) {
	existing, err := s.Get(id)
	if err != nil {
		return models.Rule{}, err
	}
	return s.Toggle(ctx, id, !existing.Enabled)
}
