package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/utils"
)

var (
	// ErrRuleNotFound is returned for ids absent from the store.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrBadReply is returned when the authority confirms a mutation with a
	// record that cannot be stored.
	ErrBadReply = errors.New("unusable authority reply")
)

// Authority is the remote side of the store. Every mutation goes through it
// before the local collection changes.
type Authority interface {
	ListRules(ctx context.Context, ghID int) ([]models.Rule, error)
	CreateRule(ctx context.Context, ghID int, rule models.Rule) (models.Rule, error)
	UpdateRule(ctx context.Context, ruleID int, patch models.RulePatch) (*models.Rule, error)
	DeleteRule(ctx context.Context, ruleID int) error
	ToggleRule(ctx context.Context, ruleID int, desired bool) (models.ToggleResult, error)
}

// Op names a committed mutation
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
	OpToggled Op = "toggled"
)

// Change describes a committed mutation. Rule is the state after the change,
// or the removed record for OpDeleted.
type Change struct {
	Op   Op
	Rule models.Rule
}

// Observer is told about committed mutations
type Observer interface {
	RuleChanged(ctx context.Context, change Change) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, change Change) error

func (f ObserverFunc) RuleChanged(ctx context.Context, change Change) error { return f(ctx, change) }

// Confirm is asked before a delete is issued. Returning false aborts it.
type Confirm func(rule models.Rule) bool

// Store is the in-memory rule collection of the active greenhouse.
type Store struct {
	authority Authority
	logger    *zap.Logger

	mu        sync.RWMutex
	ghID      int
	loaded    bool
	rules     []models.Rule
	observers []Observer
}

// NewStore creates an empty store
func NewStore(authority Authority, logger *zap.Logger) *Store {
	return &Store{authority: authority, logger: utils.OrNop(logger)}
}

// AddObserver registers o for committed mutations.
func (s *Store) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Fetch lists the rules of ghID without touching the store. Records with an
// unknown kind or a broken shape are skipped.
func (s *Store) Fetch(ctx context.Context, ghID int) ([]models.Rule, error) {
	list, err := s.authority.ListRules(ctx, ghID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	out := make([]models.Rule, 0, len(list))
	for _, r := range list {
		if err := r.CheckShape(); err != nil {
			s.logger.Warn("Skipping malformed rule", zap.Int("rule_id", r.ID), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Replace discards the store content and installs rules for ghID.
func (s *Store) Replace(ghID int, rules []models.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ghID = ghID
	s.loaded = true
	s.rules = make([]models.Rule, 0, len(rules))
	for _, r := range rules {
		s.rules = append(s.rules, r.Clone())
	}
}

// Reset empties the store.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ghID = 0
	s.loaded = false
	s.rules = nil
}

// GreenhouseID returns the greenhouse the store holds rules for.
func (s *Store) GreenhouseID() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ghID, s.loaded
}

// List returns a copy of the rules in store order.
func (s *Store) List() []models.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Clone()
	}
	return out
}

// Get returns a copy of one rule.
func (s *Store) Get(id int) (models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Rule{}, fmt.Errorf("rule %d: %w", id, ErrRuleNotFound)
	}
	return s.rules[i].Clone(), nil
}

func (s *Store) indexOf(id int) int {
	for i, r := range s.rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Create submits rule and appends the stored record. If the store moved to
// another greenhouse meanwhile, the record is returned but not inserted.
func (s *Store) Create(ctx context.Context, rule models.Rule) (models.Rule, error) {
	if err := rule.CheckShape(); err != nil {
		return models.Rule{}, err
	}
	created, err := s.authority.CreateRule(ctx, rule.GreenhouseID, rule)
	if err != nil {
		return models.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	if created.ID == 0 {
		return models.Rule{}, fmt.Errorf("create rule: %w: no rule id", ErrBadReply)
	}
	if err := created.CheckShape(); err != nil {
		return models.Rule{}, fmt.Errorf("create rule %d: %w: %v", created.ID, ErrBadReply, err)
	}
	if created.GreenhouseID == 0 {
		created.GreenhouseID = rule.GreenhouseID
	}

	s.mu.Lock()
	switch {
	case !s.loaded || s.ghID != created.GreenhouseID:
		s.logger.Info("Created rule belongs to a greenhouse no longer loaded",
			zap.Int("rule_id", created.ID), zap.Int("gh_id", created.GreenhouseID))
	case s.indexOf(created.ID) >= 0:
		s.rules[s.indexOf(created.ID)] = created.Clone()
	default:
		s.rules = append(s.rules, created.Clone())
	}
	s.mu.Unlock()

	s.notify(ctx, Change{Op: OpCreated, Rule: created})
	return created, nil
}

// Update sends patch for rule id. The authority's returned record wins; when
// it answers without one the patch is merged onto the local record.
func (s *Store) Update(ctx context.Context, id int, patch models.RulePatch) (models.Rule, error) {
	existing, err := s.Get(id)
	if err != nil {
		return models.Rule{}, err
	}
	if patch.IsEmpty() {
		return existing, nil
	}
	merged := patch.Apply(existing)
	if err := merged.CheckShape(); err != nil {
		return models.Rule{}, err
	}

	returned, err := s.authority.UpdateRule(ctx, id, patch)
	if err != nil {
		return models.Rule{}, fmt.Errorf("update rule %d: %w", id, err)
	}
	updated := merged
	if returned != nil {
		updated = returned.Clone()
		if updated.ID == 0 {
			updated.ID = id
		}
		if updated.GreenhouseID == 0 {
			updated.GreenhouseID = existing.GreenhouseID
		}
	}

	s.replaceLocal(updated)
	s.notify(ctx, Change{Op: OpUpdated, Rule: updated})
	return updated, nil
}

// Delete removes rule id after confirm agrees. It reports whether the rule
// was deleted; a refusal is not an error.
func (s *Store) Delete(ctx context.Context, id int, confirm Confirm) (bool, error) {
	existing, err := s.Get(id)
	if err != nil {
		return false, err
	}
	if confirm == nil || !confirm(existing) {
		s.logger.Debug("Delete not confirmed", zap.Int("rule_id", id))
		return false, nil
	}
	if err := s.authority.DeleteRule(ctx, id); err != nil {
		return false, fmt.Errorf("delete rule %d: %w", id, err)
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.rules = append(s.rules[:i:i], s.rules[i+1:]...)
	}
	s.mu.Unlock()

	s.notify(ctx, Change{Op: OpDeleted, Rule: existing})
	return true, nil
}

func (s *Store) replaceLocal(r models.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(r.ID); i >= 0 {
		s.rules[i] = r.Clone()
	}
}

func (s *Store) notify(ctx context.Context, change Change) {
	s.mu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.RUnlock()
	for _, o := range observers {
		if err := o.RuleChanged(ctx, change); err != nil {
			s.logger.Warn("Rule change observer failed",
				zap.String("op", string(change.Op)),
				zap.Int("rule_id", change.Rule.ID),
				zap.Error(err),
			)
		}
	}
}
