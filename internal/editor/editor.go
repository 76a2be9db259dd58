package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/utils"
)

var (
	ErrDraftActive     = errors.New("a draft is already active")
	ErrNoDraft         = errors.New("no active draft")
	ErrNoGreenhouse    = errors.New("no greenhouse selected")
	ErrFieldNotAllowed = errors.New("field not allowed for rule kind")
)

// State of the editor
type State int

const (
	StateIdle State = iota
	StateAdding
	StateEditing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdding:
		return "adding"
	case StateEditing:
		return "editing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Greenhouses reports the active greenhouse
type Greenhouses interface {
	Active() (int, bool)
}

// TimeSensors resolves the default source of time rules
type TimeSensors interface {
	TimeSensor() int
}

// Store commits drafts
type Store interface {
	Get(id int) (models.Rule, error)
	Create(ctx context.Context, rule models.Rule) (models.Rule, error)
	Update(ctx context.Context, id int, patch models.RulePatch) (models.Rule, error)
}

// Editor runs the add/edit workflow for a single rule at a time.
type Editor struct {
	greenhouses Greenhouses
	sensors     TimeSensors
	store       Store
	validate    *validator.Validate
	logger      *zap.Logger

	mu       sync.Mutex
	state    State
	draft    Draft
	original models.Rule
}

// New creates an idle editor
func New(greenhouses Greenhouses, sensors TimeSensors, store Store, logger *zap.Logger) *Editor {
	return &Editor{
		greenhouses: greenhouses,
		sensors:     sensors,
		store:       store,
		validate:    newValidator(),
		logger:      utils.OrNop(logger),
	}
}

// State returns the current state and, while editing, the rule id.
func (e *Editor) State() (State, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateEditing {
		return e.state, e.draft.RuleID
	}
	return e.state, 0
}

// Draft returns a copy of the active draft.
func (e *Editor) Draft() (Draft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateIdle {
		return Draft{}, false
	}
	return e.draft.clone(), true
}

// StartAdd opens a new time rule draft for the active greenhouse.
func (e *Editor) StartAdd() (Draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return Draft{}, ErrDraftActive
	}
	ghID, ok := e.greenhouses.Active()
	if !ok {
		return Draft{}, ErrNoGreenhouse
	}
	e.draft = Draft{
		GreenhouseID:    ghID,
		Kind:            models.KindTime,
		FromComponentID: e.sensors.TimeSensor(),
		Enabled:         true,
	}
	e.original = models.Rule{}
	e.state = StateAdding
	e.logger.Debug("Draft opened", zap.Int("gh_id", ghID))
	return e.draft.clone(), nil
}

// StartEdit opens a draft holding a full copy of rule id.
func (e *Editor) StartEdit(id int) (Draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return Draft{}, ErrDraftActive
	}
	rule, err := e.store.Get(id)
	if err != nil {
		return Draft{}, err
	}
	e.original = rule.Clone()
	e.draft = FromRule(rule)
	e.state = StateEditing
	e.logger.Debug("Draft opened for rule", zap.Int("rule_id", id))
	return e.draft.clone(), nil
}

// Cancel discards the draft. It is a no-op when idle.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		e.logger.Debug("Draft discarded", zap.Stringer("state", e.state))
	}
	e.reset()
}

func (e *Editor) reset() {
	e.state = StateIdle
	e.draft = Draft{}
	e.original = models.Rule{}
}

// Edits is a set of draft field changes. Kind is applied first.
type Edits struct {
	Name            *string          `json:"name,omitempty"`
	Kind            *models.Kind     `json:"kind,omitempty"`
	FromComponentID *int             `json:"from_comp_id,omitempty"`
	ToComponentID   *int             `json:"to_comp_id,omitempty"`
	Operator        *models.Operator `json:"operator,omitempty"`
	Threshold       *float64         `json:"threshold,omitempty"`
	TimeSpec        *string          `json:"time_spec,omitempty"`
	Enabled         *bool            `json:"enabled,omitempty"`
}

// Apply changes the draft. Either every edit applies or none does.
func (e *Editor) Apply(edits Edits) (Draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateIdle {
		return Draft{}, ErrNoDraft
	}

	d := e.draft.clone()
	if edits.Kind != nil {
		if err := e.switchKind(&d, *edits.Kind); err != nil {
			return Draft{}, err
		}
	}
	if edits.Name != nil {
		d.Name = *edits.Name
	}
	if edits.ToComponentID != nil {
		d.ToComponentID = *edits.ToComponentID
	}
	if edits.Enabled != nil {
		d.Enabled = *edits.Enabled
	}
	if edits.FromComponentID != nil {
		if d.Kind != models.KindThreshold {
			return Draft{}, fmt.Errorf("from_comp_id: %w", ErrFieldNotAllowed)
		}
		d.FromComponentID = *edits.FromComponentID
	}
	if edits.Operator != nil {
		if d.Kind != models.KindThreshold {
			return Draft{}, fmt.Errorf("operator: %w", ErrFieldNotAllowed)
		}
		d.Operator = *edits.Operator
	}
	if edits.Threshold != nil {
		if d.Kind != models.KindThreshold {
			return Draft{}, fmt.Errorf("threshold: %w", ErrFieldNotAllowed)
		}
		v := *edits.Threshold
		d.Threshold = &v
	}
	if edits.TimeSpec != nil {
		if d.Kind != models.KindTime {
			return Draft{}, fmt.Errorf("time_spec: %w", ErrFieldNotAllowed)
		}
		d.TimeSpec = *edits.TimeSpec
	}

	e.draft = d
	return d.clone(), nil
}

// switchKind moves d to kind, clearing the fields the new kind forbids.
func (e *Editor) switchKind(d *Draft, kind models.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("kind %q: %w", kind, models.ErrUnknownKind)
	}
	if d.Kind == kind {
		return nil
	}
	d.Kind = kind
	switch kind {
	case models.KindTime:
		d.Operator = ""
		d.Threshold = nil
		d.FromComponentID = e.sensors.TimeSensor()
	case models.KindThreshold:
		d.TimeSpec = ""
		if d.Operator == "" {
			d.Operator = models.DefaultOperator
		}
		if d.Threshold == nil {
			zero := 0.0
			d.Threshold = &zero
		}
		d.FromComponentID = models.NoComponent
	}
	return nil
}

func (e *Editor) SetKind(kind models.Kind) (Draft, error) {
	return e.Apply(Edits{Kind: &kind})
}

func (e *Editor) SetName(name string) (Draft, error) {
	return e.Apply(Edits{Name: &name})
}

func (e *Editor) SetFromComponent(id int) (Draft, error) {
	return e.Apply(Edits{FromComponentID: &id})
}

func (e *Editor) SetToComponent(id int) (Draft, error) {
	return e.Apply(Edits{ToComponentID: &id})
}

func (e *Editor) SetOperator(op models.Operator) (Draft, error) {
	return e.Apply(Edits{Operator: &op})
}

func (e *Editor) SetThreshold(v float64) (Draft, error) {
	return e.Apply(Edits{Threshold: &v})
}

func (e *Editor) SetTimeSpec(spec string) (Draft, error) {
	return e.Apply(Edits{TimeSpec: &spec})
}

func (e *Editor) SetEnabled(enabled bool) (Draft, error) {
	return e.Apply(Edits{Enabled: &enabled})
}

// Validate checks the active draft without saving it.
func (e *Editor) Validate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateIdle {
		return ErrNoDraft
	}
	return validateDraft(e.validate, e.draft)
}

// Save validates the draft and commits it through the store. A validation
// failure keeps the draft and issues no request. Any other outcome returns
// the editor to idle; a failed request discards the draft.
func (e *Editor) Save(ctx context.Context) (models.Rule, error) {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return models.Rule{}, ErrNoDraft
	}
	if err := validateDraft(e.validate, e.draft); err != nil {
		e.mu.Unlock()
		return models.Rule{}, err
	}
	state, draft, original := e.state, e.draft.clone(), e.original
	e.reset()
	e.mu.Unlock()

	switch state {
	case StateAdding:
		created, err := e.store.Create(ctx, draft.Rule())
		if err != nil {
			e.logger.Warn("Draft discarded after failed create", zap.Error(err))
			return models.Rule{}, err
		}
		return created, nil
	default:
		patch := models.Diff(original, draft.Rule())
		if patch.IsEmpty() {
			return original, nil
		}
		updated, err := e.store.Update(ctx, draft.RuleID, patch)
		if err != nil {
			e.logger.Warn("Draft discarded after failed update", zap.Int("rule_id", draft.RuleID), zap.Error(err))
			return models.Rule{}, err
		}
		return updated, nil
	}
}
