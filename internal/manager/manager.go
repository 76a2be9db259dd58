package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smartgreenhouse/internal/directory"
	"smartgreenhouse/internal/editor"
	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/notify"
	"smartgreenhouse/internal/rules"
	"smartgreenhouse/internal/selector"
	"smartgreenhouse/internal/utils"
)

// ErrNotLoaded is returned when a draft is started before the active
// greenhouse's rules and components are loaded.
var ErrNotLoaded = errors.New("greenhouse data not loaded")

// Authority is everything the manager needs from the remote rule authority.
type Authority interface {
	selector.Source
	directory.Lister
	rules.Authority
}

// Recorder receives operational counters
type Recorder interface {
	ObserveLoad(result string, d time.Duration)
	CountMutation(op, result string)
	CountValidationFailure()
}

type nopRecorder struct{}

func (nopRecorder) ObserveLoad(string, time.Duration) {}
func (nopRecorder) CountMutation(string, string)      {}
func (nopRecorder) CountValidationFailure()           {}

// SessionCloser ends the operator session on logout
type SessionCloser interface {
	Logout(ctx context.Context) error
}

// Options for New. Zero values fall back to no-op collaborators.
type Options struct {
	Notifier notify.Notifier
	Recorder Recorder
	Session  SessionCloser
	Logger   *zap.Logger
	Location *time.Location
	Now      func() time.Time
}

// LoadError is the single error of a failed greenhouse load.
type LoadError struct {
	GreenhouseID int
	Err          error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load greenhouse %d: %v", e.GreenhouseID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadState describes the rules and components of the active greenhouse.
// Data is shown only when Loaded is true.
type LoadState struct {
	GreenhouseID int
	Loading      bool
	Loaded       bool
	Err          error
}

// Manager wires the selector, the directory cache, the rule store and the
// draft editor together and turns their failures into notices.
type Manager struct {
	selector *selector.Selector
	cache    *directory.Cache
	store    *rules.Store
	editor   *editor.Editor

	notifier notify.Notifier
	recorder Recorder
	session  SessionCloser
	logger   *zap.Logger
	loc      *time.Location
	now      func() time.Time

	mu             sync.RWMutex
	seq            uint64
	data           LoadState
	greenhousesErr error
}

// New builds a manager over authority.
func New(authority Authority, opts Options) *Manager {
	logger := utils.OrNop(opts.Logger)
	m := &Manager{
		selector: selector.New(authority, logger.Named("selector")),
		cache:    directory.NewCache(authority, logger.Named("directory")),
		store:    rules.NewStore(authority, logger.Named("rules")),
		notifier: opts.Notifier,
		recorder: opts.Recorder,
		session:  opts.Session,
		logger:   logger,
		loc:      opts.Location,
		now:      opts.Now,
	}
	m.editor = editor.New(m.selector, m.cache, m.store, logger.Named("editor"))
	if m.notifier == nil {
		m.notifier = notify.NewLogNotifier(logger)
	}
	if m.recorder == nil {
		m.recorder = nopRecorder{}
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.selector.Subscribe(m.onSelection)
	return m
}

// AddObserver registers o for committed rule mutations.
func (m *Manager) AddObserver(o rules.Observer) {
	m.store.AddObserver(o)
}

func (m *Manager) Cache() *directory.Cache { return m.cache }

func (m *Manager) Store() *rules.Store { return m.store }

func (m *Manager) Editor() *editor.Editor { return m.editor }

// Start loads the greenhouse list; the first greenhouse is selected and its
// data loaded before Start returns. A failure can be retried by calling
// Start again.
func (m *Manager) Start(ctx context.Context) error {
	err := m.selector.Load(ctx)
	m.mu.Lock()
	m.greenhousesErr = err
	m.mu.Unlock()
	if err != nil {
		m.notice(ctx, notify.CategoryLoad, "load greenhouses", "Could not load greenhouses", err)
		return err
	}
	return nil
}

// Select makes id the active greenhouse and loads its data.
func (m *Manager) Select(ctx context.Context, id int) error {
	return m.selector.Select(ctx, id)
}

// Reload fetches the data of the active greenhouse again. Before the list
// is loaded it retries Start.
func (m *Manager) Reload(ctx context.Context) error {
	if !m.selector.Loaded() {
		return m.Start(ctx)
	}
	sel, ok := m.selector.Current()
	if !ok {
		return nil
	}
	return m.load(ctx, sel)
}

func (m *Manager) onSelection(ctx context.Context, sel selector.Selection) {
	if !m.isCurrent(sel.Version) {
		m.logger.Info("Ignoring superseded selection", zap.Int("gh_id", sel.GreenhouseID), zap.Uint64("version", sel.Version))
		return
	}
	// Component references of an open draft belong to the previous greenhouse.
	m.editor.Cancel()
	_ = m.load(ctx, sel)
}

// isCurrent reports whether version is still the selector's latest selection.
func (m *Manager) isCurrent(version uint64) bool {
	cur, ok := m.selector.Current()
	return ok && cur.Version == version
}

// load fetches rules, sensors and actuators of the selected greenhouse
// concurrently. The result is installed only if no later load started and
// sel is still the active selection.
func (m *Manager) load(ctx context.Context, sel selector.Selection) error {
	ghID := sel.GreenhouseID
	m.mu.Lock()
	if !m.isCurrent(sel.Version) {
		m.mu.Unlock()
		m.recorder.ObserveLoad("stale", 0)
		return nil
	}
	m.seq++
	seq := m.seq
	m.data = LoadState{GreenhouseID: ghID, Loading: true}
	m.store.Reset()
	m.cache.Reset()
	m.mu.Unlock()

	start := m.now()
	var (
		ruleList []models.Rule
		snap     directory.Snapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := m.store.Fetch(gctx, ghID)
		if err != nil {
			return fmt.Errorf("rules: %w", err)
		}
		ruleList = list
		return nil
	})
	g.Go(func() error {
		s, err := m.cache.Fetch(gctx, ghID)
		if err != nil {
			return fmt.Errorf("components: %w", err)
		}
		snap = s
		return nil
	})
	err := g.Wait()
	elapsed := m.now().Sub(start)

	m.mu.Lock()
	if seq != m.seq || !m.isCurrent(sel.Version) {
		m.mu.Unlock()
		m.logger.Info("Discarding superseded greenhouse load",
			zap.Int("gh_id", ghID),
			zap.Uint64("seq", seq),
			zap.Uint64("version", sel.Version),
		)
		m.recorder.ObserveLoad("stale", elapsed)
		return nil
	}
	if err != nil {
		loadErr := &LoadError{GreenhouseID: ghID, Err: err}
		m.data = LoadState{GreenhouseID: ghID, Err: loadErr}
		m.mu.Unlock()
		m.recorder.ObserveLoad("error", elapsed)
		m.notice(ctx, notify.CategoryLoad, "load greenhouse", "Could not load rules and components", loadErr)
		return loadErr
	}
	m.store.Replace(ghID, ruleList)
	m.cache.Apply(snap)
	m.data = LoadState{GreenhouseID: ghID, Loaded: true}
	m.mu.Unlock()

	m.recorder.ObserveLoad("ok", elapsed)
	m.logger.Info("Greenhouse loaded",
		zap.Int("gh_id", ghID),
		zap.Int("rules", len(ruleList)),
		zap.Int("sensors", len(snap.Sensors)),
		zap.Int("actuators", len(snap.Actuators)),
	)
	return nil
}

// LoadState returns the state of the active greenhouse's data.
func (m *Manager) LoadState() LoadState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data
}

// Greenhouses returns the list and its load error, if any.
func (m *Manager) Greenhouses() ([]models.Greenhouse, error) {
	m.mu.RLock()
	err := m.greenhousesErr
	m.mu.RUnlock()
	return m.selector.Greenhouses(), err
}

// Active returns the selected greenhouse.
func (m *Manager) Active() (int, bool) {
	return m.selector.Active()
}

// Rules returns the rules of the active greenhouse, nil unless loaded.
func (m *Manager) Rules() []models.Rule {
	if !m.LoadState().Loaded {
		return nil
	}
	return m.store.List()
}

// Components returns sensors and actuators, nil unless loaded.
func (m *Manager) Components() (sensors, actuators []models.Component) {
	if !m.LoadState().Loaded {
		return nil, nil
	}
	return m.cache.Sensors(), m.cache.Actuators()
}

// StartAdd opens an add draft. The Time sensor is resolved from the
// directory, so the active greenhouse must be loaded.
func (m *Manager) StartAdd() (editor.Draft, error) {
	if !m.LoadState().Loaded {
		return editor.Draft{}, ErrNotLoaded
	}
	return m.editor.StartAdd()
}

func (m *Manager) StartEdit(id int) (editor.Draft, error) {
	if !m.LoadState().Loaded {
		return editor.Draft{}, ErrNotLoaded
	}
	return m.editor.StartEdit(id)
}

func (m *Manager) Draft() (editor.Draft, bool) {
	return m.editor.Draft()
}

func (m *Manager) EditDraft(edits editor.Edits) (editor.Draft, error) {
	return m.editor.Apply(edits)
}

func (m *Manager) CancelDraft() {
	m.editor.Cancel()
}

// SaveDraft commits the active draft. Validation failures and failed
// requests both produce a notice.
func (m *Manager) SaveDraft(ctx context.Context) (models.Rule, error) {
	state, _ := m.editor.State()
	op := "create"
	if state == editor.StateEditing {
		op = "update"
	}

	rule, err := m.editor.Save(ctx)
	var verr *editor.ValidationError
	switch {
	case err == nil:
		m.recorder.CountMutation(op, "ok")
	case errors.As(err, &verr):
		m.recorder.CountValidationFailure()
		m.notice(ctx, notify.CategoryValidation, op, "Draft is incomplete", err)
	case errors.Is(err, editor.ErrNoDraft):
	default:
		m.recorder.CountMutation(op, "error")
		m.notice(ctx, notify.CategoryMutation, op, "Could not save rule", err)
	}
	return rule, err
}

// Delete removes rule id when confirmed is true.
func (m *Manager) Delete(ctx context.Context, id int, confirmed bool) (bool, error) {
	deleted, err := m.store.Delete(ctx, id, func(models.Rule) bool { return confirmed })
	if err != nil {
		m.recorder.CountMutation("delete", "error")
		m.notice(ctx, notify.CategoryMutation, "delete", "Could not delete rule", err)
		return false, err
	}
	if deleted {
		m.recorder.CountMutation("delete", "ok")
	}
	return deleted, nil
}

// Toggle sets the enabled flag of rule id, independent of any draft.
func (m *Manager) Toggle(ctx context.Context, id int, desired bool) (models.Rule, error) {
	rule, err := m.store.Toggle(ctx, id, desired)
	return rule, m.toggled(ctx, err)
}

// Flip inverts the enabled flag of rule id.
func (m *Manager) Flip(ctx context.Context, id int) (models.Rule, error) {
	rule, err := m.store.Flip(ctx, id)
	return rule, m.toggled(ctx, err)
}

func (m *Manager) toggled(ctx context.Context, err error) error {
	if err != nil {
		m.recorder.CountMutation("toggle", "error")
		m.notice(ctx, notify.CategoryMutation, "toggle", "Could not toggle rule", err)
		return err
	}
	m.recorder.CountMutation("toggle", "ok")
	return nil
}

// Logout discards every piece of greenhouse state and ends the session.
func (m *Manager) Logout(ctx context.Context) error {
	m.Clear()
	if m.session == nil {
		return nil
	}
	return m.session.Logout(ctx)
}

// Clear discards the greenhouse list, the loaded data and any draft, and
// invalidates loads in flight. The next Start fetches everything again.
func (m *Manager) Clear() {
	m.editor.Cancel()
	m.mu.Lock()
	m.seq++
	m.data = LoadState{}
	m.greenhousesErr = nil
	m.store.Reset()
	m.cache.Reset()
	m.mu.Unlock()
	m.selector.Reset()
}

func (m *Manager) notice(ctx context.Context, cat notify.Category, op, msg string, err error) {
	n := notify.Notice{Category: cat, Op: op, Message: msg, At: m.now()}
	if err != nil {
		n.Err = err.Error()
	}
	m.notifier.Notify(ctx, n)
}
