package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartgreenhouse/internal/editor"
	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/notify"
)

type fakeAuthority struct {
	mu          sync.Mutex
	greenhouses []models.Greenhouse
	ghErr       error
	rules       map[int][]models.Rule
	components  map[int][]models.Component
	compErr     map[int]error
	toggleErr   error
	creates     int

	// block, when set for a greenhouse, holds ListRules until closed.
	block   map[int]chan struct{}
	started chan int
}

func newFakeAuthority() *fakeAuthority {
	sensorTime := models.Component{ID: 6, GreenhouseID: 1, Name: "Clock", Role: models.RoleSensor, Subtype: "Time"}
	sensorTemp := models.Component{ID: 5, GreenhouseID: 1, Name: "Air temp", Role: models.RoleSensor, Subtype: "temperature"}
	fan := models.Component{ID: 9, GreenhouseID: 1, Name: "Fan", Role: models.RoleActuator, Subtype: "fan"}
	pump := models.Component{ID: 19, GreenhouseID: 2, Name: "Pump", Role: models.RoleActuator, Subtype: "pump"}

	r1 := models.NewThresholdRule(1, "Cool down", 5, 9, models.OpGreater, 28)
	r1.ID = 1
	r2 := models.NewTimeRule(1, "Morning fan", 6, 9, "08:00")
	r2.ID = 2
	r3 := models.NewTimeRule(2, "Water", 0, 19, "06:30")
	r3.ID = 3

	return &fakeAuthority{
		greenhouses: []models.Greenhouse{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}},
		rules:       map[int][]models.Rule{1: {r1, r2}, 2: {r3}},
		components:  map[int][]models.Component{1: {sensorTime, sensorTemp, fan}, 2: {pump}},
		compErr:     map[int]error{},
		block:       map[int]chan struct{}{},
	}
}

func (f *fakeAuthority) ListGreenhouses(ctx context.Context) ([]models.Greenhouse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.greenhouses, f.ghErr
}

func (f *fakeAuthority) ListComponents(ctx context.Context, ghID int, role models.Role) ([]models.Component, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.compErr[ghID]; err != nil {
		return nil, err
	}
	var out []models.Component
	for _, c := range f.components[ghID] {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAuthority) ListRules(ctx context.Context, ghID int) ([]models.Rule, error) {
	f.mu.Lock()
	wait := f.block[ghID]
	started := f.started
	f.mu.Unlock()
	if wait != nil {
		if started != nil {
			started <- ghID
		}
		<-wait
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rules[ghID], nil
}

func (f *fakeAuthority) CreateRule(ctx context.Context, ghID int, rule models.Rule) (models.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	rule.ID = 100 + f.creates
	rule.GreenhouseID = ghID
	return rule, nil
}

func (f *fakeAuthority) UpdateRule(ctx context.Context, id int, patch models.RulePatch) (*models.Rule, error) {
	return nil, nil
}

func (f *fakeAuthority) DeleteRule(ctx context.Context, id int) error { return nil }

func (f *fakeAuthority) ToggleRule(ctx context.Context, id int, desired bool) (models.ToggleResult, error) {
	if f.toggleErr != nil {
		return models.ToggleResult{}, f.toggleErr
	}
	return models.ToggleResult{RuleID: id, Enabled: desired}, nil
}

type countingRecorder struct {
	mu          sync.Mutex
	loads       map[string]int
	mutations   map[string]int
	validations int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{loads: map[string]int{}, mutations: map[string]int{}}
}

func (c *countingRecorder) ObserveLoad(result string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads[result]++
}

func (c *countingRecorder) CountMutation(op, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations[op+"/"+result]++
}

func (c *countingRecorder) CountValidationFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validations++
}

type fakeSession struct{ logouts int }

func (f *fakeSession) Logout(ctx context.Context) error {
	f.logouts++
	return nil
}

type fixture struct {
	m        *Manager
	auth     *fakeAuthority
	inbox    *notify.Inbox
	recorder *countingRecorder
	session  *fakeSession
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		auth:     newFakeAuthority(),
		inbox:    notify.NewInbox(0),
		recorder: newCountingRecorder(),
		session:  &fakeSession{},
	}
	f.m = New(f.auth, Options{
		Notifier: f.inbox,
		Recorder: f.recorder,
		Session:  f.session,
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
	return f
}

func ruleIDs(rules []models.Rule) []int {
	out := make([]int, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}

func TestManager_StartSelectsFirstAndLoads(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))

	id, ok := f.m.Active()
	require.True(t, ok)
	assert.Equal(t, 1, id)

	state := f.m.LoadState()
	assert.True(t, state.Loaded)
	assert.NoError(t, state.Err)
	assert.Equal(t, []int{1, 2}, ruleIDs(f.m.Rules()))

	sensors, actuators := f.m.Components()
	assert.Len(t, sensors, 2)
	assert.Len(t, actuators, 1)
	assert.Equal(t, 1, f.recorder.loads["ok"])
}

func TestManager_StartFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.auth.ghErr = errors.New("offline")

	assert.Error(t, f.m.Start(context.Background()))
	_, err := f.m.Greenhouses()
	assert.Error(t, err)
	notices := f.inbox.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.CategoryLoad, notices[0].Category)

	f.auth.ghErr = nil
	require.NoError(t, f.m.Reload(context.Background()))
	list, err := f.m.Greenhouses()
	assert.NoError(t, err)
	assert.Len(t, list, 2)
	assert.True(t, f.m.LoadState().Loaded)
}

func TestManager_PartialFailureShowsNoData(t *testing.T) {
	f := newFixture(t)
	f.auth.compErr[1] = errors.New("components down")

	require.NoError(t, f.m.Start(context.Background()))
	state := f.m.LoadState()
	assert.False(t, state.Loaded)
	var loadErr *LoadError
	require.ErrorAs(t, state.Err, &loadErr)
	assert.Equal(t, 1, loadErr.GreenhouseID)

	assert.Nil(t, f.m.Rules())
	sensors, actuators := f.m.Components()
	assert.Nil(t, sensors)
	assert.Nil(t, actuators)

	notices := f.inbox.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.CategoryLoad, notices[0].Category)

	delete(f.auth.compErr, 1)
	require.NoError(t, f.m.Reload(context.Background()))
	assert.Equal(t, []int{1, 2}, ruleIDs(f.m.Rules()))
}

func TestManager_SelectReplacesData(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))
	require.NoError(t, f.m.Select(context.Background(), 2))

	assert.Equal(t, []int{3}, ruleIDs(f.m.Rules()))
	sensors, actuators := f.m.Components()
	assert.Empty(t, sensors)
	require.Len(t, actuators, 1)
	assert.Equal(t, "Pump", actuators[0].Name)
	assert.Equal(t, models.NoComponent, f.m.Cache().TimeSensor())
}

func TestManager_StaleLoadIsDiscarded(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.auth.block[1] = release
	f.auth.started = make(chan int, 1)

	done := make(chan error, 1)
	go func() { done <- f.m.Start(context.Background()) }()

	// Load of greenhouse 1 is in flight; greenhouse 2 is selected meanwhile.
	require.Equal(t, 1, <-f.auth.started)
	require.NoError(t, f.m.Select(context.Background(), 2))
	assert.Equal(t, []int{3}, ruleIDs(f.m.Rules()))

	close(release)
	require.NoError(t, <-done)

	state := f.m.LoadState()
	assert.Equal(t, 2, state.GreenhouseID)
	assert.True(t, state.Loaded)
	assert.Equal(t, []int{3}, ruleIDs(f.m.Rules()))
	gh, _ := f.m.Cache().GreenhouseID()
	assert.Equal(t, 2, gh)
	assert.Equal(t, 1, f.recorder.loads["stale"])
}

func TestManager_LateOlderSelectionIsIgnored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))
	first, _ := f.m.selector.Current()
	require.NoError(t, f.m.Select(context.Background(), 2))
	_, err := f.m.StartEdit(3)
	require.NoError(t, err)

	// The listener for the first selection runs after the second one finished.
	f.m.onSelection(context.Background(), first)

	id, _ := f.m.Active()
	assert.Equal(t, 2, id)
	state := f.m.LoadState()
	assert.Equal(t, 2, state.GreenhouseID)
	assert.True(t, state.Loaded)
	assert.Equal(t, []int{3}, ruleIDs(f.m.Rules()))
	_, ok := f.m.Draft()
	assert.True(t, ok)
}

func TestManager_LoadForOldSelectionIsNotInstalled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))
	first, _ := f.m.selector.Current()
	require.NoError(t, f.m.Select(context.Background(), 2))

	require.NoError(t, f.m.load(context.Background(), first))
	assert.Equal(t, []int{3}, ruleIDs(f.m.Rules()))
	assert.Equal(t, 2, f.m.LoadState().GreenhouseID)
	assert.Equal(t, 1, f.recorder.loads["stale"])
}

func TestManager_StartAddWaitsForLoad(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.auth.block[1] = release
	f.auth.started = make(chan int, 1)

	done := make(chan error, 1)
	go func() { done <- f.m.Start(context.Background()) }()
	require.Equal(t, 1, <-f.auth.started)

	_, err := f.m.StartAdd()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, ok := f.m.Draft()
	assert.False(t, ok)

	close(release)
	require.NoError(t, <-done)
	d, err := f.m.StartAdd()
	require.NoError(t, err)
	assert.Equal(t, 6, d.FromComponentID)
}

func TestManager_SelectionCancelsDraft(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))
	_, err := f.m.StartEdit(1)
	require.NoError(t, err)

	require.NoError(t, f.m.Select(context.Background(), 2))
	_, ok := f.m.Draft()
	assert.False(t, ok)
}

func TestManager_AddDraftUsesTimeSensor(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))

	d, err := f.m.StartAdd()
	require.NoError(t, err)
	assert.Equal(t, 6, d.FromComponentID)
	assert.Equal(t, 1, d.GreenhouseID)

	name, to, spec := "Evening fan", 9, "19:00"
	_, err = f.m.EditDraft(editor.Edits{Name: &name, ToComponentID: &to, TimeSpec: &spec})
	require.NoError(t, err)
	created, err := f.m.SaveDraft(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, created.ID}, ruleIDs(f.m.Rules()))
	assert.Equal(t, 1, f.recorder.mutations["create/ok"])
}

func TestManager_SaveDraftValidationNotice(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))
	_, err := f.m.StartAdd()
	require.NoError(t, err)

	_, err = f.m.SaveDraft(context.Background())
	var verr *editor.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, f.recorder.validations)
	assert.Equal(t, 0, f.auth.creates)

	notices := f.inbox.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.CategoryValidation, notices[0].Category)
	assert.Equal(t, "create", notices[0].Op)
}

func TestManager_ToggleFailureNotice(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))
	f.auth.toggleErr = errors.New("rejected")

	_, err := f.m.Flip(context.Background(), 1)
	assert.Error(t, err)
	rule, _ := f.m.Store().Get(1)
	assert.True(t, rule.Enabled)

	notices := f.inbox.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.CategoryMutation, notices[0].Category)
	assert.Equal(t, 1, f.recorder.mutations["toggle/error"])
}

func TestManager_ToggleIndependentOfDraft(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))
	_, err := f.m.StartEdit(2)
	require.NoError(t, err)

	rule, err := f.m.Toggle(context.Background(), 2, false)
	require.NoError(t, err)
	assert.False(t, rule.Enabled)
	_, ok := f.m.Draft()
	assert.True(t, ok)
}

func TestManager_DeleteConfirmation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))

	deleted, err := f.m.Delete(context.Background(), 1, false)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, []int{1, 2}, ruleIDs(f.m.Rules()))

	deleted, err = f.m.Delete(context.Background(), 1, true)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []int{2}, ruleIDs(f.m.Rules()))
}

func TestManager_NextFiring(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))

	p, err := f.m.NextFiring(2)
	require.NoError(t, err)
	require.NotNil(t, p.Next)
	assert.True(t, time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC).Equal(*p.Next))

	_, err = f.m.NextFiring(1)
	assert.ErrorIs(t, err, ErrNotTimeRule)
}

func TestManager_LogoutClearsEverything(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))
	_, err := f.m.StartAdd()
	require.NoError(t, err)

	require.NoError(t, f.m.Logout(context.Background()))
	assert.Equal(t, 1, f.session.logouts)
	_, ok := f.m.Active()
	assert.False(t, ok)
	_, ok = f.m.Draft()
	assert.False(t, ok)
	assert.Nil(t, f.m.Rules())
	list, _ := f.m.Greenhouses()
	assert.Empty(t, list)

	require.NoError(t, f.m.Start(context.Background()))
	id, _ := f.m.Active()
	assert.Equal(t, 1, id)
}

func TestManager_ClearForcesFreshStart(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Start(context.Background()))
	_, err := f.m.StartAdd()
	require.NoError(t, err)

	f.auth.mu.Lock()
	f.auth.greenhouses = []models.Greenhouse{{ID: 2, Name: "B"}}
	f.auth.mu.Unlock()

	f.m.Clear()
	assert.Equal(t, 0, f.session.logouts)
	_, ok := f.m.Draft()
	assert.False(t, ok)

	require.NoError(t, f.m.Start(context.Background()))
	list, err := f.m.Greenhouses()
	require.NoError(t, err)
	assert.Equal(t, []models.Greenhouse{{ID: 2, Name: "B"}}, list)
	id, _ := f.m.Active()
	assert.Equal(t, 2, id)
	assert.Equal(t, []int{3}, ruleIDs(f.m.Rules()))
}
