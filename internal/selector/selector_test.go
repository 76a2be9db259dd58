package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartgreenhouse/internal/models"
)

type fakeSource struct {
	list  []models.Greenhouse
	err   error
	calls int
}

func (f *fakeSource) ListGreenhouses(ctx context.Context) ([]models.Greenhouse, error) {
	f.calls++
	return f.list, f.err
}

func TestSelector_LoadSelectsFirst(t *testing.T) {
	src := &fakeSource{list: []models.Greenhouse{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}}
	s := New(src, nil)

	var got []Selection
	s.Subscribe(func(ctx context.Context, sel Selection) { got = append(got, sel) })

	require.NoError(t, s.Load(context.Background()))
	id, ok := s.Active()
	assert.True(t, ok)
	assert.Equal(t, 1, id)
	assert.Equal(t, []Selection{{GreenhouseID: 1, Version: 1}}, got)
	assert.Equal(t, src.list, s.Greenhouses())

	// Load happens once.
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 1, src.calls)
	assert.Len(t, got, 1)
}

func TestSelector_LoadEmptyHasNoSelection(t *testing.T) {
	s := New(&fakeSource{}, nil)
	require.NoError(t, s.Load(context.Background()))

	_, ok := s.Active()
	assert.False(t, ok)
	assert.True(t, s.Loaded())
}

func TestSelector_LoadFailureIsRetryable(t *testing.T) {
	src := &fakeSource{err: errors.New("offline")}
	s := New(src, nil)

	assert.Error(t, s.Load(context.Background()))
	assert.False(t, s.Loaded())

	src.err = nil
	src.list = []models.Greenhouse{{ID: 4, Name: "D"}}
	require.NoError(t, s.Load(context.Background()))
	id, _ := s.Active()
	assert.Equal(t, 4, id)
}

func TestSelector_Select(t *testing.T) {
	s := New(&fakeSource{list: []models.Greenhouse{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}}, nil)
	var got []Selection
	s.Subscribe(func(ctx context.Context, sel Selection) { got = append(got, sel) })
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.Select(context.Background(), 2))
	require.NoError(t, s.Select(context.Background(), 2))
	assert.ErrorIs(t, s.Select(context.Background(), 3), ErrUnknownGreenhouse)

	assert.Equal(t, []Selection{{GreenhouseID: 1, Version: 1}, {GreenhouseID: 2, Version: 2}}, got)
	id, _ := s.Active()
	assert.Equal(t, 2, id)
}

func TestSelector_ResetBumpsVersion(t *testing.T) {
	s := New(&fakeSource{list: []models.Greenhouse{{ID: 1, Name: "A"}}}, nil)
	require.NoError(t, s.Load(context.Background()))
	s.Reset()

	sel, ok := s.Current()
	assert.False(t, ok)
	assert.Equal(t, uint64(2), sel.Version)
	assert.Empty(t, s.Greenhouses())
}
