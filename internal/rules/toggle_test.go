package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartgreenhouse/internal/models"
)

func TestToggle_AppliesServerValue(t *testing.T) {
	s, auth := seeded(t)
	auth.toggleReply = &models.ToggleResult{RuleID: 3, Enabled: false}

	got, err := s.Toggle(context.Background(), 3, true)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, auth.toggles)
	assert.False(t, got.Enabled)

	stored, _ := s.Get(3)
	assert.False(t, stored.Enabled)
}

func TestToggle_RejectsReplyForOtherRule(t *testing.T) {
	s, auth := seeded(t)
	auth.toggleReply = &models.ToggleResult{RuleID: 2, Enabled: true}

	_, err := s.Toggle(context.Background(), 3, true)
	assert.ErrorIs(t, err, ErrBadReply)
	stored, _ := s.Get(3)
	assert.False(t, stored.Enabled)
	other, _ := s.Get(2)
	assert.True(t, other.Enabled)
}

func TestToggle_FailureKeepsValue(t *testing.T) {
	s, auth := seeded(t)
	auth.err = errors.New("offline")

	_, err := s.Toggle(context.Background(), 1, false)
	assert.Error(t, err)
	stored, _ := s.Get(1)
	assert.True(t, stored.Enabled)
}

func TestToggle_UnknownRule(t *testing.T) {
	s, auth := seeded(t)
	_, err := s.Toggle(context.Background(), 99, true)
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.Empty(t, auth.toggles)
}

func TestFlip(t *testing.T) {
	s, auth := seeded(t)

	got, err := s.Flip(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, got.Enabled)

	got, err = s.Flip(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, []bool{true, false}, auth.toggles)
}

func TestToggle_KeepsOtherFields(t *testing.T) {
	s, _ := seeded(t)
	before, _ := s.Get(1)

	after, err := s.Toggle(context.Background(), 1, false)
	require.NoError(t, err)
	before.Enabled = false
	assert.Equal(t, before, after)
}
