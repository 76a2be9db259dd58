package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDaily(t *testing.T) {
	spec, err := Parse("08:30", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, KindDaily, spec.Kind)
	assert.Equal(t, "30 8 * * *", spec.Cron)

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	next, ok := spec.Next(now)
	require.True(t, ok)
	assertSameInstant(t, time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC), next)

	next, _ = spec.Next(time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC))
	assertSameInstant(t, time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC), next)
}

func TestParseOneShot(t *testing.T) {
	spec, err := Parse("2024-06-01 06:00:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, KindOneShot, spec.Kind)

	next, ok := spec.Next(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assertSameInstant(t, time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC), next)

	_, ok = spec.Next(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestParseRFC3339(t *testing.T) {
	spec, err := Parse("2024-06-01T06:00:00Z", nil)
	require.NoError(t, err)
	assert.Equal(t, KindOneShot, spec.Kind)
}

func TestParseUnrecognized(t *testing.T) {
	for _, raw := range []string{"", "25:00", "every day", "8h"} {
		_, err := Parse(raw, time.UTC)
		assert.ErrorIs(t, err, ErrUnrecognized, raw)
	}
}

func TestPreviewAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	p, err := PreviewAt("2024-01-01 00:00:00", now, time.UTC)
	require.NoError(t, err)
	assert.Nil(t, p.Next)

	p, err = PreviewAt("21:15", now, time.UTC)
	require.NoError(t, err)
	require.NotNil(t, p.Next)
	assertSameInstant(t, time.Date(2024, 5, 1, 21, 15, 0, 0, time.UTC), *p.Next)
}

func assertSameInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}
