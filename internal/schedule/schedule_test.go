package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccepts(t *testing.T) {
	for _, raw := range []string{
		"@every 60s",
		"@every 5m",
		"@every 1h30m",
		"@hourly",
		"@daily",
		"* * * * *",
		"*/5 * * * *",
		"30 4 * * *",
		"0 3 * * 1",
	} {
		_, err := Parse(raw)
		assert.NoError(t, err, "schedule %q should parse", raw)
	}
}

func TestParseRejects(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"every 5 minutes",
		"* * *",
		"* * * * * *",
		"61 * * * *",
		"@every",
		"@every bananas",
	} {
		err := Validate(raw)
		assert.Error(t, err, "schedule %q should be rejected", raw)
	}
}

func TestNextRunIntervalFromCreation(t *testing.T) {
	spec, err := Parse("@every 60s")
	require.NoError(t, err)

	created := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	next := spec.NextRun(nil, created)
	assert.Equal(t, created.Add(time.Minute), next)
}

func TestNextRunIntervalFromLastRun(t *testing.T) {
	spec, err := Parse("@every 5m")
	require.NoError(t, err)

	created := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	last := created.Add(25 * time.Minute)
	next := spec.NextRun(&last, created)
	assert.Equal(t, last.Add(5*time.Minute), next)
}

func TestNextRunAnchorsToLatestTimestamp(t *testing.T) {
	spec, err := Parse("@every 1m")
	require.NoError(t, err)

	created := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	stale := created.Add(-time.Hour) // lastRunAt never moves backwards, but be safe
	next := spec.NextRun(&stale, created)
	assert.Equal(t, created.Add(time.Minute), next)
}

func TestNextRunCron(t *testing.T) {
	spec, err := Parse("30 4 * * *")
	require.NoError(t, err)

	last := time.Date(2026, 8, 22, 4, 30, 0, 0, time.UTC)
	next := spec.NextRun(&last, last.Add(-time.Hour))
	assert.Equal(t, time.Date(2026, 8, 23, 4, 30, 0, 0, time.UTC), next)
}

func TestDueBoundaryIsInclusive(t *testing.T) {
	spec, err := Parse("@every 60s")
	require.NoError(t, err)

	created := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	exactly := created.Add(time.Minute)

	assert.True(t, spec.Due(nil, created, exactly), "task due at now == nextRunAt must fire")
	assert.False(t, spec.Due(nil, created, exactly.Add(-time.Second)))
	assert.True(t, spec.Due(nil, created, exactly.Add(time.Hour)))
}

func TestNextRunIntervalChain(t *testing.T) {
	spec, err := Parse("@every 1m")
	require.NoError(t, err)

	created := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	last := created
	for i := 0; i < 100; i++ {
		next := spec.NextRun(&last, created)
		require.Equal(t, last.Add(time.Minute), next, "iteration %d", i)
		last = next
	}
}
