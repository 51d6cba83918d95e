package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"fast_period=5", "threshold=0.25", "exit=true", "mode=long"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"fast_period": 5,
		"threshold":   0.25,
		"exit":        true,
		"mode":        "long",
	}, params)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseParams([]string{"=3"})
	assert.Error(t, err)
}

func TestParseGrid(t *testing.T) {
	grid, err := parseGrid([]string{"fast_period=2,3", "slow_period=10"})
	require.NoError(t, err)
	assert.Equal(t, []any{2, 3}, grid["fast_period"])
	assert.Equal(t, []any{10}, grid["slow_period"])

	_, err = parseGrid([]string{"fast_period="})
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	start, end, err := parseRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.True(t, end.After(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)))
	assert.True(t, end.Before(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))

	start, end, err = parseRange("", "")
	require.NoError(t, err)
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())

	_, _, err = parseRange("2024-02-01", "2024-01-01")
	assert.Error(t, err)
	_, _, err = parseRange("01/02/2024", "")
	assert.Error(t, err)
}
