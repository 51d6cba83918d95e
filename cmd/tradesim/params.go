package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseValue types a command-line value: integers, then floats, then
// booleans, otherwise the string itself.
func parseValue(s string) any {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// parseParams turns ["k=v", ...] into a parameter map.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid param %q, expected key=value", p)
		}
		params[strings.TrimSpace(k)] = parseValue(v)
	}
	return params, nil
}

// parseGrid turns ["k=v1,v2", ...] into a sweep grid.
func parseGrid(pairs []string) (map[string][]any, error) {
	grid := make(map[string][]any, len(pairs))
	for _, p := range pairs {
		k, vs, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" || strings.TrimSpace(vs) == "" {
			return nil, fmt.Errorf("invalid grid %q, expected key=v1,v2,...", p)
		}
		for _, v := range strings.Split(vs, ",") {
			grid[k] = append(grid[k], parseValue(v))
		}
	}
	return grid, nil
}

// parseRange parses optional YYYY-MM-DD bounds. The end date is inclusive.
func parseRange(from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if from != "" {
		if start, err = time.Parse(time.DateOnly, from); err != nil {
			return start, end, fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
		}
	}
	if to != "" {
		if end, err = time.Parse(time.DateOnly, to); err != nil {
			return start, end, fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
		}
		if !start.IsZero() && end.Before(start) {
			return start, end, fmt.Errorf("end date must be after start date")
		}
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, nil
}
