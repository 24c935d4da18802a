package domain

import (
	"math"
	"testing"
)

func TestCardinalDirection(t *testing.T) {
	tests := []struct {
		name    string
		heading *float64
		want    Direction
	}{
		{"nil heading", nil, DirectionNone},
		{"zero heading", Float64(0), DirectionNone},
		{"just east of north", Float64(10), DirectionNorth},
		{"just west of north", Float64(350), DirectionNorth},
		{"full circle", Float64(360), DirectionNorth},
		{"north east", Float64(45), DirectionNorthEast},
		{"east", Float64(90), DirectionEast},
		{"south east", Float64(135), DirectionSouthEast},
		{"south", Float64(180), DirectionSouth},
		{"south west", Float64(225), DirectionSouthWest},
		{"west", Float64(270), DirectionWest},
		{"north west", Float64(315), DirectionNorthWest},
		{"boundary 22.5", Float64(22.5), DirectionNorthEast},
		{"boundary 67.5", Float64(67.5), DirectionEast},
		{"boundary 337.5", Float64(337.5), DirectionNorthWest},
		{"negative", Float64(-10), DirectionNone},
		{"NaN", Float64(math.NaN()), DirectionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CardinalDirection(tt.heading); got != tt.want {
				t.Errorf("CardinalDirection() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCardinalDirectionAlwaysKnownLabel(t *testing.T) {
	valid := map[Direction]bool{
		DirectionNone: true, DirectionNorth: true, DirectionNorthEast: true,
		DirectionEast: true, DirectionSouthEast: true, DirectionSouth: true,
		DirectionSouthWest: true, DirectionWest: true, DirectionNorthWest: true,
	}
	for h := -10.0; h <= 370; h += 0.5 {
		if d := CardinalDirection(Float64(h)); !valid[d] {
			t.Fatalf("CardinalDirection(%v) = %q, not a compass label", h, d)
		}
	}
}

func TestBoundaryHeadingsMatchBothBuckets(t *testing.T) {
	tests := []struct {
		heading float64
		want    []Direction
	}{
		{22.5, []Direction{DirectionNorth, DirectionNorthEast}},
		{67.5, []Direction{DirectionNorthEast, DirectionEast}},
		{337.5, []Direction{DirectionNorth, DirectionNorthWest}},
		{45, []Direction{DirectionNorthEast}},
	}
	for _, tt := range tests {
		got := matchingDirections(tt.heading)
		if len(got) != len(tt.want) {
			t.Fatalf("matchingDirections(%v) = %v, want %v", tt.heading, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("matchingDirections(%v)[%d] = %q, want %q", tt.heading, i, got[i], tt.want[i])
			}
		}
	}
}
