package domain

// Direction is one of the eight compass points, or empty when unknown.
type Direction string

const (
	DirectionNone      Direction = ""
	DirectionNorth     Direction = "N"
	DirectionNorthEast Direction = "NE"
	DirectionEast      Direction = "E"
	DirectionSouthEast Direction = "SE"
	DirectionSouth     Direction = "S"
	DirectionSouthWest Direction = "SW"
	DirectionWest      Direction = "W"
	DirectionNorthWest Direction = "NW"
)

// compassBuckets are evaluated in order. Bounds are inclusive, so a heading
// sitting exactly on a midpoint matches two adjacent buckets.
var compassBuckets = []struct {
	dir    Direction
	lo, hi float64
}{
	{DirectionNorth, 337.5, 22.5},
	{DirectionNorthEast, 22.5, 67.5},
	{DirectionEast, 67.5, 112.5},
	{DirectionSouthEast, 112.5, 157.5},
	{DirectionSouth, 157.5, 202.5},
	{DirectionSouthWest, 202.5, 247.5},
	{DirectionWest, 247.5, 292.5},
	{DirectionNorthWest, 292.5, 337.5},
}

// matchingDirections returns every bucket that contains heading, in
// evaluation order.
func matchingDirections(heading float64) []Direction {
	var out []Direction
	for _, b := range compassBuckets {
		var in bool
		if b.lo > b.hi {
			// wraps through north
			in = heading >= b.lo || heading <= b.hi
		} else {
			in = heading >= b.lo && heading <= b.hi
		}
		if in {
			out = append(out, b.dir)
		}
	}
	return out
}

// CardinalDirection labels a heading in degrees clockwise from true north.
// A missing heading, or one that is not positive, has no direction. On a
// bucket boundary the bucket evaluated last wins (22.5 is NE, 67.5 is E,
// 337.5 is NW).
func CardinalDirection(heading *float64) Direction {
	if heading == nil || *heading <= 0 {
		return DirectionNone
	}
	matches := matchingDirections(*heading)
	if len(matches) == 0 {
		return DirectionNone
	}
	return matches[len(matches)-1]
}
