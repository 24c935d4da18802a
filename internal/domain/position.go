package domain

// Reading is a single raw fix delivered by a PositionProvider.
// Optional fields are nil when the provider did not report them.
type Reading struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Accuracy         float64  `json:"accuracy"`
	Altitude         *float64 `json:"altitude,omitempty"`
	AltitudeAccuracy *float64 `json:"altitudeAccuracy,omitempty"`
	Heading          *float64 `json:"heading,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`
}

// Position is the last known location of the host.
type Position struct {
	Latitude               float64   `json:"latitude"`
	Longitude              float64   `json:"longitude"`
	AccuracyMeters         float64   `json:"accuracy_meters"`
	AltitudeMeters         *float64  `json:"altitude_meters"`
	AltitudeAccuracyMeters *float64  `json:"altitude_accuracy_meters"`
	HeadingDegrees         *float64  `json:"heading_degrees"`
	SpeedMetersPerSecond   *float64  `json:"speed_meters_per_second"`
	CardinalDirection      Direction `json:"cardinal_direction,omitempty"`
}

// Apply merges r onto p. Fields present in r overwrite the stored values,
// absent optional fields keep what p already had. The cardinal direction is
// recomputed from the merged heading.
func (p *Position) Apply(r Reading) {
	p.Latitude = r.Latitude
	p.Longitude = r.Longitude
	p.AccuracyMeters = r.Accuracy
	if r.Altitude != nil {
		p.AltitudeMeters = float64Ptr(*r.Altitude)
	}
	if r.AltitudeAccuracy != nil {
		p.AltitudeAccuracyMeters = float64Ptr(*r.AltitudeAccuracy)
	}
	if r.Heading != nil {
		p.HeadingDegrees = float64Ptr(*r.Heading)
	}
	if r.Speed != nil {
		p.SpeedMetersPerSecond = float64Ptr(*r.Speed)
	}
	p.CardinalDirection = CardinalDirection(p.HeadingDegrees)
}

// Float64 returns a pointer to v, for building readings with optional fields.
func Float64(v float64) *float64 { return &v }

func float64Ptr(v float64) *float64 { return &v }
