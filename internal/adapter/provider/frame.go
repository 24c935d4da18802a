package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"geolocate/internal/domain"
)

// FrameType identifies a bridge protocol message.
type FrameType string

const (
	// bridge -> client
	FrameTypeHello    FrameType = "hello"
	FrameTypePosition FrameType = "position"
	FrameTypeError    FrameType = "error"

	// client -> bridge
	FrameTypeGet        FrameType = "get"
	FrameTypeWatch      FrameType = "watch"
	FrameTypeClearWatch FrameType = "clear_watch"
)

// Frame is the envelope exchanged with the bridge over WebSocket.
type Frame struct {
	Type        FrameType             `json:"type"`
	ID          string                `json:"id,omitempty"`          // request or watch correlation ID
	Geolocation *bool                 `json:"geolocation,omitempty"` // hello only
	Agent       string                `json:"agent,omitempty"`       // hello only
	Options     *WireOptions          `json:"options,omitempty"`     // get and watch
	Coords      *domain.Reading       `json:"coords,omitempty"`      // position only
	Error       *domain.PositionError `json:"error,omitempty"`       // error only
}

// WireOptions mirrors the PositionOptions dictionary a browser bridge hands
// to navigator.geolocation.
type WireOptions struct {
	EnableHighAccuracy bool `json:"enableHighAccuracy"`
	Timeout            int  `json:"timeout"`
	MaximumAge         int  `json:"maximumAge"`
}

func wireOptions(o domain.PositionOptions) *WireOptions {
	return &WireOptions{
		EnableHighAccuracy: o.EnableHighAccuracy,
		Timeout:            o.TimeoutMillis,
		MaximumAge:         o.MaxCacheAgeMillis,
	}
}

// inboundFrameSchema constrains every frame the bridge may send. Unknown
// keys are rejected because encoding/json matches field names without
// regard to case.
const inboundFrameSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"required": ["type"],
	"properties": {
		"type": {"enum": ["hello", "position", "error"]},
		"id": {"type": "string", "minLength": 1},
		"geolocation": {"type": "boolean"},
		"agent": {"type": "string"},
		"timestamp": {"type": "number"},
		"coords": {
			"type": "object",
			"additionalProperties": false,
			"required": ["latitude", "longitude", "accuracy"],
			"properties": {
				"latitude": {"type": "number", "minimum": -90, "maximum": 90},
				"longitude": {"type": "number", "minimum": -180, "maximum": 180},
				"accuracy": {"type": "number", "minimum": 0},
				"altitude": {"type": ["number", "null"]},
				"altitudeAccuracy": {"type": ["number", "null"], "minimum": 0},
				"heading": {"type": ["number", "null"], "minimum": 0, "maximum": 360},
				"speed": {"type": ["number", "null"], "minimum": 0}
			}
		},
		"error": {
			"type": "object",
			"additionalProperties": false,
			"required": ["code", "message"],
			"properties": {
				"code": {"type": "integer"},
				"message": {"type": "string"}
			}
		}
	},
	"allOf": [
		{"if": {"properties": {"type": {"const": "hello"}}}, "then": {"required": ["geolocation"]}},
		{"if": {"properties": {"type": {"const": "position"}}}, "then": {"required": ["id", "coords"]}},
		{"if": {"properties": {"type": {"const": "error"}}}, "then": {"required": ["error"]}}
	]
}`

// frameValidator decodes inbound frames after checking them against
// inboundFrameSchema.
type frameValidator struct {
	schema *jsonschema.Schema
}

func newFrameValidator() (*frameValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("frame.json", strings.NewReader(inboundFrameSchema)); err != nil {
		return nil, fmt.Errorf("add frame schema: %w", err)
	}
	compiled, err := compiler.Compile("frame.json")
	if err != nil {
		return nil, fmt.Errorf("compile frame schema: %w", err)
	}
	return &frameValidator{schema: compiled}, nil
}

// decode validates raw and unmarshals it into a Frame.
func (v *frameValidator) decode(raw []byte) (Frame, error) {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Frame{}, domain.NewDomainError("frame.decode", domain.ErrInvalidBridgeFrame, err.Error())
	}
	if err := v.schema.Validate(doc); err != nil {
		return Frame{}, domain.NewDomainError("frame.validate", domain.ErrInvalidBridgeFrame, err.Error())
	}

	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, domain.NewDomainError("frame.decode", domain.ErrInvalidBridgeFrame, err.Error())
	}
	return f, nil
}
