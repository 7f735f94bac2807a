package record

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Default channel names.
const (
	ChannelPlanning     = "/apollo/planning"
	ChannelLocalization = "/apollo/localization/pose"
)

// ErrMalformed is returned when a payload lacks a required field.
var ErrMalformed = errors.New("malformed message")

// Localization is a decoded pose sample.
type Localization struct {
	TimestampSec float64
	X, Y         float64
	VX, VY       float64
	Heading      *float64 // nil when the pose carries no heading
}

// Segment is one lane of a routing passage.
type Segment struct {
	ID string `json:"id"`
}

// Passage is an ordered run of lane segments.
type Passage struct {
	Segments []Segment `json:"segment"`
}

// Road groups the passages of one road.
type Road struct {
	Passages []Passage `json:"passage"`
}

// RoutingPlan is a decoded planning message reduced to its routing.
type RoutingPlan struct {
	TimestampSec float64
	Roads        []Road
}

// LaneIDs flattens the plan into lane ids in road, passage, segment order.
func (p RoutingPlan) LaneIDs() []string {
	var ids []string
	for _, road := range p.Roads {
		for _, passage := range road.Passages {
			for _, seg := range passage.Segments {
				ids = append(ids, seg.ID)
			}
		}
	}
	return ids
}

// Wire shapes. Pointers distinguish absent fields from zero values.

type headerJSON struct {
	TimestampSec *float64 `json:"timestamp_sec"`
}

type vec3JSON struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z,omitempty"`
}

type poseJSON struct {
	Position       *vec3JSON `json:"position"`
	LinearVelocity *vec3JSON `json:"linear_velocity"`
	Heading        *float64  `json:"heading,omitempty"`
}

type localizationJSON struct {
	Header *headerJSON `json:"header"`
	Pose   *poseJSON   `json:"pose"`
}

type routingJSON struct {
	Roads []Road `json:"road"`
}

type planningDataJSON struct {
	Routing *routingJSON `json:"routing"`
}

type debugJSON struct {
	PlanningData *planningDataJSON `json:"planning_data"`
}

type planningJSON struct {
	Header *headerJSON `json:"header"`
	Debug  *debugJSON  `json:"debug"`
}

// DecodeLocalization parses a localization payload. Missing header
// timestamp, position or linear velocity yields ErrMalformed.
func DecodeLocalization(raw json.RawMessage) (Localization, error) {
	var msg localizationJSON
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Localization{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Header == nil || msg.Header.TimestampSec == nil {
		return Localization{}, fmt.Errorf("%w: missing header.timestamp_sec", ErrMalformed)
	}
	if msg.Pose == nil {
		return Localization{}, fmt.Errorf("%w: missing pose", ErrMalformed)
	}
	pos, vel := msg.Pose.Position, msg.Pose.LinearVelocity
	if pos == nil || pos.X == nil || pos.Y == nil {
		return Localization{}, fmt.Errorf("%w: missing pose.position", ErrMalformed)
	}
	if vel == nil || vel.X == nil || vel.Y == nil {
		return Localization{}, fmt.Errorf("%w: missing pose.linear_velocity", ErrMalformed)
	}

	return Localization{
		TimestampSec: *msg.Header.TimestampSec,
		X:            *pos.X,
		Y:            *pos.Y,
		VX:           *vel.X,
		VY:           *vel.Y,
		Heading:      msg.Pose.Heading,
	}, nil
}

// DecodePlanning parses a planning payload down to its routing. A plan with
// no roads is valid; a payload without debug.planning_data.routing is not.
func DecodePlanning(raw json.RawMessage) (RoutingPlan, error) {
	var msg planningJSON
	if err := json.Unmarshal(raw, &msg); err != nil {
		return RoutingPlan{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Header == nil || msg.Header.TimestampSec == nil {
		return RoutingPlan{}, fmt.Errorf("%w: missing header.timestamp_sec", ErrMalformed)
	}
	if msg.Debug == nil || msg.Debug.PlanningData == nil || msg.Debug.PlanningData.Routing == nil {
		return RoutingPlan{}, fmt.Errorf("%w: missing debug.planning_data.routing", ErrMalformed)
	}
	return RoutingPlan{
		TimestampSec: *msg.Header.TimestampSec,
		Roads:        msg.Debug.PlanningData.Routing.Roads,
	}, nil
}

// EncodeLocalization renders l in the wire shape DecodeLocalization reads.
func EncodeLocalization(l Localization) json.RawMessage {
	ts, x, y, vx, vy := l.TimestampSec, l.X, l.Y, l.VX, l.VY
	data, _ := json.Marshal(localizationJSON{
		Header: &headerJSON{TimestampSec: &ts},
		Pose: &poseJSON{
			Position:       &vec3JSON{X: &x, Y: &y},
			LinearVelocity: &vec3JSON{X: &vx, Y: &vy},
			Heading:        l.Heading,
		},
	})
	return data
}

// EncodePlanning renders p in the wire shape DecodePlanning reads.
func EncodePlanning(p RoutingPlan) json.RawMessage {
	ts := p.TimestampSec
	roads := p.Roads
	if roads == nil {
		roads = []Road{}
	}
	data, _ := json.Marshal(planningJSON{
		Header: &headerJSON{TimestampSec: &ts},
		Debug: &debugJSON{PlanningData: &planningDataJSON{
			Routing: &routingJSON{Roads: roads},
		}},
	})
	return data
}

// PlanFromLanes builds a single-road, single-passage plan over laneIDs.
func PlanFromLanes(ts float64, laneIDs ...string) RoutingPlan {
	segs := make([]Segment, len(laneIDs))
	for i, id := range laneIDs {
		segs[i] = Segment{ID: id}
	}
	return RoutingPlan{TimestampSec: ts, Roads: []Road{{Passages: []Passage{{Segments: segs}}}}}
}

// LocalizationMessage wraps l in a Message on the default localization channel.
func LocalizationMessage(l Localization) Message {
	return Message{Channel: ChannelLocalization, Timestamp: l.TimestampSec, Payload: EncodeLocalization(l)}
}

// PlanningMessage wraps p in a Message on the default planning channel.
func PlanningMessage(p RoutingPlan) Message {
	return Message{Channel: ChannelPlanning, Timestamp: p.TimestampSec, Payload: EncodePlanning(p)}
}
