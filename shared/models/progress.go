// shared/models/progress.go
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// MarkerInitial tags the entry written when a team registers.
const MarkerInitial = "initial"

// ProgressEntry is one record of a team's progress log.
//
// Stored documents come in two shapes: the explicit form
// {node, timestamp, cost, wasCorrect} (or {marker: "initial", timestamp}) and an
// older keyed form {"<node>": <timestamp>} / {"initial": <timestamp>}. Both decode
// into the same struct; encoding always produces the explicit form.
type ProgressEntry struct {
	Node       string    `bson:"node,omitempty" json:"node,omitempty"`
	Marker     string    `bson:"marker,omitempty" json:"marker,omitempty"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
	Cost       int       `bson:"cost,omitempty" json:"cost"`
	WasCorrect bool      `bson:"wasCorrect,omitempty" json:"wasCorrect"`
	// Legacy is set when the entry was read from the keyed form.
	Legacy bool `bson:"-" json:"-"`
}

// NewInitialEntry returns the marker appended at registration.
func NewInitialEntry(at time.Time) ProgressEntry {
	return ProgressEntry{Marker: MarkerInitial, Timestamp: at}
}

// IsAttempt reports whether the entry records a scan rather than a marker.
func (p ProgressEntry) IsAttempt() bool {
	return p.Marker == "" && p.Node != ""
}

// UnmarshalBSON implements bson.Unmarshaler.
func (p *ProgressEntry) UnmarshalBSON(data []byte) error {
	raw := bson.Raw(data)
	elems, err := raw.Elements()
	if err != nil {
		return fmt.Errorf("invalid progress entry: %w", err)
	}

	explicit := false
	for _, el := range elems {
		switch el.Key() {
		case "node", "marker":
			explicit = true
		}
	}

	if !explicit {
		if len(elems) != 1 {
			return fmt.Errorf("invalid progress entry: expected one keyed element, got %d", len(elems))
		}
		ts, err := timeFromBSON(elems[0].Value())
		if err != nil {
			return fmt.Errorf("invalid legacy progress entry %q: %w", elems[0].Key(), err)
		}
		*p = legacyEntry(elems[0].Key(), ts)
		return nil
	}

	entry := ProgressEntry{}
	for _, el := range elems {
		v := el.Value()
		switch el.Key() {
		case "node":
			entry.Node, _ = v.StringValueOK()
		case "marker":
			entry.Marker, _ = v.StringValueOK()
		case "timestamp":
			if entry.Timestamp, err = timeFromBSON(v); err != nil {
				return fmt.Errorf("invalid progress entry timestamp: %w", err)
			}
		case "cost", "gCost":
			entry.Cost = intFromBSON(v)
		case "wasCorrect", "was_correct", "isCorrect":
			entry.WasCorrect, _ = v.BooleanOK()
		}
	}
	*p = entry
	return nil
}

// UnmarshalJSON implements json.Unmarshaler with the same normalization as UnmarshalBSON.
func (p *ProgressEntry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("invalid progress entry: %w", err)
	}

	_, hasNode := fields["node"]
	_, hasMarker := fields["marker"]
	if !hasNode && !hasMarker {
		if len(fields) != 1 {
			return fmt.Errorf("invalid progress entry: expected one keyed element, got %d", len(fields))
		}
		for key, val := range fields {
			var ts time.Time
			if err := json.Unmarshal(val, &ts); err != nil {
				return fmt.Errorf("invalid legacy progress entry %q: %w", key, err)
			}
			*p = legacyEntry(key, ts)
		}
		return nil
	}

	type plain ProgressEntry
	var entry plain
	if err := json.Unmarshal(data, &entry); err != nil {
		return fmt.Errorf("invalid progress entry: %w", err)
	}
	*p = ProgressEntry(entry)
	return nil
}

// legacyEntry maps a keyed entry. Correctness was not recorded in that form; a
// keyed node entry was only ever written for a successful scan.
func legacyEntry(key string, ts time.Time) ProgressEntry {
	if key == MarkerInitial {
		return ProgressEntry{Marker: MarkerInitial, Timestamp: ts, Legacy: true}
	}
	return ProgressEntry{Node: key, Timestamp: ts, WasCorrect: true, Legacy: true}
}

func timeFromBSON(v bson.RawValue) (time.Time, error) {
	switch v.Type {
	case bsontype.DateTime:
		return v.Time().UTC(), nil
	case bsontype.String:
		ts, err := time.Parse(time.RFC3339Nano, v.StringValue())
		if err != nil {
			return time.Time{}, err
		}
		return ts.UTC(), nil
	case bsontype.Timestamp:
		sec, _ := v.Timestamp()
		return time.Unix(int64(sec), 0).UTC(), nil
	case bsontype.Null, bsontype.Undefined:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %s", v.Type)
	}
}

func intFromBSON(v bson.RawValue) int {
	switch v.Type {
	case bsontype.Int32:
		return int(v.Int32())
	case bsontype.Int64:
		return int(v.Int64())
	case bsontype.Double:
		return int(v.Double())
	default:
		return 0
	}
}
