package monitor

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Status field names as they appear in a ChangeSet.
const (
	FieldContentID   = "content_id"
	FieldContentType = "content_type"
	FieldDuration    = "duration"
	FieldTitle       = "title"
)

// Status is the playback state last read from one device.
type Status struct {
	ContentID   string `json:"content_id"`
	ContentType string `json:"content_type"`

	// Duration is in seconds; nil when the receiver does not know it (live streams)
	Duration *float64 `json:"duration"`

	Title string `json:"title"`

	// LastUpdated is when the receiver last reported media status. The zero
	// value means no status has arrived yet and the record must not be used.
	LastUpdated time.Time `json:"last_updated"`
}

// Ready reports whether the status carries a media update.
func (s Status) Ready() bool {
	return !s.LastUpdated.IsZero()
}

// Fields returns the comparable fields of the status. LastUpdated is left out:
// it changes on every read.
func (s Status) Fields() map[string]any {
	var duration any
	if s.Duration != nil {
		duration = *s.Duration
	}
	return map[string]any{
		FieldContentID:   s.ContentID,
		FieldContentType: s.ContentType,
		FieldDuration:    duration,
		FieldTitle:       s.Title,
	}
}

// Snapshot maps device names to their last known status.
type Snapshot map[string]Status

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for name, status := range s {
		if status.Duration != nil {
			d := *status.Duration
			status.Duration = &d
		}
		out[name] = status
	}
	return out
}

// Tree converts the snapshot to the nested mapping compared by Diff.
func (s Snapshot) Tree() map[string]any {
	tree := make(map[string]any, len(s))
	for name, status := range s {
		tree[name] = status.Fields()
	}
	return tree
}

// ChangeSet maps device names to the status fields that are new or changed
// since the previous poll.
type ChangeSet map[string]map[string]any

// Empty reports whether no device changed.
func (c ChangeSet) Empty() bool {
	return len(c) == 0
}

// Devices returns the names of changed devices, sorted.
func (c ChangeSet) Devices() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders the change set as JSON with sorted keys.
func (c ChangeSet) String() string {
	data, err := json.Marshal(map[string]map[string]any(c))
	if err != nil {
		return fmt.Sprintf("ChangeSet(%d devices)", len(c))
	}
	return string(data)
}

// changeSetFromTree converts a two-level diff into a ChangeSet. A first-level
// value that is not a field mapping cannot come from Snapshot.Tree.
func changeSetFromTree(tree map[string]any) (ChangeSet, error) {
	changes := make(ChangeSet, len(tree))
	for name, value := range tree {
		fields, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: status diff for %q is %T, want field map", ErrStateCorruption, name, value)
		}
		changes[name] = fields
	}
	return changes, nil
}
