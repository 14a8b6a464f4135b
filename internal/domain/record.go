package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Collection names a set of records persisted as one unit.
type Collection string

const (
	CollectionWorkouts        Collection = "workouts"
	CollectionRoutines        Collection = "routines"
	CollectionRoutineFolders  Collection = "routine_folders"
	CollectionPersonalRecords Collection = "personal_records"
)

// SyncedCollections lists the collections mirrored from the upstream service, in startup order.
var SyncedCollections = []Collection{CollectionWorkouts, CollectionRoutines, CollectionRoutineFolders}

// ParseCollection resolves a collection name.
func ParseCollection(name string) (Collection, error) {
	c := Collection(strings.TrimSpace(name))
	switch c {
	case CollectionWorkouts, CollectionRoutines, CollectionRoutineFolders, CollectionPersonalRecords:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

// Synced reports whether the collection is mirrored from upstream.
func (c Collection) Synced() bool {
	return slices.Contains(SyncedCollections, c)
}

// Resource is the upstream path segment and the plural key of its list responses.
func (c Collection) Resource() string {
	return string(c)
}

// Record is a single upstream entity. Raw holds the object exactly as received;
// ID and CreatedAt are lifted out of it for merging and cutoff decisions.
type Record struct {
	ID        string
	CreatedAt string
	Raw       json.RawMessage
}

type recordHeader struct {
	ID        json.RawMessage `json:"id"`
	CreatedAt string          `json:"created_at"`
}

// NewRecord builds a Record from loose fields. id and created_at are always set from the arguments.
func NewRecord(id, createdAt string, fields map[string]any) (Record, error) {
	obj := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		obj[k] = v
	}
	obj["id"] = id
	obj["created_at"] = createdAt
	raw, err := json.Marshal(obj)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, CreatedAt: createdAt, Raw: raw}, nil
}

// UnmarshalJSON keeps the full object and extracts id (string or number) and created_at.
func (r *Record) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("record must be a JSON object")
	}
	var head recordHeader
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return err
	}
	id, err := decodeID(head.ID)
	if err != nil {
		return err
	}
	r.ID = id
	r.CreatedAt = head.CreatedAt
	r.Raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

// MarshalJSON emits the record verbatim.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	return json.Marshal(map[string]string{"id": r.ID, "created_at": r.CreatedAt})
}

// Decode unmarshals the raw payload into v.
func (r Record) Decode(v any) error {
	if len(r.Raw) == 0 {
		return errors.New("record has no payload")
	}
	return json.Unmarshal(r.Raw, v)
}

func decodeID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", fmt.Errorf("unsupported id %s", trimmed)
		}
		return n.String(), nil
	}
}

// SortNewestFirst orders records by created_at descending, then by id.
func SortNewestFirst(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		if c := strings.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Page is one upstream list response. PageCount is only meaningful on page 1.
type Page struct {
	Number    int
	PageCount int
	Records   []Record
}
