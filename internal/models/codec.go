package models

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a record into the JSON payload stored locally, queued
// and sent over the wire.
func Encode(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// Decode allocates a record of table t and fills it from data.
func Decode(t Table, data []byte) (Record, error) {
	s, err := Lookup(t)
	if err != nil {
		return nil, err
	}
	r := s.New()
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", t, err)
	}
	return r, nil
}

// Clone returns a deep copy of r.
func Clone(r Record) (Record, error) {
	data, err := Encode(r)
	if err != nil {
		return nil, err
	}
	return Decode(r.Table(), data)
}

// immutable keys are never changed by a patch.
var immutable = map[string]struct{}{"id": {}, "owner_id": {}, "created_at": {}}

// Merge applies a JSON merge patch to r and returns the result as a new
// record; r itself is not modified. A nil value removes the field.
func Merge(r Record, patch map[string]any) (Record, error) {
	data, err := Encode(r)
	if err != nil {
		return nil, err
	}

	doc := map[string]any{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	for k, v := range patch {
		if _, ok := immutable[k]; ok {
			continue
		}
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return Decode(r.Table(), merged)
}

// As converts decoded records to their concrete pointer type.
func As[P Record](recs []Record) ([]P, error) {
	out := make([]P, 0, len(recs))
	for _, r := range recs {
		p, ok := r.(P)
		if !ok {
			return nil, fmt.Errorf("unexpected record type %T in %s", r, r.Table())
		}
		out = append(out, p)
	}
	return out, nil
}
