// Package record defines the entity mirrored between the remote listing and the local store.
package record

import (
	"encoding/json"
	"fmt"
)

// Record is a single category entry.
type Record struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"nombre" yaml:"nombre"`
}

// wireRecord accepts both field spellings seen on the wire.
type wireRecord struct {
	ID     *int64  `json:"id"`
	Nombre *string `json:"nombre"`
	Name   *string `json:"name"`
}

// UnmarshalJSON decodes a record, preferring "nombre" over "name".
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.ID == nil {
		return fmt.Errorf("record: missing id")
	}

	r.ID = *w.ID
	switch {
	case w.Nombre != nil:
		r.Name = *w.Nombre
	case w.Name != nil:
		r.Name = *w.Name
	default:
		r.Name = ""
	}
	return nil
}

// IDs returns the ids of records in order.
func IDs(records []Record) []int64 {
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
