package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ItemID is the canonical menu item identifier. Backend documents are not
// consistent about its shape: depending on the collection and export path an
// id arrives as a plain string, a bare number, or an ObjectId-style wrapper
// object. ItemID normalizes all of them to a single string at the decoding
// boundary so nothing deeper in the pipeline branches on shape.
type ItemID string

// String returns the canonical id value.
func (id ItemID) String() string { return string(id) }

// UnmarshalJSON accepts a JSON string, a number, or an object carrying the id
// under "$oid", "_id", or "id". Anything else is an error; a silently wrong
// id is worse than a decode failure here.
func (id *ItemID) UnmarshalJSON(b []byte) error {
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		for _, key := range []string{"$oid", "_id", "id"} {
			if raw, ok := obj[key]; ok {
				var nested ItemID
				if err := nested.UnmarshalJSON(raw); err != nil {
					return err
				}
				*id = nested
				return nil
			}
		}
		return fmt.Errorf("item id object has no $oid, _id, or id field")
	default:
		// Bare number. Keep the exact textual form.
		if _, err := strconv.ParseFloat(string(b), 64); err != nil {
			return fmt.Errorf("unsupported item id shape: %s", b)
		}
		*id = ItemID(b)
		return nil
	}
}

// MarshalJSON always emits the canonical string form.
func (id ItemID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}
