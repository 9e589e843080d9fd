package utils

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// StringsFromJSON decodes a JSONB column expected to hold a string array.
// Anything malformed or empty yields nil.
func StringsFromJSON(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
