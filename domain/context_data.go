package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ContextData is the mutable JSON context an instance accumulates step by step.
type ContextData map[string]interface{}

func (d ContextData) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	jsonBytes, err := json.Marshal(&d)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (d *ContextData) Scan(v interface{}) error {
	if v == nil {
		*d = ContextData{}
		return nil
	}
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	if jsonString == "" {
		*d = ContextData{}
		return nil
	}
	return json.Unmarshal([]byte(jsonString), d)
}

// Merge overlays patch onto d, returning the merged context.
func (d ContextData) Merge(patch ContextData) ContextData {
	merged := ContextData{}
	for k, v := range d {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}
