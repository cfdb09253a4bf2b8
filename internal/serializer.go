package internal

import (
	"encoding/json"
)

// Marshal converts cacheable payloads to bytes. Byte slices and strings
// pass through untouched, everything else is JSON encoded.
func Marshal(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v.MarshalJSON()
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(payload)
	}
}

// Unmarshal restores a payload previously produced by Marshal into holder.
// holder must be a pointer.
func Unmarshal(data []byte, holder any) error {
	switch v := holder.(type) {
	case *[]byte:
		*v = data
		return nil
	case *json.RawMessage:
		*v = json.RawMessage(data)
		return nil
	case *string:
		*v = string(data)
		return nil
	default:
		return json.Unmarshal(data, holder)
	}
}
