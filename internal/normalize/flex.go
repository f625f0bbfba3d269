package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexString accepts a JSON string or number. The live feed is not consistent
// about which one it sends for ids and type codes.
type flexString struct {
	Value string
	Set   bool
}

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = flexString{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString{Value: s, Set: true}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = flexString{Value: strconv.FormatBool(b), Set: true}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*f = flexString{Value: n.String(), Set: true}
	}
	return nil
}

// Ptr returns nil for an absent or empty value
func (f flexString) Ptr() *string {
	if !f.Set || f.Value == "" {
		return nil
	}
	v := f.Value
	return &v
}

// Int parses the value as an integer, tolerating a trailing ".0"
func (f flexString) Int() (int64, bool) {
	if !f.Set {
		return 0, false
	}
	s := strings.TrimSpace(f.Value)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(fl), true
	}
	return 0, false
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
