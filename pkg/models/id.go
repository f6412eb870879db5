package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an identifier the backend sends either as a JSON number or a string.
type ID string

// UnmarshalJSON accepts 42, "42" and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: expected number or string, got %s", data)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric IDs as numbers, everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}

// Amount is a monetary value the backend sends as a number or a numeric string.
type Amount float64

// UnmarshalJSON accepts 1500, 1500.5 and "1500.50".
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("amount: %q is not numeric", s)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(f)
	return nil
}
