package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"bank-client/pkg/bankerr"
)

// decode unwraps the backend envelope {success, data, message} when present
// and decodes the payload into out. Bare objects and arrays are decoded as is.
func decode(data []byte, out any) (Result, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		if out != nil {
			return Result{}, fmt.Errorf("empty response body")
		}
		return Result{}, nil
	}
	if !json.Valid(data) {
		return Result{}, fmt.Errorf("response is not valid JSON")
	}

	payload := json.RawMessage(data)
	var result Result

	if data[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return Result{}, fmt.Errorf("decode envelope: %w", err)
		}

		if raw, ok := fields["success"]; ok {
			var success bool
			if err := json.Unmarshal(raw, &success); err != nil {
				return Result{}, fmt.Errorf("envelope success is not a boolean")
			}
			result.Message = rawString(fields["message"])
			if !success {
				return Result{}, bankerr.FromStatus("", http.StatusOK, result.Message)
			}

			if raw, ok := fields["data"]; ok {
				payload = raw
			} else {
				// {success:true, token, user} carries its payload inline.
				delete(fields, "success")
				delete(fields, "message")
				if len(fields) == 0 {
					return result, nil
				}
			}
		}
	}

	if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return result, nil
	}

	result.HasData = true
	if out == nil {
		return result, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return Result{}, fmt.Errorf("decode payload: %w", err)
	}
	return result, nil
}

// errorMessage extracts a human readable message from an error body.
func errorMessage(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}

	var body struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
		Msg     json.RawMessage `json:"msg"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		if len(data) > 200 {
			data = data[:200]
		}
		return string(data)
	}
	for _, raw := range []json.RawMessage{body.Message, body.Error, body.Msg} {
		if s := rawString(raw); s != "" {
			return s
		}
	}
	return ""
}

// rawString returns raw as a string when it is a JSON string, or the first
// string of an array of strings (validation errors).
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}
