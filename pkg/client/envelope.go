package client

import (
	"bytes"
	"encoding/json"
)

const defaultEnvelopeMessage = "CDN reported failure"

// nullPayload stands in for empty bodies and envelopes without data.
var nullPayload = json.RawMessage("null")

// unwrapEnvelope returns the payload of a CDN response body.
//
// A body is an envelope only if it is a JSON object whose top-level
// "success" key holds a boolean. Anything else, including arrays and
// objects with a non-boolean "success", is returned unchanged.
func unwrapEnvelope(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nullPayload, nil
	}
	if !json.Valid(trimmed) {
		return nil, &CDNFetchError{
			Code:    CodeUnknown,
			Message: "response body is not valid JSON",
		}
	}
	if trimmed[0] != '{' {
		return json.RawMessage(trimmed), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, &CDNFetchError{
			Code:    CodeUnknown,
			Message: "decode response object",
			Err:     err,
		}
	}

	rawSuccess, ok := fields["success"]
	if !ok {
		return json.RawMessage(trimmed), nil
	}
	var success bool
	if err := json.Unmarshal(rawSuccess, &success); err != nil {
		// "success" is not a boolean, so this is a plain object
		return json.RawMessage(trimmed), nil
	}

	if success {
		data, ok := fields["data"]
		if !ok {
			return nullPayload, nil
		}
		return data, nil
	}

	return nil, envelopeError(fields)
}

// envelopeError builds the CDN_ERROR for a success:false envelope.
// Fields other than success, data and message become details.
func envelopeError(fields map[string]json.RawMessage) *CDNFetchError {
	message := defaultEnvelopeMessage
	if raw, ok := fields["message"]; ok {
		var m string
		if err := json.Unmarshal(raw, &m); err == nil && m != "" {
			message = m
		}
	}

	var details map[string]any
	for name, raw := range fields {
		switch name {
		case "success", "data", "message":
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if details == nil {
			details = make(map[string]any)
		}
		details[name] = v
	}

	return &CDNFetchError{
		Code:    CodeCDN,
		Message: message,
		Details: details,
	}
}
