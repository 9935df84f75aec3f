package models

import (
	"encoding/json"
	"errors"
)

// ErrIncompleteErrorBody is returned when an error response decodes as JSON but
// lacks the code or message field.
var ErrIncompleteErrorBody = errors.New("error response is missing code or message")

// APIErrorBody is the body Open Cloud sends with any non-success response.
type APIErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeAPIErrorBody decodes an error response. Both fields must be present.
func DecodeAPIErrorBody(data []byte) (APIErrorBody, error) {
	var raw struct {
		Code    *string `json:"code"`
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return APIErrorBody{}, err
	}
	if raw.Code == nil || raw.Message == nil {
		return APIErrorBody{}, ErrIncompleteErrorBody
	}
	return APIErrorBody{Code: *raw.Code, Message: *raw.Message}, nil
}
