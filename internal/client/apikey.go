package client

import (
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/net/http/httpguts"
)

const apiKeyHeader = "x-api-key"

const redacted = "[REDACTED]"

// APIKey is an Open Cloud API key that has been checked to be a valid header value.
// It never prints, marshals or logs its value.
type APIKey struct {
	value string
}

// NewAPIKey validates raw as an HTTP header value.
func NewAPIKey(raw string) (APIKey, error) {
	if !httpguts.ValidHeaderFieldValue(raw) {
		return APIKey{}, &Error{
			Kind:    KindInvalidCredential,
			Op:      "read api key",
			Message: "api key contains characters that are not allowed in an HTTP header",
		}
	}
	return APIKey{value: raw}, nil
}

func (k APIKey) String() string {
	return redacted
}

func (k APIKey) GoString() string {
	return "client.APIKey{" + redacted + "}"
}

func (k APIKey) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (k APIKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// MarshalZerologObject lets a key be attached to log events with Object.
func (k APIKey) MarshalZerologObject(e *zerolog.Event) {
	e.Str("value", redacted).Bool("set", k.value != "")
}

func (k APIKey) apply(h http.Header) {
	h.Set(apiKeyHeader, k.value)
}
