// Package secret wraps sensitive strings such as API keys so they come out
// as REDACTED when formatted or marshalled, keeping the raw value one
// explicit call away.
package secret

import "encoding/json"

const redacted = "REDACTED"

// String holds a sensitive value. Everything that formats or encodes it sees
// the redaction marker, only Raw returns the value itself.
type String string

// Raw returns the sensitive value.
func (s String) Raw() string {
	return string(s)
}

// String implements fmt.Stringer, redacting the value.
func (s String) String() string {
	return redacted
}

// GoString implements fmt.GoStringer, redacting the value from %#v output.
func (s String) GoString() string {
	return redacted
}

// MarshalJSON encodes the redaction marker, never the value.
func (s String) MarshalJSON() ([]byte, error) {
	return json.Marshal(redacted)
}
