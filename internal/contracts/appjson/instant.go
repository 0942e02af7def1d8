package appjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Instant is a point in time that travels as an ISO-8601 string
// ("2024-01-01T00:00:00Z", optionally with fractional seconds or an offset).
// Only fields declared as Instant get this rule; plain time.Time fields keep
// the default encoding/json behavior.
type Instant struct {
	time.Time
}

// NewInstant returns t as an Instant normalized to UTC.
func NewInstant(t time.Time) Instant {
	return Instant{Time: t.UTC()}
}

// ParseInstant parses an ISO-8601 instant. The result is always UTC.
func ParseInstant(s string) (Instant, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Instant{}, fmt.Errorf("invalid ISO-8601 instant %q: %w", s, err)
	}
	return NewInstant(t), nil
}

// UnmarshalJSON accepts a JSON string or null. Anything else is an error;
// a malformed value is never replaced by the zero time.
func (i *Instant) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*i = Instant{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("instant must be an ISO-8601 string, got %s", b)
	}

	parsed, err := ParseInstant(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// MarshalJSON writes the instant back in ISO-8601 form, or null when unset.
func (i Instant) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(i.UTC().Format(time.RFC3339Nano))
}

func (i Instant) String() string {
	if i.IsZero() {
		return ""
	}
	return i.UTC().Format(time.RFC3339Nano)
}
