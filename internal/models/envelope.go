package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Count is an integer metric that the extraction layer sometimes emits as a
// quoted string ("12345"). Unparseable values decode to 0 rather than failing
// the whole record.
type Count int64

// UnmarshalJSON implements json.Unmarshaler
func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	s := string(data)
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			*c = 0
			return nil
		}
		s = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*c = 0
		return nil
	}
	*c = Count(n)
	return nil
}

// Envelope is the wire form of a record: a kind tag plus the raw payload.
// Both the REST ingest endpoint and the feed client consume this shape.
type Envelope struct {
	Kind   Kind            `json:"kind"`
	Record json.RawMessage `json:"record"`
}

// DecodeEnvelope turns one envelope into its typed record
func DecodeEnvelope(env Envelope) (Record, error) {
	var rec Record
	switch env.Kind {
	case KindContent:
		rec = &Content{}
	case KindComment:
		rec = &Comment{}
	case KindUser:
		rec = &User{}
	case KindSearchUser:
		rec = &SearchUser{}
	case KindSearchLive:
		rec = &SearchLive{}
	case KindHotTrend:
		rec = &HotTrend{}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformedRecord, env.Kind)
	}
	if err := json.Unmarshal(env.Record, rec); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformedRecord, env.Kind, err)
	}
	return rec, nil
}

// DecodeBatch decodes a JSON array of envelopes into typed records
func DecodeBatch(data []byte) ([]Record, error) {
	var envelopes []Envelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("%w: decode batch: %v", ErrMalformedRecord, err)
	}
	records := make([]Record, 0, len(envelopes))
	for _, env := range envelopes {
		rec, err := DecodeEnvelope(env)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
