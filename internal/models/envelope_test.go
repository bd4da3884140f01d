package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Count
	}{
		{"plain number", `123`, 123},
		{"quoted number", `"456"`, 456},
		{"quoted with spaces", `" 789 "`, 789},
		{"negative", `-1`, -1},
		{"null", `null`, 0},
		{"empty string", `""`, 0},
		{"garbage string", `"1.2M"`, 0},
		{"float", `1.5`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Count
			err := json.Unmarshal([]byte(tt.in), &c)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestCountInStruct(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"platform":"tiktok","content_id":"1","digg_count":"15000","play_count":983500}`), &c)

	assert.NoError(t, err)
	assert.Equal(t, Count(15000), c.DiggCount)
	assert.Equal(t, Count(983500), c.PlayCount)
}

func TestDecodeEnvelope(t *testing.T) {
	rec, err := DecodeEnvelope(Envelope{
		Kind:   KindUser,
		Record: json.RawMessage(`{"platform":"tiktok","uid":"12345","nickname":"viki"}`),
	})

	assert.NoError(t, err)
	user, ok := rec.(*User)
	assert.True(t, ok)
	assert.Equal(t, "12345", user.UID)
	assert.Equal(t, "viki", user.Nickname)
}

func TestDecodeEnvelopeUnknownKind(t *testing.T) {
	_, err := DecodeEnvelope(Envelope{Kind: "playlist", Record: json.RawMessage(`{}`)})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRecord))
}

func TestDecodeBatch(t *testing.T) {
	payload := []byte(`[
		{"kind":"content","record":{"platform":"tiktok","content_id":"1"}},
		{"kind":"comment","record":{"platform":"tiktok","comment_id":"2","text":"nice"}}
	]`)

	records, err := DecodeBatch(payload)

	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, KindContent, records[0].Kind())
	assert.Equal(t, KindComment, records[1].Kind())
}

func TestDecodeBatchInvalidJSON(t *testing.T) {
	_, err := DecodeBatch([]byte(`{"not":"an array"}`))

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRecord))
}
