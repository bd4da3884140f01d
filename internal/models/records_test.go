package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	captured := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{
			name:   "valid content",
			record: &Content{Platform: "tiktok", ContentID: "7301234567890123456"},
		},
		{
			name:    "content missing platform",
			record:  &Content{ContentID: "7301234567890123456"},
			wantErr: true,
		},
		{
			name:    "content blank platform",
			record:  &Content{Platform: "   ", ContentID: "7301234567890123456"},
			wantErr: true,
		},
		{
			name:    "content non-numeric id",
			record:  &Content{Platform: "tiktok", ContentID: "abc123"},
			wantErr: true,
		},
		{
			name:   "valid comment",
			record: &Comment{Platform: "tiktok", CommentID: "99887766"},
		},
		{
			name:    "comment empty id",
			record:  &Comment{Platform: "tiktok"},
			wantErr: true,
		},
		{
			name:   "valid user",
			record: &User{Platform: "tiktok", UID: "123456"},
		},
		{
			name:   "valid search user",
			record: &SearchUser{Platform: "tiktok", Query: "cooking", UID: "42"},
		},
		{
			name:    "search user empty query",
			record:  &SearchUser{Platform: "tiktok", Query: "  ", UID: "42"},
			wantErr: true,
		},
		{
			name:   "valid search live",
			record: &SearchLive{Platform: "tiktok", Query: "gaming", RoomID: "777"},
		},
		{
			name:    "search live non-numeric room",
			record:  &SearchLive{Platform: "tiktok", Query: "gaming", RoomID: "room-777"},
			wantErr: true,
		},
		{
			name:   "valid hot trend",
			record: &HotTrend{Platform: "tiktok", TrendID: "555", CapturedAt: captured},
		},
		{
			name:    "hot trend zero capture time",
			record:  &HotTrend{Platform: "tiktok", TrendID: "555"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedRecord))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKeyDeterminism(t *testing.T) {
	a := &Content{Platform: "tiktok", ContentID: "111", Desc: "first snapshot"}
	b := &Content{Platform: "tiktok", ContentID: "111", Desc: "later snapshot", DiggCount: 5000}

	// Same logical entity, different payloads: keys must collide
	assert.Equal(t, a.Key(), b.Key())

	other := &Content{Platform: "douyin", ContentID: "111"}
	assert.NotEqual(t, a.Key(), other.Key())
}

func TestQueryHashNormalization(t *testing.T) {
	base := QueryHash("hello world")

	assert.Len(t, base, 16)
	assert.Equal(t, base, QueryHash("Hello   World"))
	assert.Equal(t, base, QueryHash("  hello\tworld  "))
	assert.NotEqual(t, base, QueryHash("hello worlds"))
}

func TestSearchKeyIncludesQueryHash(t *testing.T) {
	a := &SearchUser{Platform: "tiktok", Query: "cats", UID: "42"}
	b := &SearchUser{Platform: "tiktok", Query: "dogs", UID: "42"}

	// Same user found under two queries is two distinct rows
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestHotTrendBucket(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	h := &HotTrend{
		Platform:   "tiktok",
		TrendID:    "9",
		CapturedAt: time.Date(2024, 3, 1, 17, 45, 12, 0, loc),
	}

	bucket := h.Bucket()
	assert.Equal(t, time.UTC, bucket.Location())
	assert.Equal(t, 10, bucket.Hour())
	assert.Equal(t, 0, bucket.Minute())

	// Two snapshots inside the same hour share a key
	later := &HotTrend{
		Platform:   "tiktok",
		TrendID:    "9",
		CapturedAt: time.Date(2024, 3, 1, 10, 59, 59, 0, time.UTC),
	}
	assert.Equal(t, h.Key(), later.Key())

	nextHour := &HotTrend{
		Platform:   "tiktok",
		TrendID:    "9",
		CapturedAt: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
	}
	assert.NotEqual(t, h.Key(), nextHour.Key())
}
