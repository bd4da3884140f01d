package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedRecord is returned when a record is missing one of the fields
// its identity key is derived from. Such records never reach the database.
var ErrMalformedRecord = errors.New("malformed record")

// Kind identifies one of the six record types the data bank stores
type Kind string

const (
	KindContent    Kind = "content"
	KindComment    Kind = "comment"
	KindUser       Kind = "user"
	KindSearchUser Kind = "search_user"
	KindSearchLive Kind = "search_live"
	KindHotTrend   Kind = "hot_trend"
)

// Kinds lists all record kinds in their canonical order
var Kinds = []Kind{
	KindContent, KindComment, KindUser,
	KindSearchUser, KindSearchLive, KindHotTrend,
}

// Record is a single extracted item ready for ingestion. The identity key is
// computed from the record's own fields, so re-ingesting the same logical
// entity always targets the same row.
type Record interface {
	Kind() Kind
	Key() string
	Validate() error
}

// Content represents video/image/audio metadata extracted from a platform
type Content struct {
	Platform       string `json:"platform"`
	ContentID      string `json:"content_id"`
	SourceType     string `json:"source_type"` // "detail", "mix" or "search_general"
	Type           string `json:"type"`
	CollectionTime string `json:"collection_time"`
	UID            string `json:"uid"`
	SecUID         string `json:"sec_uid"`
	UniqueID       string `json:"unique_id"`
	Desc           string `json:"desc"`
	TextExtra      string `json:"text_extra"`
	Duration       string `json:"duration"`
	Height         Count  `json:"height"`
	Width          Count  `json:"width"`
	ShareURL       string `json:"share_url"`
	PublishTime    string `json:"create_time"`
	URI            string `json:"uri"`
	Nickname       string `json:"nickname"`
	UserAge        Count  `json:"user_age"`
	Signature      string `json:"signature"`
	Downloads      string `json:"downloads"`
	MusicAuthor    string `json:"music_author"`
	MusicTitle     string `json:"music_title"`
	MusicURL       string `json:"music_url"`
	StaticCover    string `json:"static_cover"`
	DynamicCover   string `json:"dynamic_cover"`
	Tag            string `json:"tag"`
	DiggCount      Count  `json:"digg_count"`
	CommentCount   Count  `json:"comment_count"`
	CollectCount   Count  `json:"collect_count"`
	ShareCount     Count  `json:"share_count"`
	PlayCount      Count  `json:"play_count"`
	Extra          string `json:"extra"`
}

func (c *Content) Kind() Kind { return KindContent }

func (c *Content) Key() string {
	return string(KindContent) + ":" + c.Platform + "/" + c.ContentID
}

func (c *Content) Validate() error {
	if err := requirePlatform(c.Platform); err != nil {
		return err
	}
	return requireNumericID("content_id", c.ContentID)
}

// Comment represents a single comment on a Content
type Comment struct {
	Platform          string `json:"platform"`
	CommentID         string `json:"comment_id"`
	CollectionTime    string `json:"collection_time"`
	PublishTime       string `json:"create_time"`
	UID               string `json:"uid"`
	SecUID            string `json:"sec_uid"`
	Nickname          string `json:"nickname"`
	Signature         string `json:"signature"`
	UserAge           Count  `json:"user_age"`
	IPLabel           string `json:"ip_label"`
	Text              string `json:"text"`
	Sticker           string `json:"sticker"`
	Image             string `json:"image"`
	DiggCount         Count  `json:"digg_count"`
	ReplyCommentTotal Count  `json:"reply_comment_total"`
	ReplyID           string `json:"reply_id"`
	ReplyToReplyID    string `json:"reply_to_reply_id"`
}

func (c *Comment) Kind() Kind { return KindComment }

func (c *Comment) Key() string {
	return string(KindComment) + ":" + c.Platform + "/" + c.CommentID
}

func (c *Comment) Validate() error {
	if err := requirePlatform(c.Platform); err != nil {
		return err
	}
	return requireNumericID("comment_id", c.CommentID)
}

// User represents a full profile snapshot
type User struct {
	Platform         string `json:"platform"`
	UID              string `json:"uid"`
	SecUID           string `json:"sec_uid"`
	UniqueID         string `json:"unique_id"`
	ShortID          string `json:"short_id"`
	CollectionTime   string `json:"collection_time"`
	Nickname         string `json:"nickname"`
	URL              string `json:"url"`
	Signature        string `json:"signature"`
	UserAge          Count  `json:"user_age"`
	Gender           string `json:"gender"`
	Country          string `json:"country"`
	Province         string `json:"province"`
	City             string `json:"city"`
	District         string `json:"district"`
	IPLocation       string `json:"ip_location"`
	Verify           string `json:"verify"`
	Enterprise       string `json:"enterprise"`
	Avatar           string `json:"avatar"`
	Cover            string `json:"cover"`
	AwemeCount       Count  `json:"aweme_count"`
	TotalFavorited   Count  `json:"total_favorited"`
	FavoritingCount  Count  `json:"favoriting_count"`
	FollowerCount    Count  `json:"follower_count"`
	FollowingCount   Count  `json:"following_count"`
	MaxFollowerCount Count  `json:"max_follower_count"`
}

func (u *User) Kind() Kind { return KindUser }

func (u *User) Key() string {
	return string(KindUser) + ":" + u.Platform + "/" + u.UID
}

func (u *User) Validate() error {
	if err := requirePlatform(u.Platform); err != nil {
		return err
	}
	return requireNumericID("uid", u.UID)
}

// SearchUser represents one result row of a user search
type SearchUser struct {
	Platform       string `json:"platform"`
	Query          string `json:"query"`
	UID            string `json:"uid"`
	SecUID         string `json:"sec_uid"`
	CollectionTime string `json:"collection_time"`
	Nickname       string `json:"nickname"`
	UniqueID       string `json:"unique_id"`
	ShortID        string `json:"short_id"`
	Avatar         string `json:"avatar"`
	Signature      string `json:"signature"`
	Verify         string `json:"verify"`
	Enterprise     string `json:"enterprise"`
	FollowerCount  Count  `json:"follower_count"`
	TotalFavorited Count  `json:"total_favorited"`
}

func (s *SearchUser) Kind() Kind { return KindSearchUser }

// QueryHash returns the deterministic digest of the normalized search query
func (s *SearchUser) QueryHash() string { return QueryHash(s.Query) }

func (s *SearchUser) Key() string {
	return string(KindSearchUser) + ":" + s.Platform + "/" + s.QueryHash() + "/" + s.UID
}

func (s *SearchUser) Validate() error {
	if err := requirePlatform(s.Platform); err != nil {
		return err
	}
	if strings.TrimSpace(s.Query) == "" {
		return fmt.Errorf("%w: empty query", ErrMalformedRecord)
	}
	return requireNumericID("uid", s.UID)
}

// SearchLive represents one result row of a live-room search
type SearchLive struct {
	Platform       string `json:"platform"`
	Query          string `json:"query"`
	RoomID         string `json:"room_id"`
	UID            string `json:"uid"`
	SecUID         string `json:"sec_uid"`
	CollectionTime string `json:"collection_time"`
	Nickname       string `json:"nickname"`
	ShortID        string `json:"short_id"`
	Avatar         string `json:"avatar"`
	Signature      string `json:"signature"`
	Verify         string `json:"verify"`
	Enterprise     string `json:"enterprise"`
}

func (s *SearchLive) Kind() Kind { return KindSearchLive }

// QueryHash returns the deterministic digest of the normalized search query
func (s *SearchLive) QueryHash() string { return QueryHash(s.Query) }

func (s *SearchLive) Key() string {
	return string(KindSearchLive) + ":" + s.Platform + "/" + s.QueryHash() + "/" + s.RoomID
}

func (s *SearchLive) Validate() error {
	if err := requirePlatform(s.Platform); err != nil {
		return err
	}
	if strings.TrimSpace(s.Query) == "" {
		return fmt.Errorf("%w: empty query", ErrMalformedRecord)
	}
	return requireNumericID("room_id", s.RoomID)
}

// HotTrend represents a time-bucketed snapshot of one trending entry
type HotTrend struct {
	Platform   string    `json:"platform"`
	TrendID    string    `json:"trend_id"`
	CapturedAt time.Time `json:"captured_at"`
	Position   Count     `json:"position"`
	Word       string    `json:"word"`
	HotValue   Count     `json:"hot_value"`
	Cover      string    `json:"cover"`
	EventTime  string    `json:"event_time"`
	ViewCount  Count     `json:"view_count"`
	VideoCount Count     `json:"video_count"`
}

func (h *HotTrend) Kind() Kind { return KindHotTrend }

// Bucket returns the capture time truncated to the hour, in UTC. Snapshots of
// the same trend within one hour collapse into a single row.
func (h *HotTrend) Bucket() time.Time {
	return h.CapturedAt.UTC().Truncate(time.Hour)
}

func (h *HotTrend) Key() string {
	return string(KindHotTrend) + ":" + h.Platform + "/" + h.TrendID + "/" + h.Bucket().Format(time.RFC3339)
}

func (h *HotTrend) Validate() error {
	if err := requirePlatform(h.Platform); err != nil {
		return err
	}
	if h.CapturedAt.IsZero() {
		return fmt.Errorf("%w: zero captured_at", ErrMalformedRecord)
	}
	return requireNumericID("trend_id", h.TrendID)
}

// QueryHash digests a search query into a short stable identifier. The query
// is lower-cased and whitespace-normalized first so cosmetic differences map
// to the same hash.
func QueryHash(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

func requirePlatform(platform string) error {
	if strings.TrimSpace(platform) == "" {
		return fmt.Errorf("%w: empty platform", ErrMalformedRecord)
	}
	return nil
}

func requireNumericID(field, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty %s", ErrMalformedRecord, field)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: non-numeric %s %q", ErrMalformedRecord, field, id)
		}
	}
	return nil
}
