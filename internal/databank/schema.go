package databank

import (
	"fmt"
	"strings"

	"github.com/npaujiana/scraper-tiktok/internal/models"
)

// schemaDDL creates the six tables and their indexes. Identity-key columns
// carry a unique constraint; it is the only cross-worker synchronization
// primitive the ingestion path relies on.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS contents (
    pk_id           bigserial PRIMARY KEY,
    platform        text NOT NULL,
    content_id      text NOT NULL,
    source_type     text NOT NULL DEFAULT 'detail',
    type            text,
    collection_time text,
    uid             text,
    sec_uid         text,
    unique_id       text,
    "desc"          text,
    text_extra      text,
    duration        text,
    height          bigint NOT NULL DEFAULT 0,
    width           bigint NOT NULL DEFAULT 0,
    share_url       text,
    create_time     text,
    uri             text,
    nickname        text,
    user_age        bigint NOT NULL DEFAULT 0,
    signature       text,
    downloads       text,
    music_author    text,
    music_title     text,
    music_url       text,
    static_cover    text,
    dynamic_cover   text,
    tag             text,
    digg_count      bigint NOT NULL DEFAULT 0,
    comment_count   bigint NOT NULL DEFAULT 0,
    collect_count   bigint NOT NULL DEFAULT 0,
    share_count     bigint NOT NULL DEFAULT 0,
    play_count      bigint NOT NULL DEFAULT 0,
    extra           text,
    first_seen_at   timestamptz NOT NULL DEFAULT now(),
    last_updated_at timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT uq_contents_identity UNIQUE (platform, content_id)
);

CREATE TABLE IF NOT EXISTS comments (
    pk_id               bigserial PRIMARY KEY,
    platform            text NOT NULL,
    comment_id          text NOT NULL,
    collection_time     text,
    create_time         text,
    uid                 text,
    sec_uid             text,
    nickname            text,
    signature           text,
    user_age            bigint NOT NULL DEFAULT 0,
    ip_label            text,
    "text"              text,
    sticker             text,
    image               text,
    digg_count          bigint NOT NULL DEFAULT 0,
    reply_comment_total bigint NOT NULL DEFAULT 0,
    reply_id            text,
    reply_to_reply_id   text,
    first_seen_at       timestamptz NOT NULL DEFAULT now(),
    last_updated_at     timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT uq_comments_identity UNIQUE (platform, comment_id)
);

CREATE TABLE IF NOT EXISTS users (
    pk_id              bigserial PRIMARY KEY,
    platform           text NOT NULL,
    uid                text NOT NULL,
    collection_time    text,
    nickname           text,
    url                text,
    signature          text,
    unique_id          text,
    user_age           bigint NOT NULL DEFAULT 0,
    gender             text,
    country            text,
    province           text,
    city               text,
    district           text,
    ip_location        text,
    verify             text,
    enterprise         text,
    sec_uid            text,
    short_id           text,
    avatar             text,
    cover              text,
    aweme_count        bigint NOT NULL DEFAULT 0,
    total_favorited    bigint NOT NULL DEFAULT 0,
    favoriting_count   bigint NOT NULL DEFAULT 0,
    follower_count     bigint NOT NULL DEFAULT 0,
    following_count    bigint NOT NULL DEFAULT 0,
    max_follower_count bigint NOT NULL DEFAULT 0,
    first_seen_at      timestamptz NOT NULL DEFAULT now(),
    last_updated_at    timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT uq_users_identity UNIQUE (platform, uid)
);

CREATE TABLE IF NOT EXISTS search_users (
    pk_id           bigserial PRIMARY KEY,
    platform        text NOT NULL,
    query_hash      text NOT NULL,
    uid             text NOT NULL,
    query           text,
    collection_time text,
    sec_uid         text,
    nickname        text,
    unique_id       text,
    short_id        text,
    avatar          text,
    signature       text,
    verify          text,
    enterprise      text,
    follower_count  bigint NOT NULL DEFAULT 0,
    total_favorited bigint NOT NULL DEFAULT 0,
    first_seen_at   timestamptz NOT NULL DEFAULT now(),
    last_updated_at timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT uq_search_users_identity UNIQUE (platform, query_hash, uid)
);

CREATE TABLE IF NOT EXISTS search_lives (
    pk_id           bigserial PRIMARY KEY,
    platform        text NOT NULL,
    query_hash      text NOT NULL,
    room_id         text NOT NULL,
    query           text,
    collection_time text,
    uid             text,
    sec_uid         text,
    nickname        text,
    short_id        text,
    avatar          text,
    signature       text,
    verify          text,
    enterprise      text,
    first_seen_at   timestamptz NOT NULL DEFAULT now(),
    last_updated_at timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT uq_search_lives_identity UNIQUE (platform, query_hash, room_id)
);

CREATE TABLE IF NOT EXISTS hot_trends (
    pk_id              bigserial PRIMARY KEY,
    platform           text NOT NULL,
    trend_id           text NOT NULL,
    captured_at_bucket timestamptz NOT NULL,
    position           bigint NOT NULL DEFAULT 0,
    word               text,
    hot_value          bigint NOT NULL DEFAULT 0,
    cover              text,
    event_time         text,
    view_count         bigint NOT NULL DEFAULT 0,
    video_count        bigint NOT NULL DEFAULT 0,
    first_seen_at      timestamptz NOT NULL DEFAULT now(),
    last_updated_at    timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT uq_hot_trends_identity UNIQUE (platform, trend_id, captured_at_bucket)
);

CREATE INDEX IF NOT EXISTS idx_contents_uid ON contents (uid);
CREATE INDEX IF NOT EXISTS idx_contents_nickname ON contents (nickname);
CREATE INDEX IF NOT EXISTS idx_contents_create_time ON contents (create_time);
CREATE INDEX IF NOT EXISTS idx_contents_source_type ON contents (source_type);
CREATE INDEX IF NOT EXISTS idx_comments_uid ON comments (uid);
CREATE INDEX IF NOT EXISTS idx_comments_create_time ON comments (create_time);
CREATE INDEX IF NOT EXISTS idx_users_nickname ON users (nickname);
CREATE INDEX IF NOT EXISTS idx_hot_trends_event_time ON hot_trends (event_time);
`

// tableSpec describes how one record kind maps onto its table: identity-key
// columns, payload columns in insert order, export labels, and how to pull
// statement arguments out of a typed record.
type tableSpec struct {
	table   string
	sheet   string
	keyCols []string
	payload []string
	labels  map[string]string
	args    func(models.Record) ([]any, error)
}

var tableSpecs = map[models.Kind]tableSpec{
	models.KindContent: {
		table:   "contents",
		sheet:   "Contents",
		keyCols: []string{"platform", "content_id"},
		payload: []string{
			"source_type", "type", "collection_time", "uid", "sec_uid",
			"unique_id", `"desc"`, "text_extra", "duration", "height",
			"width", "share_url", "create_time", "uri", "nickname",
			"user_age", "signature", "downloads", "music_author",
			"music_title", "music_url", "static_cover", "dynamic_cover",
			"tag", "digg_count", "comment_count", "collect_count",
			"share_count", "play_count", "extra",
		},
		labels: map[string]string{
			"platform": "Platform", "content_id": "Content ID",
			"source_type": "Source Type", "type": "Content Type",
			"collection_time": "Collection Time", "uid": "UID",
			"sec_uid": "SEC_UID", "unique_id": "Account ID",
			`"desc"`: "Description", "text_extra": "Topics/Tags",
			"duration": "Duration", "height": "Height", "width": "Width",
			"share_url": "Share URL", "create_time": "Publish Time",
			"uri": "Video URI", "nickname": "Nickname", "user_age": "Age",
			"signature": "Bio", "downloads": "Download URL",
			"music_author": "Music Author", "music_title": "Music Title",
			"music_url": "Music URL", "static_cover": "Static Cover",
			"dynamic_cover": "Dynamic Cover", "tag": "Hidden Tags",
			"digg_count": "Likes", "comment_count": "Comments",
			"collect_count": "Favorites", "share_count": "Shares",
			"play_count": "Plays", "extra": "Extra Info",
		},
		args: func(r models.Record) ([]any, error) {
			c, ok := r.(*models.Content)
			if !ok {
				return nil, fmt.Errorf("expected *models.Content, got %T", r)
			}
			sourceType := c.SourceType
			if sourceType == "" {
				sourceType = "detail"
			}
			return []any{
				c.Platform, c.ContentID,
				sourceType, c.Type, c.CollectionTime, c.UID, c.SecUID,
				c.UniqueID, c.Desc, c.TextExtra, c.Duration, int64(c.Height),
				int64(c.Width), c.ShareURL, c.PublishTime, c.URI, c.Nickname,
				int64(c.UserAge), c.Signature, c.Downloads, c.MusicAuthor,
				c.MusicTitle, c.MusicURL, c.StaticCover, c.DynamicCover,
				c.Tag, int64(c.DiggCount), int64(c.CommentCount),
				int64(c.CollectCount), int64(c.ShareCount), int64(c.PlayCount),
				c.Extra,
			}, nil
		},
	},
	models.KindComment: {
		table:   "comments",
		sheet:   "Comments",
		keyCols: []string{"platform", "comment_id"},
		payload: []string{
			"collection_time", "create_time", "uid", "sec_uid", "nickname",
			"signature", "user_age", "ip_label", `"text"`, "sticker",
			"image", "digg_count", "reply_comment_total", "reply_id",
			"reply_to_reply_id",
		},
		labels: map[string]string{
			"platform": "Platform", "comment_id": "Comment ID",
			"collection_time": "Collection Time", "create_time": "Comment Time",
			"uid": "UID", "sec_uid": "SEC_UID", "nickname": "Nickname",
			"signature": "Bio", "user_age": "Age", "ip_label": "IP Location",
			`"text"`: "Comment Text", "sticker": "Sticker", "image": "Image",
			"digg_count": "Likes", "reply_comment_total": "Replies",
			"reply_id": "Reply ID", "reply_to_reply_id": "Reply To",
		},
		args: func(r models.Record) ([]any, error) {
			c, ok := r.(*models.Comment)
			if !ok {
				return nil, fmt.Errorf("expected *models.Comment, got %T", r)
			}
			return []any{
				c.Platform, c.CommentID,
				c.CollectionTime, c.PublishTime, c.UID, c.SecUID, c.Nickname,
				c.Signature, int64(c.UserAge), c.IPLabel, c.Text, c.Sticker,
				c.Image, int64(c.DiggCount), int64(c.ReplyCommentTotal),
				c.ReplyID, c.ReplyToReplyID,
			}, nil
		},
	},
	models.KindUser: {
		table:   "users",
		sheet:   "Users",
		keyCols: []string{"platform", "uid"},
		payload: []string{
			"collection_time", "nickname", "url", "signature", "unique_id",
			"user_age", "gender", "country", "province", "city", "district",
			"ip_location", "verify", "enterprise", "sec_uid", "short_id",
			"avatar", "cover", "aweme_count", "total_favorited",
			"favoriting_count", "follower_count", "following_count",
			"max_follower_count",
		},
		labels: map[string]string{
			"platform": "Platform", "uid": "UID",
			"collection_time": "Collection Time", "nickname": "Nickname",
			"url": "Profile URL", "signature": "Bio", "unique_id": "Account ID",
			"user_age": "Age", "gender": "Gender", "country": "Country",
			"province": "Province", "city": "City", "district": "District",
			"ip_location": "IP Location", "verify": "Verification",
			"enterprise": "Enterprise", "sec_uid": "SEC_UID",
			"short_id": "SHORT_ID", "avatar": "Avatar URL", "cover": "Cover URL",
			"aweme_count": "Posts", "total_favorited": "Total Likes",
			"favoriting_count": "Favorites Given", "follower_count": "Followers",
			"following_count": "Following", "max_follower_count": "Max Followers",
		},
		args: func(r models.Record) ([]any, error) {
			u, ok := r.(*models.User)
			if !ok {
				return nil, fmt.Errorf("expected *models.User, got %T", r)
			}
			return []any{
				u.Platform, u.UID,
				u.CollectionTime, u.Nickname, u.URL, u.Signature, u.UniqueID,
				int64(u.UserAge), u.Gender, u.Country, u.Province, u.City,
				u.District, u.IPLocation, u.Verify, u.Enterprise, u.SecUID,
				u.ShortID, u.Avatar, u.Cover, int64(u.AwemeCount),
				int64(u.TotalFavorited), int64(u.FavoritingCount),
				int64(u.FollowerCount), int64(u.FollowingCount),
				int64(u.MaxFollowerCount),
			}, nil
		},
	},
	models.KindSearchUser: {
		table:   "search_users",
		sheet:   "Search Users",
		keyCols: []string{"platform", "query_hash", "uid"},
		payload: []string{
			"query", "collection_time", "sec_uid", "nickname", "unique_id",
			"short_id", "avatar", "signature", "verify", "enterprise",
			"follower_count", "total_favorited",
		},
		labels: map[string]string{
			"platform": "Platform", "query_hash": "Query Hash", "uid": "UID",
			"query": "Search Query", "collection_time": "Collection Time",
			"sec_uid": "SEC_UID", "nickname": "Nickname",
			"unique_id": "Account ID", "short_id": "SHORT_ID",
			"avatar": "Avatar URL", "signature": "Bio",
			"verify": "Verification", "enterprise": "Enterprise",
			"follower_count": "Followers", "total_favorited": "Total Likes",
		},
		args: func(r models.Record) ([]any, error) {
			s, ok := r.(*models.SearchUser)
			if !ok {
				return nil, fmt.Errorf("expected *models.SearchUser, got %T", r)
			}
			return []any{
				s.Platform, s.QueryHash(), s.UID,
				s.Query, s.CollectionTime, s.SecUID, s.Nickname, s.UniqueID,
				s.ShortID, s.Avatar, s.Signature, s.Verify, s.Enterprise,
				int64(s.FollowerCount), int64(s.TotalFavorited),
			}, nil
		},
	},
	models.KindSearchLive: {
		table:   "search_lives",
		sheet:   "Search Lives",
		keyCols: []string{"platform", "query_hash", "room_id"},
		payload: []string{
			"query", "collection_time", "uid", "sec_uid", "nickname",
			"short_id", "avatar", "signature", "verify", "enterprise",
		},
		labels: map[string]string{
			"platform": "Platform", "query_hash": "Query Hash",
			"room_id": "Room ID", "query": "Search Query",
			"collection_time": "Collection Time", "uid": "UID",
			"sec_uid": "SEC_UID", "nickname": "Nickname",
			"short_id": "SHORT_ID", "avatar": "Avatar URL",
			"signature": "Bio", "verify": "Verification",
			"enterprise": "Enterprise",
		},
		args: func(r models.Record) ([]any, error) {
			s, ok := r.(*models.SearchLive)
			if !ok {
				return nil, fmt.Errorf("expected *models.SearchLive, got %T", r)
			}
			return []any{
				s.Platform, s.QueryHash(), s.RoomID,
				s.Query, s.CollectionTime, s.UID, s.SecUID, s.Nickname,
				s.ShortID, s.Avatar, s.Signature, s.Verify, s.Enterprise,
			}, nil
		},
	},
	models.KindHotTrend: {
		table:   "hot_trends",
		sheet:   "Hot Trends",
		keyCols: []string{"platform", "trend_id", "captured_at_bucket"},
		payload: []string{
			"position", "word", "hot_value", "cover", "event_time",
			"view_count", "video_count",
		},
		labels: map[string]string{
			"platform": "Platform", "trend_id": "Trend ID",
			"captured_at_bucket": "Captured Hour", "position": "Rank",
			"word": "Content", "hot_value": "Hot Value", "cover": "Cover",
			"event_time": "Event Time", "view_count": "Views",
			"video_count": "Videos",
		},
		args: func(r models.Record) ([]any, error) {
			h, ok := r.(*models.HotTrend)
			if !ok {
				return nil, fmt.Errorf("expected *models.HotTrend, got %T", r)
			}
			return []any{
				h.Platform, h.TrendID, h.Bucket(),
				int64(h.Position), h.Word, int64(h.HotValue), h.Cover,
				h.EventTime, int64(h.ViewCount), int64(h.VideoCount),
			}, nil
		},
	},
}

// upsertSQL holds one precomputed statement per kind
var upsertSQL = buildUpsertStatements()

func buildUpsertStatements() map[models.Kind]string {
	stmts := make(map[models.Kind]string, len(tableSpecs))
	for kind, spec := range tableSpecs {
		stmts[kind] = buildUpsertSQL(spec)
	}
	return stmts
}

// buildUpsertSQL renders the atomic conditional write for one table. On
// conflict the payload columns are fully replaced (last writer wins) and
// last_updated_at advances; first_seen_at stays at the inserting write.
// RETURNING (xmax = 0) distinguishes insert from update.
func buildUpsertSQL(spec tableSpec) string {
	cols := make([]string, 0, len(spec.keyCols)+len(spec.payload))
	cols = append(cols, spec.keyCols...)
	cols = append(cols, spec.payload...)

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	set := make([]string, 0, len(spec.payload)+1)
	for _, col := range spec.payload {
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	set = append(set, "last_updated_at = now()")

	return fmt.Sprintf(
		"INSERT INTO %s (%s, first_seen_at, last_updated_at) VALUES (%s, now(), now()) "+
			"ON CONFLICT (%s) DO UPDATE SET %s RETURNING (xmax = 0)",
		spec.table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(spec.keyCols, ", "),
		strings.Join(set, ", "),
	)
}

// exportColumns returns the column list exposed to the exporter, identity
// key first so pages come back in identity-key order.
func (s tableSpec) exportColumns() []string {
	cols := make([]string, 0, len(s.keyCols)+len(s.payload)+2)
	cols = append(cols, s.keyCols...)
	cols = append(cols, s.payload...)
	cols = append(cols, "first_seen_at", "last_updated_at")
	return cols
}

// exportLabels returns human-readable headers aligned with exportColumns
func (s tableSpec) exportLabels() []string {
	cols := s.exportColumns()
	labels := make([]string, len(cols))
	for i, col := range cols {
		switch col {
		case "first_seen_at":
			labels[i] = "First Seen"
		case "last_updated_at":
			labels[i] = "Last Updated"
		default:
			if label, ok := s.labels[col]; ok {
				labels[i] = label
			} else {
				labels[i] = col
			}
		}
	}
	return labels
}

func (s tableSpec) hasColumn(name string) bool {
	for _, col := range s.payload {
		if col == name {
			return true
		}
	}
	return false
}
