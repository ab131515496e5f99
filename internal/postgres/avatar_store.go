package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"avatar-hub/internal/fault"
	"avatar-hub/internal/models"
	"avatar-hub/internal/remote"
)

var _ remote.Store = (*AvatarStore)(nil)

// AvatarStore implements remote.Store against the avatars table.
//
// Reference schema (owned by the store, shipped here only for context):
//
//	avatars(
//	    id text primary key, owner_id text not null, display_name text,
//	    bio text, niche text, personality text[], backstory text,
//	    voice_style text, image_url text,
//	    followers_count bigint, likes_count bigint, posts_count bigint,
//	    engagement_rate double precision, active boolean,
//	    autonomous_posting boolean, created_at timestamptz,
//	    updated_at timestamptz, metadata jsonb)
//	avatar_posts(content_id text primary key, avatar_id text not null,
//	    likes_count bigint, created_at timestamptz)
type AvatarStore struct {
	db  *DB
	log *slog.Logger
}

func NewAvatarStore(log *slog.Logger, db *DB) *AvatarStore {
	return &AvatarStore{db: db, log: log}
}

const avatarColumns = `id, owner_id, display_name, bio, niche, personality, backstory,
	voice_style, image_url, followers_count, likes_count, posts_count,
	engagement_rate, active, autonomous_posting, created_at, updated_at, metadata`

func (s *AvatarStore) Fetch(ctx context.Context, id string) (models.Avatar, error) {
	const op = "postgres.Fetch"

	row := s.db.Pool.QueryRow(ctx,
		`SELECT `+avatarColumns+` FROM avatars WHERE id = $1`, id)

	av, err := scanAvatar(row)
	if err != nil {
		return models.Avatar{}, classify(op, err)
	}
	return av, nil
}

func (s *AvatarStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Avatar, error) {
	const op = "postgres.ListByOwner"

	rows, err := s.db.Pool.Query(ctx,
		`SELECT `+avatarColumns+` FROM avatars WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []models.Avatar
	for rows.Next() {
		av, err := scanAvatar(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, av)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func (s *AvatarStore) Update(ctx context.Context, av models.Avatar) error {
	const op = "postgres.Update"

	metadata, err := json.Marshal(av.Metadata)
	if err != nil {
		return fault.Wrap(fault.KindValidation, op, err)
	}

	tag, err := s.db.Pool.Exec(ctx,
		`UPDATE avatars SET
			display_name = $2, bio = $3, niche = $4, personality = $5,
			backstory = $6, voice_style = $7, image_url = $8,
			followers_count = $9, likes_count = $10, posts_count = $11,
			engagement_rate = $12, autonomous_posting = $13,
			metadata = $14, updated_at = now()
		 WHERE id = $1`,
		av.ID, av.DisplayName, av.Bio, av.Niche, traitStrings(av.Personality),
		av.Backstory, av.VoiceStyle, av.ImageURL,
		av.FollowersCount, av.LikesCount, av.PostsCount,
		av.EngagementRate, av.AutonomousPosting, metadata,
	)
	if err != nil {
		return classify(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.KindNotFound, op, "avatar "+av.ID+" not found")
	}
	return nil
}

// SetActive flips the owner's active avatar in one transaction so the
// exactly-one-active invariant holds in the store too.
func (s *AvatarStore) SetActive(ctx context.Context, ownerID, avatarID string) error {
	const op = "postgres.SetActive"

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return classify(op, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE avatars SET active = false, updated_at = now()
		 WHERE owner_id = $1 AND active`, ownerID); err != nil {
		return classify(op, err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE avatars SET active = true, updated_at = now()
		 WHERE id = $1 AND owner_id = $2`, avatarID, ownerID)
	if err != nil {
		return classify(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.KindNotFound, op, "avatar "+avatarID+" not found for owner "+ownerID)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(op, err)
	}
	return nil
}

func (s *AvatarStore) Delete(ctx context.Context, id string) error {
	const op = "postgres.Delete"

	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM avatars WHERE id = $1`, id)
	if err != nil {
		return classify(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.KindNotFound, op, "avatar "+id+" not found")
	}
	return nil
}

// ComputeStats aggregates the authoritative counters for one avatar. Used by
// the stats refresh worker; never called on the read path.
func (s *AvatarStore) ComputeStats(ctx context.Context, avatarID string) (models.AvatarStats, error) {
	const op = "postgres.ComputeStats"

	var st models.AvatarStats
	st.AvatarID = avatarID

	row := s.db.Pool.QueryRow(ctx,
		`SELECT
			a.followers_count,
			a.engagement_rate,
			COALESCE((SELECT count(*) FROM avatar_posts p WHERE p.avatar_id = a.id), 0),
			COALESCE((SELECT sum(p.likes_count) FROM avatar_posts p WHERE p.avatar_id = a.id), 0),
			a.updated_at
		 FROM avatars a WHERE a.id = $1`, avatarID)

	if err := row.Scan(&st.FollowersCount, &st.EngagementRate, &st.PostsCount, &st.TotalLikes, &st.LastActiveAt); err != nil {
		return models.AvatarStats{}, classify(op, err)
	}
	return st, nil
}

// ListContentIDs returns the avatar's post ids for seeding the content
// association index.
func (s *AvatarStore) ListContentIDs(ctx context.Context, avatarID string) ([]string, error) {
	const op = "postgres.ListContentIDs"

	rows, err := s.db.Pool.Query(ctx,
		`SELECT content_id FROM avatar_posts WHERE avatar_id = $1`, avatarID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListRecentlyUpdatedIDs returns avatars touched since the cutoff, newest
// first. The stats worker uses this to sweep for rows needing recomputation.
func (s *AvatarStore) ListRecentlyUpdatedIDs(ctx context.Context, since time.Time, limit int) ([]string, error) {
	const op = "postgres.ListRecentlyUpdatedIDs"

	if limit < 1 {
		limit = 500
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT id FROM avatars WHERE updated_at >= $1 ORDER BY updated_at DESC LIMIT $2`,
		since, limit)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAvatar(row rowScanner) (models.Avatar, error) {
	var (
		av       models.Avatar
		traits   []string
		metadata []byte
	)

	err := row.Scan(
		&av.ID, &av.OwnerID, &av.DisplayName, &av.Bio, &av.Niche, &traits,
		&av.Backstory, &av.VoiceStyle, &av.ImageURL,
		&av.FollowersCount, &av.LikesCount, &av.PostsCount,
		&av.EngagementRate, &av.Active, &av.AutonomousPosting,
		&av.CreatedAt, &av.UpdatedAt, &metadata,
	)
	if err != nil {
		return models.Avatar{}, err
	}

	for _, t := range traits {
		av.Personality = append(av.Personality, models.PersonalityTrait(t))
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &av.Metadata)
	}
	return av, nil
}

func traitStrings(traits []models.PersonalityTrait) []string {
	out := make([]string, len(traits))
	for i, t := range traits {
		out[i] = string(t)
	}
	return out
}

// classify maps driver errors onto the fault taxonomy so the sync engine can
// surface them as-is.
func classify(op string, err error) *fault.Error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fault.Wrap(fault.KindNotFound, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 22 = data exception, class 23 = integrity violation
		if len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "22" || pgErr.Code[:2] == "23") {
			return fault.Wrap(fault.KindValidation, op, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fault.Wrap(fault.KindNetwork, op, err)
	}

	return fault.Wrap(fault.KindNetwork, op, err)
}
