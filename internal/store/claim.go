package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rumornet/arbiter/internal/domain"
)

const claimColumns = `id, community, author_id, body, parent_claim_id, status,
	window_closes_at, extended_once, trust_score, weighted_true, weighted_false,
	total_voters, total_weight, opposition_id, votes_nullified, ghosted_at,
	created_at, updated_at`

type ClaimStore struct {
	db *pgxpool.Pool
}

func NewClaimStore(db *pgxpool.Pool) *ClaimStore {
	return &ClaimStore{db: db}
}

func (s *ClaimStore) Create(ctx context.Context, c *domain.Claim) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = domain.ClaimActive
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO claims (id, community, author_id, body, parent_claim_id, status, window_closes_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		c.ID, c.Community, c.AuthorID, c.Body, c.ParentClaimID, c.Status, c.WindowClosesAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func scanClaim(row pgx.Row) (*domain.Claim, error) {
	c := &domain.Claim{}
	err := row.Scan(
		&c.ID, &c.Community, &c.AuthorID, &c.Body, &c.ParentClaimID, &c.Status,
		&c.WindowClosesAt, &c.ExtendedOnce, &c.TrustScore, &c.WeightedTrue, &c.WeightedFalse,
		&c.TotalVoters, &c.TotalWeight, &c.OppositionID, &c.VotesNullified, &c.GhostedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ClaimStore) GetByID(ctx context.Context, community string, id uuid.UUID) (*domain.Claim, error) {
	return scanClaim(s.db.QueryRow(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE community = $1 AND id = $2`,
		community, id,
	))
}

func (s *ClaimStore) collect(rows pgx.Rows) ([]domain.Claim, error) {
	defer rows.Close()
	var claims []domain.Claim
	for rows.Next() {
		var c domain.Claim
		if err := rows.Scan(
			&c.ID, &c.Community, &c.AuthorID, &c.Body, &c.ParentClaimID, &c.Status,
			&c.WindowClosesAt, &c.ExtendedOnce, &c.TrustScore, &c.WeightedTrue, &c.WeightedFalse,
			&c.TotalVoters, &c.TotalWeight, &c.OppositionID, &c.VotesNullified, &c.GhostedAt,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func (s *ClaimStore) ListByCommunity(ctx context.Context, community string) ([]domain.Claim, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+claimColumns+` FROM claims
		 WHERE community = $1 AND status != 'ghost'
		 ORDER BY created_at DESC`,
		community,
	)
	if err != nil {
		return nil, err
	}
	return s.collect(rows)
}

func (s *ClaimStore) ListExpiring(ctx context.Context, now time.Time) ([]domain.Claim, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+claimColumns+` FROM claims
		 WHERE status IN ('active', 'extended') AND window_closes_at <= $1
		 ORDER BY window_closes_at`,
		now,
	)
	if err != nil {
		return nil, err
	}
	return s.collect(rows)
}

func (s *ClaimStore) ListReferencing(ctx context.Context, community string, id uuid.UUID) ([]domain.Claim, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+claimColumns+` FROM claims
		 WHERE community = $1 AND (parent_claim_id = $2 OR opposition_id = $2)`,
		community, id,
	)
	if err != nil {
		return nil, err
	}
	return s.collect(rows)
}

func (s *ClaimStore) ExtendWindow(ctx context.Context, id uuid.UUID, closesAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims
		 SET status = 'extended', window_closes_at = $2, extended_once = TRUE, updated_at = NOW()
		 WHERE id = $1 AND status IN ('active', 'extended') AND extended_once = FALSE`,
		id, closesAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *ClaimStore) MarkResolved(ctx context.Context, id uuid.UUID, status domain.ClaimStatus, trustScore, weightedTrue, weightedFalse float64, totalVoters int, totalWeight float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims
		 SET status = $2, trust_score = $3, weighted_true = $4, weighted_false = $5,
		     total_voters = $6, total_weight = $7, updated_at = NOW()
		 WHERE id = $1 AND status IN ('active', 'extended')`,
		id, status, trustScore, weightedTrue, weightedFalse, totalVoters, totalWeight,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *ClaimStore) MarkOpposed(ctx context.Context, id uuid.UUID, oppositionID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims
		 SET status = 'opposed', opposition_id = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'fact' AND opposition_id IS NULL`,
		id, oppositionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *ClaimStore) MarkOverturned(ctx context.Context, id uuid.UUID, trustScore float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims
		 SET status = 'false', trust_score = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'opposed'`,
		id, trustScore,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *ClaimStore) MarkRestored(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims
		 SET status = 'fact', updated_at = NOW()
		 WHERE id = $1 AND status = 'opposed'`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *ClaimStore) MarkGhosted(ctx context.Context, id uuid.UUID, ghostedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE claims
		 SET status = 'ghost', trust_score = 0, votes_nullified = TRUE, ghosted_at = $2, updated_at = NOW()
		 WHERE id = $1 AND status != 'ghost'`,
		id, ghostedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}
