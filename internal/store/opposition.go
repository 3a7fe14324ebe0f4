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

const oppositionColumns = `id, community, original_claim_id, challenger_id, status,
	window_closes_at, challenge_weight, total_voters, created_at, updated_at`

type OppositionStore struct {
	db *pgxpool.Pool
}

func NewOppositionStore(db *pgxpool.Pool) *OppositionStore {
	return &OppositionStore{db: db}
}

func (s *OppositionStore) Create(ctx context.Context, o *domain.Opposition) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = domain.OppositionActive
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO oppositions (id, community, original_claim_id, challenger_id, status, window_closes_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		o.ID, o.Community, o.OriginalClaimID, o.ChallengerID, o.Status, o.WindowClosesAt,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (s *OppositionStore) GetByID(ctx context.Context, community string, id uuid.UUID) (*domain.Opposition, error) {
	o := &domain.Opposition{}
	err := s.db.QueryRow(ctx,
		`SELECT `+oppositionColumns+` FROM oppositions WHERE community = $1 AND id = $2`,
		community, id,
	).Scan(
		&o.ID, &o.Community, &o.OriginalClaimID, &o.ChallengerID, &o.Status,
		&o.WindowClosesAt, &o.ChallengeWeight, &o.TotalVoters, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func (s *OppositionStore) ListExpiring(ctx context.Context, now time.Time) ([]domain.Opposition, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+oppositionColumns+` FROM oppositions
		 WHERE status = 'active' AND window_closes_at <= $1
		 ORDER BY window_closes_at`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opps []domain.Opposition
	for rows.Next() {
		var o domain.Opposition
		if err := rows.Scan(
			&o.ID, &o.Community, &o.OriginalClaimID, &o.ChallengerID, &o.Status,
			&o.WindowClosesAt, &o.ChallengeWeight, &o.TotalVoters, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

func (s *OppositionStore) MarkResolved(ctx context.Context, id uuid.UUID, status domain.OppositionStatus, challengeWeight float64, totalVoters int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE oppositions
		 SET status = $2, challenge_weight = $3, total_voters = $4, updated_at = NOW()
		 WHERE id = $1 AND status = 'active'`,
		id, status, challengeWeight, totalVoters,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}
