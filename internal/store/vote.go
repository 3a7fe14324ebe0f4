package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rumornet/arbiter/internal/domain"
)

type VoteStore struct {
	db *pgxpool.Pool
}

func NewVoteStore(db *pgxpool.Pool) *VoteStore {
	return &VoteStore{db: db}
}

// Put upserts on (community, subject_id, voter_id): one vote per
// participant per subject, enforced by the primary key.
func (s *VoteStore) Put(ctx context.Context, v *domain.Vote) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO votes (community, subject_id, voter_id, value, weight, cast_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (community, subject_id, voter_id) DO UPDATE
		 SET value = EXCLUDED.value, weight = EXCLUDED.weight, cast_at = NOW()
		 RETURNING cast_at`,
		v.Community, v.SubjectID, v.VoterID, v.Value, v.Weight,
	).Scan(&v.CastAt)
}

func (s *VoteStore) ListBySubject(ctx context.Context, community string, subjectID uuid.UUID) ([]domain.Vote, error) {
	rows, err := s.db.Query(ctx,
		`SELECT community, subject_id, voter_id, value, weight, cast_at
		 FROM votes WHERE community = $1 AND subject_id = $2
		 ORDER BY cast_at`,
		community, subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		var v domain.Vote
		if err := rows.Scan(&v.Community, &v.SubjectID, &v.VoterID, &v.Value, &v.Weight, &v.CastAt); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}
