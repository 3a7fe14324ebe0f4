package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rumornet/arbiter/internal/domain"
)

type KarmaStore struct {
	db *pgxpool.Pool
}

func NewKarmaStore(db *pgxpool.Pool) *KarmaStore {
	return &KarmaStore{db: db}
}

func (s *KarmaStore) Get(ctx context.Context, community, participantID string) (float64, error) {
	var value float64
	err := s.db.QueryRow(ctx,
		`SELECT value FROM karma WHERE community = $1 AND participant_id = $2`,
		community, participantID,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.KarmaInitial, nil
		}
		return 0, err
	}
	return value, nil
}

// Add applies the delta and floor in a single upsert statement so the
// read-modify-write cannot interleave with a concurrent mutation of the
// same participant.
func (s *KarmaStore) Add(ctx context.Context, community, participantID string, delta float64) (float64, error) {
	var value float64
	err := s.db.QueryRow(ctx,
		`INSERT INTO karma (community, participant_id, value)
		 VALUES ($1, $2, GREATEST($4::float8, $3::float8 + $5::float8))
		 ON CONFLICT (community, participant_id) DO UPDATE
		 SET value = GREATEST($4::float8, karma.value + $5::float8), updated_at = NOW()
		 RETURNING value`,
		community, participantID, domain.KarmaInitial, domain.KarmaFloor, delta,
	).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}
