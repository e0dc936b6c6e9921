package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/ports/repository"
)

var _ repository.SubjectRepository = (*subjectRepo)(nil)

// subjectRepo reads the catalog of sellable signal subjects. The catalog is
// owned by another service; this side only checks existence.
type subjectRepo struct{ pool *pgxpool.Pool }

func NewSubjectRepo(pool *pgxpool.Pool) *subjectRepo {
	return &subjectRepo{pool: pool}
}

func (r *subjectRepo) FilterExisting(ctx context.Context, tx repository.Tx, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const q = `SELECT id FROM subjects WHERE id = ANY($1) AND active;`
	rows, err := queryRows(ctx, r.pool, tx, q, ids)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[id] = true
	}
	return out, nil
}
