package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/spec-kit/dispute-engine/pkg/util"
)

type pgJobDirectory struct {
	pool *pgxpool.Pool
}

// NewPgJobDirectory reads the jobs table maintained by the host
// application's directory service.
func NewPgJobDirectory(pool *pgxpool.Pool) JobDirectory {
	return &pgJobDirectory{pool: pool}
}

func (d *pgJobDirectory) GetJob(ctx context.Context, jobID string) (*Job, error) {
	const query = `
        SELECT id, title, property_id, landlord_user_id, contractor_user_id, tenant_user_id
        FROM jobs WHERE id=$1`
	var job Job
	if err := d.pool.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&job.Title,
		&job.PropertyID,
		&job.LandlordID,
		&job.ContractorID,
		&job.TenantID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("job", map[string]any{"job_id": jobID})
		}
		return nil, err
	}
	return &job, nil
}
