package forecast

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surgicast/surgicast/internal/platform/db"
)

// Week is one point of the booking velocity series: bookings made three, two
// and one weeks ahead of the surgery week.
type Week struct {
	Index   int    `db:"week_index" json:"week"`
	Label   string `db:"label" json:"period"`
	TMinus3 int    `db:"t_minus_3" json:"t_minus_3"`
	TMinus2 int    `db:"t_minus_2" json:"t_minus_2"`
	TMinus1 int    `db:"t_minus_1" json:"t_minus_1"`
}

type VelocityRepository interface {
	List(ctx context.Context) ([]Week, error)
}

type velocityRepoPG struct{ pool *pgxpool.Pool }

func NewVelocityRepoPG(pool *pgxpool.Pool) VelocityRepository { return &velocityRepoPG{pool: pool} }

func (r *velocityRepoPG) List(ctx context.Context) ([]Week, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT week_index, label, t_minus_3, t_minus_2, t_minus_1
		FROM booking_velocity
		ORDER BY week_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var weeks []Week
	for rows.Next() {
		var w Week
		if err := rows.Scan(&w.Index, &w.Label, &w.TMinus3, &w.TMinus2, &w.TMinus1); err != nil {
			return nil, err
		}
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}
