package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hik-access-bridge/internal/models"

	"go.uber.org/zap"
)

// CustomerRepository read-only access to the roster (clientes + clientescamposlibres).
type CustomerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *sql.DB, logger *zap.Logger) *CustomerRepository {
	return &CustomerRepository{
		db:     db,
		logger: logger,
	}
}

// ListCustomers every customer with a plan row, ordered by customer code.
func (r *CustomerRepository) ListCustomers(ctx context.Context) ([]models.CustomerRecord, error) {
	query := `
		SELECT
			CAST(c.codcliente AS TEXT),
			c.nombrecliente,
			cl.fechainiplan,
			cl.fechafinplan
		FROM clientes c
		INNER JOIN clientescamposlibres cl ON c.codcliente = cl.codcliente
		ORDER BY c.codcliente
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []models.CustomerRecord
	for rows.Next() {
		var (
			c         models.CustomerRecord
			name      sql.NullString
			planStart sql.NullTime
			planEnd   sql.NullTime
		)
		if err := rows.Scan(&c.ID, &name, &planStart, &planEnd); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		c.Name = name.String
		c.PlanStart = timePtr(planStart)
		c.PlanEnd = timePtr(planEnd)
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customers: %w", err)
	}

	r.logger.Debug("Loaded customers", zap.Int("count", len(customers)))
	return customers, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
