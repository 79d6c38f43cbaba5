package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

const discountCodeColumns = `id, customer_id, course_id, code, discount_type, discount_value, reason,
	description, valid_from, valid_until, status, used_at, email_sent_at, cancelled_at,
	cancelled_reason, created_at`

func (s *Store) CreateDiscountCode(ctx context.Context, dc *models.DiscountCode) error {
	query := `
		INSERT INTO discount_codes (` + discountCodeColumns + `)
		VALUES (:id, :customer_id, :course_id, :code, :discount_type, :discount_value, :reason,
			:description, :valid_from, :valid_until, :status, :used_at, :email_sent_at, :cancelled_at,
			:cancelled_reason, :created_at)
	`
	_, err := s.named(ctx, query, dc)
	return mapError(err)
}

func (s *Store) UpdateDiscountCode(ctx context.Context, dc *models.DiscountCode) error {
	query := `
		UPDATE discount_codes SET
			customer_id = :customer_id, course_id = :course_id, code = :code,
			discount_type = :discount_type, discount_value = :discount_value, reason = :reason,
			description = :description, valid_from = :valid_from, valid_until = :valid_until,
			status = :status, used_at = :used_at, email_sent_at = :email_sent_at,
			cancelled_at = :cancelled_at, cancelled_reason = :cancelled_reason
		WHERE id = :id
	`
	return expectRow(s.named(ctx, query, dc))
}

func (s *Store) GetDiscountCode(ctx context.Context, id uuid.UUID) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	if err := s.get(ctx, &dc, `SELECT `+discountCodeColumns+` FROM discount_codes WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &dc, nil
}

func (s *Store) GetDiscountCodeByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	if err := s.get(ctx, &dc, `SELECT `+discountCodeColumns+` FROM discount_codes WHERE code = $1`, code); err != nil {
		return nil, err
	}
	return &dc, nil
}

func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := s.get(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM discount_codes WHERE code = $1)`, code); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) FindForCustomerAndCourse(ctx context.Context, customerID, courseID uuid.UUID, statuses ...models.DiscountStatus) ([]*models.DiscountCode, error) {
	query := `
		SELECT ` + discountCodeColumns + ` FROM discount_codes
		WHERE customer_id = $1 AND course_id = $2
			AND (cardinality($3::text[]) = 0 OR status = ANY($3::text[]))
		ORDER BY created_at
	`
	filter := make([]string, len(statuses))
	for i, st := range statuses {
		filter[i] = string(st)
	}

	var codes []*models.DiscountCode
	if err := s.list(ctx, &codes, query, customerID, courseID, pq.Array(filter)); err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *Store) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.exec(ctx).ExecContext(ctx, `DELETE FROM discount_codes WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete discount codes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
