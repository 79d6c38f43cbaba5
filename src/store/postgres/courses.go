package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

const courseColumns = `id, offer_id, location_id, start_date, end_date, start_time, end_time, is_weekly,
	weekday, is_active, start_email_sent, start_email_sent_at, completion_email_sent,
	completion_email_sent_at, start_email_job_id, completion_email_job_id, created_at, updated_at`

type participantRow struct {
	CustomerID uuid.UUID              `db:"customer_id"`
	Mode       models.ParticipantMode `db:"mode"`
}

func (s *Store) CreateCourse(ctx context.Context, c *models.Course) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO courses (` + courseColumns + `)
			VALUES (:id, :offer_id, :location_id, :start_date, :end_date, :start_time, :end_time, :is_weekly,
				:weekday, :is_active, :start_email_sent, :start_email_sent_at, :completion_email_sent,
				:completion_email_sent_at, :start_email_job_id, :completion_email_job_id, :created_at, :updated_at)
		`
		if _, err := s.named(ctx, query, c); err != nil {
			return mapError(err)
		}
		return s.replaceParticipants(ctx, c)
	})
}

func (s *Store) UpdateCourse(ctx context.Context, c *models.Course) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		query := `
			UPDATE courses SET
				offer_id = :offer_id, location_id = :location_id, start_date = :start_date,
				end_date = :end_date, start_time = :start_time, end_time = :end_time,
				is_weekly = :is_weekly, weekday = :weekday, is_active = :is_active,
				start_email_sent = :start_email_sent, start_email_sent_at = :start_email_sent_at,
				completion_email_sent = :completion_email_sent,
				completion_email_sent_at = :completion_email_sent_at,
				start_email_job_id = :start_email_job_id,
				completion_email_job_id = :completion_email_job_id, updated_at = :updated_at
			WHERE id = :id
		`
		if err := expectRow(s.named(ctx, query, c)); err != nil {
			return err
		}
		return s.replaceParticipants(ctx, c)
	})
}

// replaceParticipants rewrites both lists keeping their order
func (s *Store) replaceParticipants(ctx context.Context, c *models.Course) error {
	if _, err := s.exec(ctx).ExecContext(ctx, `DELETE FROM course_participants WHERE course_id = $1`, c.ID); err != nil {
		return fmt.Errorf("failed to clear participants: %w", err)
	}

	insert := `INSERT INTO course_participants (course_id, customer_id, mode, position) VALUES ($1, $2, $3, $4)`
	lists := map[models.ParticipantMode][]uuid.UUID{
		models.ParticipantInPerson: c.ParticipantsInPerson,
		models.ParticipantOnline:   c.ParticipantsOnline,
	}
	for mode, ids := range lists {
		for i, id := range ids {
			if _, err := s.exec(ctx).ExecContext(ctx, insert, c.ID, id, mode, i); err != nil {
				return fmt.Errorf("failed to insert participant: %w", mapError(err))
			}
		}
	}
	return nil
}

func (s *Store) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var c models.Course
	if err := s.get(ctx, &c, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id); err != nil {
		return nil, err
	}
	if err := s.attach(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// attach loads offer, location and participants
func (s *Store) attach(ctx context.Context, c *models.Course) error {
	offer, err := s.GetOffer(ctx, c.OfferID)
	if err != nil {
		return fmt.Errorf("failed to load offer of course %s: %w", c.ID, err)
	}
	c.Offer = offer

	if c.LocationID != nil {
		location, err := s.getLocation(ctx, *c.LocationID)
		if err != nil {
			return fmt.Errorf("failed to load location of course %s: %w", c.ID, err)
		}
		c.Location = location
	}

	var rows []participantRow
	query := `SELECT customer_id, mode FROM course_participants WHERE course_id = $1 ORDER BY mode, position`
	if err := s.list(ctx, &rows, query, c.ID); err != nil {
		return err
	}
	c.ParticipantsInPerson, c.ParticipantsOnline = nil, nil
	for _, r := range rows {
		c.AddParticipant(r.Mode, r.CustomerID)
	}
	return nil
}

func (s *Store) DeleteCourse(ctx context.Context, id uuid.UUID) error {
	return expectRow(s.exec(ctx).ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id))
}

func (s *Store) ListCoursesEndingOn(ctx context.Context, date time.Time) ([]*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE is_active AND end_date = $1 ORDER BY start_date`
	var courses []*models.Course
	if err := s.list(ctx, &courses, query, models.DateOf(date)); err != nil {
		return nil, err
	}
	for _, c := range courses {
		if err := s.attach(ctx, c); err != nil {
			return nil, err
		}
	}
	return courses, nil
}

func (s *Store) DeactivateExpiredCourses(ctx context.Context, today time.Time) (int, error) {
	query := `UPDATE courses SET is_active = FALSE, updated_at = NOW() WHERE is_active AND end_date < $1`
	res, err := s.exec(ctx).ExecContext(ctx, query, models.DateOf(today))
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate courses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
