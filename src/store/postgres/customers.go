package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

const customerColumns = `id, first_name, last_name, email, mobile, birthday, street, house_number,
	postal_code, city, country, notes, is_active, archived_at, created_at, updated_at`

func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES (:id, :first_name, :last_name, :email, :mobile, :birthday, :street, :house_number,
			:postal_code, :city, :country, :notes, :is_active, :archived_at, :created_at, :updated_at)
	`
	_, err := s.named(ctx, query, c)
	return mapError(err)
}

func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		UPDATE customers SET
			first_name = :first_name, last_name = :last_name, email = :email, mobile = :mobile,
			birthday = :birthday, street = :street, house_number = :house_number,
			postal_code = :postal_code, city = :city, country = :country, notes = :notes,
			is_active = :is_active, archived_at = :archived_at, updated_at = :updated_at
		WHERE id = :id
	`
	return expectRow(s.named(ctx, query, c))
}

func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	if err := s.get(ctx, &c, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCustomersWithBirthday(ctx context.Context, month time.Month, day int) ([]*models.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE EXTRACT(MONTH FROM birthday) = $1 AND EXTRACT(DAY FROM birthday) = $2
		ORDER BY last_name
	`
	var customers []*models.Customer
	if err := s.list(ctx, &customers, query, int(month), day); err != nil {
		return nil, err
	}
	return customers, nil
}

// Offers

const offerColumns = `id, offer_type, title, format, course_units, course_duration, ticket_sessions,
	ticket_validity_months, amount, tax_rate, is_tax_exempt, zpp_certification_id, notes,
	is_active, created_at, updated_at`

const certificationColumns = `id, zpp_id, name, official_title, format, valid_from, valid_until, is_active, notes`

func (s *Store) CreateOffer(ctx context.Context, o *models.Offer) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		if o.ZPPCertification != nil {
			o.ZPPCertificationID = &o.ZPPCertification.ID
			if err := s.upsertCertification(ctx, o.ZPPCertification); err != nil {
				return err
			}
		}
		query := `
			INSERT INTO offers (` + offerColumns + `)
			VALUES (:id, :offer_type, :title, :format, :course_units, :course_duration, :ticket_sessions,
				:ticket_validity_months, :amount, :tax_rate, :is_tax_exempt, :zpp_certification_id, :notes,
				:is_active, :created_at, :updated_at)
		`
		_, err := s.named(ctx, query, o)
		return mapError(err)
	})
}

func (s *Store) upsertCertification(ctx context.Context, z *models.ZPPCertification) error {
	query := `
		INSERT INTO zpp_certifications (` + certificationColumns + `)
		VALUES (:id, :zpp_id, :name, :official_title, :format, :valid_from, :valid_until, :is_active, :notes)
		ON CONFLICT (id) DO UPDATE SET
			zpp_id = EXCLUDED.zpp_id, name = EXCLUDED.name, official_title = EXCLUDED.official_title,
			format = EXCLUDED.format, valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
			is_active = EXCLUDED.is_active, notes = EXCLUDED.notes
	`
	_, err := s.named(ctx, query, z)
	return mapError(err)
}

// GetOffer loads the offer with its certification
func (s *Store) GetOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var o models.Offer
	if err := s.get(ctx, &o, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id); err != nil {
		return nil, err
	}
	if o.ZPPCertificationID != nil {
		var z models.ZPPCertification
		err := s.get(ctx, &z, `SELECT `+certificationColumns+` FROM zpp_certifications WHERE id = $1`, *o.ZPPCertificationID)
		if err != nil {
			return nil, err
		}
		o.ZPPCertification = &z
	}
	return &o, nil
}

// Locations

const locationColumns = `id, name, street, house_number, postal_code, city, max_participants`

func (s *Store) CreateLocation(ctx context.Context, l *models.Location) error {
	query := `
		INSERT INTO locations (` + locationColumns + `)
		VALUES (:id, :name, :street, :house_number, :postal_code, :city, :max_participants)
	`
	_, err := s.named(ctx, query, l)
	return mapError(err)
}

func (s *Store) getLocation(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	var l models.Location
	if err := s.get(ctx, &l, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &l, nil
}
