package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/repository"
)

const leadColumns = `
	id, name, phone, treatment_interest, status, source, initial_message,
	potential_value, price_quoted, is_vip, national_id, birth_year,
	last_contacted, assigned_doctor, appointment_date, appointment_time,
	duration, visit_status, created_at, updated_at`

type leadRepository struct {
	BaseRepository
	loc *time.Location
}

// NewLeadRepository returns a lead store whose appointment days are read back
// as midnight in loc.
func NewLeadRepository(db *sqlx.DB, loc *time.Location) repository.LeadRepository {
	if loc == nil {
		loc = time.Local
	}
	return &leadRepository{BaseRepository: NewBaseRepository(db), loc: loc}
}

func (r *leadRepository) Create(ctx context.Context, lead *model.Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	now := time.Now()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO leads (` + leadColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			        $13, $14, $15, $16, $17, $18, $19, $20)
		`
		_, err := tx.ExecContext(ctx, query,
			lead.ID,
			lead.Name,
			lead.Phone,
			lead.TreatmentInterest,
			lead.Status,
			lead.Source,
			lead.InitialMessage,
			lead.PotentialValue,
			lead.PriceQuoted,
			lead.IsVIP,
			lead.NationalID,
			lead.BirthYear,
			lead.LastContacted,
			lead.AssignedDoctor,
			dateArg(lead.AppointmentDate),
			lead.AppointmentTime,
			lead.Duration,
			lead.VisitStatus,
			lead.CreatedAt,
			lead.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create lead: %w", err)
		}

		for i := range lead.Payments {
			lead.Payments[i].LeadID = lead.ID
			if err := insertPayment(ctx, tx, &lead.Payments[i]); err != nil {
				return err
			}
		}
		for i := range lead.Notes {
			lead.Notes[i].LeadID = lead.ID
			if err := insertNote(ctx, tx, &lead.Notes[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *leadRepository) Get(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	var lead model.Lead
	if err := r.db.GetContext(ctx, &lead, query, id); err != nil {
		return nil, notFound(err)
	}

	leads := []*model.Lead{&lead}
	if err := r.attach(ctx, leads); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *leadRepository) Update(ctx context.Context, lead *model.Lead) error {
	return updateLead(ctx, r.db, lead)
}

// UpdateWithPayment writes the lead and its new payment in one transaction.
func (r *leadRepository) UpdateWithPayment(ctx context.Context, lead *model.Lead, payment *model.Payment) error {
	if payment == nil {
		return r.Update(ctx, lead)
	}
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateLead(ctx, tx, lead); err != nil {
			return err
		}
		payment.LeadID = lead.ID
		return insertPayment(ctx, tx, payment)
	})
}

func updateLead(ctx context.Context, db sqlx.ExecerContext, lead *model.Lead) error {
	query := `
		UPDATE leads SET
			name = $1, phone = $2, treatment_interest = $3, status = $4,
			potential_value = $5, price_quoted = $6, is_vip = $7,
			national_id = $8, birth_year = $9, last_contacted = $10,
			assigned_doctor = $11, appointment_date = $12,
			appointment_time = $13, duration = $14, visit_status = $15,
			updated_at = $16
		WHERE id = $17
	`
	lead.UpdatedAt = time.Now()
	result, err := db.ExecContext(ctx, query,
		lead.Name,
		lead.Phone,
		lead.TreatmentInterest,
		lead.Status,
		lead.PotentialValue,
		lead.PriceQuoted,
		lead.IsVIP,
		lead.NationalID,
		lead.BirthYear,
		lead.LastContacted,
		lead.AssignedDoctor,
		dateArg(lead.AppointmentDate),
		lead.AppointmentTime,
		lead.Duration,
		lead.VisitStatus,
		lead.UpdatedAt,
		lead.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *leadRepository) List(ctx context.Context, filters *model.LeadFilters) ([]*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1 = 1`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if filters.Doctor != "" {
			query += fmt.Sprintf(" AND assigned_doctor = $%d", argCount)
			args = append(args, filters.Doctor)
			argCount++
		}
		if filters.DateRange != nil {
			query += fmt.Sprintf(" AND appointment_date >= $%d AND appointment_date < $%d", argCount, argCount+1)
			args = append(args, dateArg(&filters.DateRange.Start), dateArg(&filters.DateRange.End))
			argCount += 2
		}
	}

	query += " ORDER BY appointment_date ASC NULLS LAST, appointment_time ASC NULLS LAST, created_at ASC, id ASC"

	var leads []*model.Lead
	if err := r.db.SelectContext(ctx, &leads, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	if err := r.attach(ctx, leads); err != nil {
		return nil, err
	}
	return leads, nil
}

// attach loads payments and notes for leads in two queries and normalizes
// appointment days.
func (r *leadRepository) attach(ctx context.Context, leads []*model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*model.Lead, len(leads))
	ids := make([]string, 0, len(leads))
	for _, l := range leads {
		l.AppointmentDate = localDay(l.AppointmentDate, r.loc)
		l.Payments = []model.Payment{}
		l.Notes = []model.Note{}
		byID[l.ID] = l
		ids = append(ids, l.ID.String())
	}

	var payments []model.Payment
	err := r.db.SelectContext(ctx, &payments, `
		SELECT id, lead_id, amount, method, paid_at, note
		FROM lead_payments WHERE lead_id = ANY($1::uuid[])
		ORDER BY paid_at ASC
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load payments: %w", err)
	}
	for _, p := range payments {
		if l, ok := byID[p.LeadID]; ok {
			l.Payments = append(l.Payments, p)
		}
	}

	var notes []model.Note
	err = r.db.SelectContext(ctx, &notes, `
		SELECT id, lead_id, text, created_at
		FROM lead_notes WHERE lead_id = ANY($1::uuid[])
		ORDER BY created_at ASC
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load notes: %w", err)
	}
	for _, n := range notes {
		if l, ok := byID[n.LeadID]; ok {
			l.Notes = append(l.Notes, n)
		}
	}
	return nil
}

func (r *leadRepository) AddPayment(ctx context.Context, payment *model.Payment) error {
	return insertPayment(ctx, r.db, payment)
}

func (r *leadRepository) AddNote(ctx context.Context, note *model.Note) error {
	return insertNote(ctx, r.db, note)
}

func (r *leadRepository) PaymentsBetween(ctx context.Context, from, to time.Time) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.SelectContext(ctx, &payments, `
		SELECT id, lead_id, amount, method, paid_at, note
		FROM lead_payments
		WHERE paid_at >= $1 AND paid_at < $2
		ORDER BY paid_at ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func insertPayment(ctx context.Context, db sqlx.ExecerContext, p *model.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO lead_payments (id, lead_id, amount, method, paid_at, note)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.LeadID, p.Amount, p.Method, p.Date, p.Note)
	if err != nil {
		return fmt.Errorf("failed to add payment: %w", err)
	}
	return nil
}

func insertNote(ctx context.Context, db sqlx.ExecerContext, n *model.Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO lead_notes (id, lead_id, text, created_at)
		VALUES ($1, $2, $3, $4)
	`, n.ID, n.LeadID, n.Text, n.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to add note: %w", err)
	}
	return nil
}
