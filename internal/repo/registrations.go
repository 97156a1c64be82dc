package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegistrationQueries provê acesso aos pedidos de cadastro pendentes.
type RegistrationQueries struct {
	pool *pgxpool.Pool
}

// NewRegistrationQueries cria o repositório de cadastros.
func NewRegistrationQueries(pool *pgxpool.Pool) *RegistrationQueries {
	return &RegistrationQueries{pool: pool}
}

const registrationColumns = `id, nome, email, matricula, sigla_area, operational_base, date_of_birth, status, reviewed_by, reviewed_at, review_notes, criado_em`

// GetByID busca um pedido de cadastro.
func (q *RegistrationQueries) GetByID(ctx context.Context, id uuid.UUID) (PendingRegistration, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM pending_registrations WHERE id = $1`, id)
	return scanRegistration(row)
}

// ListPending devolve pedidos ainda não revisados, mais antigos primeiro.
func (q *RegistrationQueries) ListPending(ctx context.Context, limit int) ([]PendingRegistration, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	rows, err := q.pool.Query(ctx, `
        SELECT `+registrationColumns+`
        FROM pending_registrations
        WHERE status = $1
        ORDER BY criado_em ASC
        LIMIT $2
    `, RegistrationPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []PendingRegistration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// MarkReviewed fecha o pedido com guard condicional em status=pending, de
// forma que apenas um revisor concorrente consiga a transição.
func (q *RegistrationQueries) MarkReviewed(ctx context.Context, id uuid.UUID, status string, reviewedBy uuid.UUID, notes, siglaArea, operationalBase string) error {
	const query = `
        UPDATE pending_registrations
        SET status = $2,
            reviewed_by = $3,
            reviewed_at = $4,
            review_notes = NULLIF($5,''),
            sigla_area = $6,
            operational_base = $7
        WHERE id = $1 AND status = $8
    `
	tag, err := q.pool.Exec(ctx, query, id, status, reviewedBy, time.Now().UTC(), notes, siglaArea, operationalBase, RegistrationPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}

func scanRegistration(row pgx.Row) (PendingRegistration, error) {
	var (
		reg   PendingRegistration
		sigla *string
		base  *string
		matr  *string
	)
	err := row.Scan(&reg.ID, &reg.Nome, &reg.Email, &matr, &sigla, &base, &reg.DateOfBirth, &reg.Status, &reg.ReviewedBy, &reg.ReviewedAt, &reg.ReviewNotes, &reg.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingRegistration{}, ErrNotFound
		}
		return PendingRegistration{}, err
	}
	if matr != nil {
		reg.Matricula = *matr
	}
	if sigla != nil {
		reg.SiglaArea = *sigla
	}
	if base != nil {
		reg.OperationalBase = *base
	}
	return reg, nil
}
