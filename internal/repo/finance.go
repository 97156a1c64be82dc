package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engrodrigo-prog/djt-quest/internal/db"
)

// FinanceQueries provê acesso às solicitações financeiras, anexos e trilha
// de status.
type FinanceQueries struct {
	pool *pgxpool.Pool
}

// NewFinanceQueries cria o repositório de solicitações financeiras.
func NewFinanceQueries(pool *pgxpool.Pool) *FinanceQueries {
	return &FinanceQueries{pool: pool}
}

const financeColumns = `id, protocol, created_by, created_by_name, created_by_email, created_by_matricula, company, request_kind, expense_type, coordination, date_start, date_end, description, amount_cents, currency, status, last_observation, criado_em, atualizado_em`

// FinanceFilter restringe listagens de solicitações.
type FinanceFilter struct {
	Status       string
	RequestKind  string
	Coordination string
	CreatedBy    *uuid.UUID
	DateFrom     *time.Time
	DateTo       *time.Time
	Limit        int
	Offset       int
}

// Insert grava a solicitação e seus anexos na mesma transação: ou a
// solicitação entra com todos os comprovantes, ou não entra.
func (q *FinanceQueries) Insert(ctx context.Context, req FinanceRequest, attachments []FinanceAttachment) error {
	return db.WithTx(ctx, q.pool, func(ctx context.Context, tx pgx.Tx) error {
		const insertReq = `
            INSERT INTO finance_requests (id, protocol, created_by, created_by_name, created_by_email, created_by_matricula, company, request_kind, expense_type, coordination, date_start, date_end, description, amount_cents, currency, status)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        `
		_, err := tx.Exec(ctx, insertReq,
			req.ID, req.Protocol, req.CreatedBy, req.CreatedByName, req.CreatedByEmail, req.CreatedByMatric,
			req.Company, req.RequestKind, req.ExpenseType, req.Coordination,
			req.DateStart, req.DateEnd, req.Description, req.AmountCents, req.Currency, req.Status,
		)
		if err != nil {
			return err
		}

		const insertAtt = `
            INSERT INTO finance_request_attachments (id, request_id, file_name, file_url, object_key)
            VALUES ($1, $2, $3, $4, $5)
        `
		for _, att := range attachments {
			if _, err := tx.Exec(ctx, insertAtt, att.ID, req.ID, att.FileName, att.FileURL, att.ObjectKey); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete remove a solicitação com anexos e trilha na mesma transação. Usado
// para desfazer itens de um lote que não se completou.
func (q *FinanceQueries) Delete(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, q.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM finance_request_status_history WHERE request_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM finance_request_attachments WHERE request_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM finance_requests WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetByID busca uma solicitação.
func (q *FinanceQueries) GetByID(ctx context.Context, id uuid.UUID) (FinanceRequest, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+financeColumns+` FROM finance_requests WHERE id = $1`, id)
	return scanFinanceRequest(row)
}

// List devolve solicitações segundo o filtro, mais recentes primeiro.
func (q *FinanceQueries) List(ctx context.Context, filter FinanceFilter) ([]FinanceRequest, error) {
	conds := make([]string, 0, 6)
	args := make([]any, 0, 6)
	idx := 1

	if filter.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.RequestKind != "" {
		conds = append(conds, fmt.Sprintf("request_kind = $%d", idx))
		args = append(args, filter.RequestKind)
		idx++
	}
	if filter.Coordination != "" {
		conds = append(conds, fmt.Sprintf("coordination = $%d", idx))
		args = append(args, filter.Coordination)
		idx++
	}
	if filter.CreatedBy != nil {
		conds = append(conds, fmt.Sprintf("created_by = $%d", idx))
		args = append(args, *filter.CreatedBy)
		idx++
	}
	if filter.DateFrom != nil {
		conds = append(conds, fmt.Sprintf("criado_em >= $%d", idx))
		args = append(args, *filter.DateFrom)
		idx++
	}
	if filter.DateTo != nil {
		conds = append(conds, fmt.Sprintf("criado_em <= $%d", idx))
		args = append(args, *filter.DateTo)
		idx++
	}

	query := `SELECT ` + financeColumns + ` FROM finance_requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY criado_em DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", idx)
	args = append(args, limit)
	idx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", idx)
		args = append(args, filter.Offset)
	}

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []FinanceRequest
	for rows.Next() {
		req, err := scanFinanceRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// CountByStatus agrega a fila de revisão por status.
func (q *FinanceQueries) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := q.pool.Query(ctx, `SELECT status, count(*) FROM finance_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			total  int
		)
		if err := rows.Scan(&status, &total); err != nil {
			return nil, err
		}
		counts[status] = total
	}
	return counts, rows.Err()
}

// TransitionStatus muda o status com compare-and-swap no status anterior e
// grava a linha de histórico na mesma transação. Devolve ErrStaleStatus se
// outro revisor transicionou antes.
func (q *FinanceQueries) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string, changedBy uuid.UUID, observation string) error {
	return db.WithTx(ctx, q.pool, func(ctx context.Context, tx pgx.Tx) error {
		const update = `
            UPDATE finance_requests
            SET status = $2,
                last_observation = NULLIF($3,''),
                atualizado_em = now()
            WHERE id = $1 AND status = $4
        `
		tag, err := tx.Exec(ctx, update, id, to, observation, from)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleStatus
		}

		const insert = `
            INSERT INTO finance_request_status_history (id, request_id, from_status, to_status, changed_by, observation)
            VALUES ($1, $2, $3, $4, $5, NULLIF($6,''))
        `
		_, err = tx.Exec(ctx, insert, uuid.New(), id, from, to, changedBy, observation)
		return err
	})
}

// InsertHistory grava uma linha avulsa de histórico (usada no registro
// inicial, onde from_status é nulo).
func (q *FinanceQueries) InsertHistory(ctx context.Context, h FinanceStatusHistory) error {
	const insert = `
        INSERT INTO finance_request_status_history (id, request_id, from_status, to_status, changed_by, observation)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6,''))
    `
	id := h.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := q.pool.Exec(ctx, insert, id, h.RequestID, h.FromStatus, h.ToStatus, h.ChangedBy, h.Observation)
	return err
}

// ListAttachments devolve os anexos da solicitação.
func (q *FinanceQueries) ListAttachments(ctx context.Context, requestID uuid.UUID) ([]FinanceAttachment, error) {
	rows, err := q.pool.Query(ctx, `
        SELECT id, request_id, file_name, file_url, object_key, uploaded_at
        FROM finance_request_attachments
        WHERE request_id = $1
        ORDER BY uploaded_at ASC
    `, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []FinanceAttachment
	for rows.Next() {
		var att FinanceAttachment
		if err := rows.Scan(&att.ID, &att.RequestID, &att.FileName, &att.FileURL, &att.ObjectKey, &att.UploadedAt); err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}
	return attachments, rows.Err()
}

// ListHistory devolve a trilha de status em ordem cronológica.
func (q *FinanceQueries) ListHistory(ctx context.Context, requestID uuid.UUID) ([]FinanceStatusHistory, error) {
	rows, err := q.pool.Query(ctx, `
        SELECT id, request_id, from_status, to_status, changed_by, observation, criado_em
        FROM finance_request_status_history
        WHERE request_id = $1
        ORDER BY criado_em ASC
    `, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []FinanceStatusHistory
	for rows.Next() {
		var (
			h   FinanceStatusHistory
			obs *string
		)
		if err := rows.Scan(&h.ID, &h.RequestID, &h.FromStatus, &h.ToStatus, &h.ChangedBy, &obs, &h.CriadoEm); err != nil {
			return nil, err
		}
		if obs != nil {
			h.Observation = *obs
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func scanFinanceRequest(row pgx.Row) (FinanceRequest, error) {
	var (
		req  FinanceRequest
		matr *string
		exp  *string
	)
	err := row.Scan(
		&req.ID, &req.Protocol, &req.CreatedBy, &req.CreatedByName, &req.CreatedByEmail, &matr,
		&req.Company, &req.RequestKind, &exp, &req.Coordination,
		&req.DateStart, &req.DateEnd, &req.Description, &req.AmountCents, &req.Currency,
		&req.Status, &req.LastObservation, &req.CriadoEm, &req.AtualizadoEm,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinanceRequest{}, ErrNotFound
		}
		return FinanceRequest{}, err
	}
	if matr != nil {
		req.CreatedByMatric = *matr
	}
	if exp != nil {
		req.ExpenseType = *exp
	}
	return req, nil
}
