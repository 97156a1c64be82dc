package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditQueries grava a trilha de auditoria administrativa.
type AuditQueries struct {
	pool *pgxpool.Pool
}

// NewAuditQueries cria o repositório de auditoria.
func NewAuditQueries(pool *pgxpool.Pool) *AuditQueries {
	return &AuditQueries{pool: pool}
}

// Insert registra uma entrada de auditoria.
func (q *AuditQueries) Insert(ctx context.Context, entry AuditEntry) error {
	const query = `
        INSERT INTO audit_log (id, actor_id, action, entity_type, entity_id, before, after)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	id := entry.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := q.pool.Exec(ctx, query, id, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, entry.Before, entry.After)
	return err
}
