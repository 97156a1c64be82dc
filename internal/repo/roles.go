package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleQueries provê acesso aos papéis concedidos por usuário.
type RoleQueries struct {
	pool *pgxpool.Pool
}

// NewRoleQueries cria o repositório de papéis.
func NewRoleQueries(pool *pgxpool.Pool) *RoleQueries {
	return &RoleQueries{pool: pool}
}

// GetRoles lista os papéis do usuário.
func (q *RoleQueries) GetRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	const query = `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`

	rows, err := q.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GrantRole concede um papel; concessões repetidas são toleradas.
func (q *RoleQueries) GrantRole(ctx context.Context, userID uuid.UUID, role string) error {
	const query = `
        INSERT INTO user_roles (user_id, role)
        VALUES ($1, $2)
        ON CONFLICT (user_id, role) DO NOTHING
    `
	_, err := q.pool.Exec(ctx, query, userID, role)
	return err
}

// RevokeRole remove um papel concedido.
func (q *RoleQueries) RevokeRole(ctx context.Context, userID uuid.UUID, role string) error {
	tag, err := q.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
