package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engrodrigo-prog/djt-quest/internal/org"
)

// DirectoryQueries provê acesso às tabelas do diretório organizacional.
// Implementa org.DirectoryStore: consultas devolvem nil quando o registro
// não existe, para que o resolvedor degrade graciosamente.
type DirectoryQueries struct {
	pool *pgxpool.Pool
}

// NewDirectoryQueries cria o repositório do diretório.
func NewDirectoryQueries(pool *pgxpool.Pool) *DirectoryQueries {
	return &DirectoryQueries{pool: pool}
}

// GetTeam busca equipe pelo id normalizado.
func (q *DirectoryQueries) GetTeam(ctx context.Context, id string) (*org.Team, error) {
	const query = `SELECT id, name, coordination_id FROM teams WHERE id = $1`

	var t org.Team
	err := q.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.CoordinationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// GetCoordination busca coordenação pelo id.
func (q *DirectoryQueries) GetCoordination(ctx context.Context, id string) (*org.Coordination, error) {
	const query = `SELECT id, name, division_id FROM coordinations WHERE id = $1`

	var c org.Coordination
	err := q.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.DivisionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// GetDivision busca divisão pelo id.
func (q *DirectoryQueries) GetDivision(ctx context.Context, id string) (*org.Division, error) {
	const query = `SELECT id, name FROM divisions WHERE id = $1`

	var d org.Division
	err := q.pool.QueryRow(ctx, query, id).Scan(&d.ID, &d.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// UpsertDivision insere ou atualiza uma divisão.
func (q *DirectoryQueries) UpsertDivision(ctx context.Context, d org.Division) error {
	const query = `
        INSERT INTO divisions (id, name)
        VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
    `
	_, err := q.pool.Exec(ctx, query, d.ID, d.Name)
	return err
}

// UpsertCoordination insere ou atualiza uma coordenação.
func (q *DirectoryQueries) UpsertCoordination(ctx context.Context, c org.Coordination) error {
	const query = `
        INSERT INTO coordinations (id, name, division_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, division_id = EXCLUDED.division_id
    `
	_, err := q.pool.Exec(ctx, query, c.ID, c.Name, c.DivisionID)
	return err
}

// UpsertTeam insere ou atualiza uma equipe.
func (q *DirectoryQueries) UpsertTeam(ctx context.Context, t org.Team) error {
	const query = `
        INSERT INTO teams (id, name, coordination_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, coordination_id = EXCLUDED.coordination_id
    `
	_, err := q.pool.Exec(ctx, query, t.ID, t.Name, t.CoordinationID)
	return err
}
