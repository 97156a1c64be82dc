package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileQueries provê acesso aos perfis de colaboradores.
type ProfileQueries struct {
	pool *pgxpool.Pool
}

// NewProfileQueries cria o repositório de perfis.
func NewProfileQueries(pool *pgxpool.Pool) *ProfileQueries {
	return &ProfileQueries{pool: pool}
}

const profileColumns = `id, nome, email, matricula, sigla_area, operational_base, team_id, coord_id, division_id, is_leader, studio_access, must_change_password, criado_em`

// GetByID busca perfil pelo identificador da conta.
func (q *ProfileQueries) GetByID(ctx context.Context, id uuid.UUID) (Profile, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	return scanProfile(row)
}

// GetByEmail busca perfil pelo e-mail normalizado.
func (q *ProfileQueries) GetByEmail(ctx context.Context, email string) (Profile, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE lower(email) = $1`, strings.ToLower(strings.TrimSpace(email)))
	return scanProfile(row)
}

// Upsert grava o perfil chaveado pelo id da conta recém-criada.
func (q *ProfileQueries) Upsert(ctx context.Context, p Profile) error {
	const query = `
        INSERT INTO profiles (id, nome, email, matricula, sigla_area, operational_base, team_id, coord_id, division_id, is_leader, studio_access, must_change_password)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), NULLIF($8,''), NULLIF($9,''), $10, $11, $12)
        ON CONFLICT (id) DO UPDATE SET
            nome = EXCLUDED.nome,
            email = EXCLUDED.email,
            matricula = EXCLUDED.matricula,
            sigla_area = EXCLUDED.sigla_area,
            operational_base = EXCLUDED.operational_base,
            must_change_password = EXCLUDED.must_change_password
    `
	_, err := q.pool.Exec(ctx, query,
		p.ID, p.Nome, strings.ToLower(strings.TrimSpace(p.Email)), p.Matricula,
		p.SiglaArea, p.OperationalBase, p.TeamID, p.CoordID, p.DivisionID,
		p.IsLeader, p.StudioAccess, p.MustChangePassword,
	)
	return err
}

// UpdateOrg reescreve os caches de organização do perfil de uma vez,
// mantendo-os consistentes com a hierarquia.
func (q *ProfileQueries) UpdateOrg(ctx context.Context, id uuid.UUID, siglaArea, operationalBase, teamID, coordID, divisionID string) error {
	const query = `
        UPDATE profiles
        SET sigla_area = $2,
            operational_base = $3,
            team_id = NULLIF($4,''),
            coord_id = NULLIF($5,''),
            division_id = NULLIF($6,'')
        WHERE id = $1
    `
	tag, err := q.pool.Exec(ctx, query, id, siglaArea, operationalBase, teamID, coordID, divisionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete remove o perfil (compensação de provisionamento parcial).
func (q *ProfileQueries) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	return err
}

func scanProfile(row pgx.Row) (Profile, error) {
	var (
		p        Profile
		teamID   *string
		coordID  *string
		divID    *string
		sigla    *string
		base     *string
		matricul *string
	)
	err := row.Scan(&p.ID, &p.Nome, &p.Email, &matricul, &sigla, &base, &teamID, &coordID, &divID, &p.IsLeader, &p.StudioAccess, &p.MustChangePassword, &p.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	if matricul != nil {
		p.Matricula = *matricul
	}
	if sigla != nil {
		p.SiglaArea = *sigla
	}
	if base != nil {
		p.OperationalBase = *base
	}
	if teamID != nil {
		p.TeamID = *teamID
	}
	if coordID != nil {
		p.CoordID = *coordID
	}
	if divID != nil {
		p.DivisionID = *divID
	}
	return p, nil
}
