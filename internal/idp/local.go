package idp

import (
	"context"
	"errors"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var hashParams = &argon2id.Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Local é um provedor de identidade sobre o próprio Postgres, usado em
// desenvolvimento e quando não há API administrativa configurada. As senhas
// temporárias são guardadas como hash Argon2id.
type Local struct {
	pool *pgxpool.Pool
}

// NewLocal cria o provedor local.
func NewLocal(pool *pgxpool.Pool) *Local {
	return &Local{pool: pool}
}

// CreateAccount cria a conta local com a senha temporária.
func (l *Local) CreateAccount(ctx context.Context, email, tempPassword string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var exists bool
	if err := l.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM local_accounts WHERE email = $1)`, email).Scan(&exists); err != nil {
		return "", err
	}
	if exists {
		return "", ErrEmailTaken
	}

	hash, err := argon2id.CreateHash(tempPassword, hashParams)
	if err != nil {
		return "", err
	}

	id := uuid.New()
	const insert = `INSERT INTO local_accounts (id, email, senha_hash) VALUES ($1, $2, $3)`
	if _, err := l.pool.Exec(ctx, insert, id, email, hash); err != nil {
		return "", err
	}
	return id.String(), nil
}

// DeleteAccount remove a conta local.
func (l *Local) DeleteAccount(ctx context.Context, accountID string) error {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return errors.New("idp: id de conta inválido")
	}
	_, err = l.pool.Exec(ctx, `DELETE FROM local_accounts WHERE id = $1`, id)
	return err
}

// Credential é o material de autenticação guardado para uma conta local.
type Credential struct {
	AccountID uuid.UUID
	Email     string
	SenhaHash string
}

// GetCredentialByEmail busca credencial para login local.
func (l *Local) GetCredentialByEmail(ctx context.Context, email string) (Credential, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var cred Credential
	err := l.pool.QueryRow(ctx, `SELECT id, email, senha_hash FROM local_accounts WHERE email = $1`, email).
		Scan(&cred.AccountID, &cred.Email, &cred.SenhaHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, errors.New("idp: conta não encontrada")
		}
		return Credential{}, err
	}
	return cred, nil
}

// VerifyPassword compara a senha com o hash Argon2id.
func VerifyPassword(password, encodedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, encodedHash)
}
