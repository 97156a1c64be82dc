// Package service concentra regras de autenticação do portal.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/engrodrigo-prog/djt-quest/internal/auth"
	"github.com/engrodrigo-prog/djt-quest/internal/idp"
	"github.com/engrodrigo-prog/djt-quest/internal/repo"
	"github.com/engrodrigo-prog/djt-quest/internal/scope"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrNoProfile indica conta sem perfil vinculado no portal.
	ErrNoProfile = errors.New("conta sem perfil no portal")
)

type credentialReader interface {
	GetCredentialByEmail(ctx context.Context, email string) (idp.Credential, error)
}

type profileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (repo.Profile, error)
}

type roleReader interface {
	GetRoles(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// AuthService autentica contas locais e materializa o escopo do usuário.
type AuthService struct {
	credentials credentialReader
	profiles    profileReader
	roles       roleReader
	scopes      *scope.Computer
	jwt         *auth.JWTManager
}

// NewAuthService cria novo serviço.
func NewAuthService(credentials credentialReader, profiles profileReader, roles roleReader, scopes *scope.Computer, jwtMgr *auth.JWTManager) *AuthService {
	return &AuthService{
		credentials: credentials,
		profiles:    profiles,
		roles:       roles,
		scopes:      scopes,
		jwt:         jwtMgr,
	}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	AccessToken        string
	Subject            uuid.UUID
	Roles              []string
	Profile            repo.Profile
	Scope              scope.Scope
	MustChangePassword bool
}

// Login autentica a conta local e emite o token de acesso com os papéis do
// usuário. Credencial e perfil precisam existir; a mensagem de erro não
// distingue conta ausente de senha errada.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	cred, err := s.credentials.GetCredentialByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := idp.VerifyPassword(password, cred.SenhaHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	profile, err := s.profiles.GetByID(ctx, cred.AccountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoProfile
		}
		return nil, err
	}

	roles, err := s.roles.GetRoles(ctx, cred.AccountID)
	if err != nil {
		return nil, err
	}

	userScope, err := s.scopes.Compute(ctx, profile, roles)
	if err != nil {
		return nil, err
	}

	token, _, err := s.jwt.GenerateAccessToken(cred.AccountID.String(), roles)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:        token,
		Subject:            cred.AccountID,
		Roles:              roles,
		Profile:            profile,
		Scope:              userScope,
		MustChangePassword: profile.MustChangePassword,
	}, nil
}

// Me devolve perfil, papéis e escopo do subject autenticado.
func (s *AuthService) Me(ctx context.Context, subject uuid.UUID) (*LoginResult, error) {
	profile, err := s.profiles.GetByID(ctx, subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoProfile
		}
		return nil, err
	}

	roles, err := s.roles.GetRoles(ctx, subject)
	if err != nil {
		return nil, err
	}

	userScope, err := s.scopes.Compute(ctx, profile, roles)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Subject:            subject,
		Roles:              roles,
		Profile:            profile,
		Scope:              userScope,
		MustChangePassword: profile.MustChangePassword,
	}, nil
}
