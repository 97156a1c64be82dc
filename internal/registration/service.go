// Package registration implementa o fluxo de aprovação de cadastros:
// valida o escopo do revisor, provisiona conta/perfil/vínculo
// organizacional/papéis e fecha o pedido com guard condicional.
package registration

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/engrodrigo-prog/djt-quest/internal/apperr"
	"github.com/engrodrigo-prog/djt-quest/internal/auth"
	"github.com/engrodrigo-prog/djt-quest/internal/idp"
	"github.com/engrodrigo-prog/djt-quest/internal/org"
	"github.com/engrodrigo-prog/djt-quest/internal/repo"
	"github.com/engrodrigo-prog/djt-quest/internal/scope"
)

type registrationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repo.PendingRegistration, error)
	ListPending(ctx context.Context, limit int) ([]repo.PendingRegistration, error)
	MarkReviewed(ctx context.Context, id uuid.UUID, status string, reviewedBy uuid.UUID, notes, siglaArea, operationalBase string) error
}

type profileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repo.Profile, error)
	GetByEmail(ctx context.Context, email string) (repo.Profile, error)
	Upsert(ctx context.Context, p repo.Profile) error
	UpdateOrg(ctx context.Context, id uuid.UUID, siglaArea, operationalBase, teamID, coordID, divisionID string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type roleStore interface {
	GetRoles(ctx context.Context, userID uuid.UUID) ([]string, error)
	GrantRole(ctx context.Context, userID uuid.UUID, role string) error
	RevokeRole(ctx context.Context, userID uuid.UUID, role string) error
}

// IdentityProvider provisiona e remove contas de acesso.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, tempPassword string) (string, error)
	DeleteAccount(ctx context.Context, accountID string) error
}

type auditor interface {
	Append(actorID uuid.UUID, action, entityType, entityID string, before, after any)
}

// Locker serializa revisões concorrentes do mesmo cadastro.
type Locker interface {
	Acquire(ctx context.Context, registrationID uuid.UUID) (bool, error)
	Release(ctx context.Context, registrationID uuid.UUID)
}

// Service coordena o fluxo de aprovação de cadastros.
type Service struct {
	regs     registrationStore
	profiles profileStore
	roles    roleStore
	provider IdentityProvider
	resolver *org.Resolver
	scopes   *scope.Computer
	audit    auditor
	locker   Locker
}

// NewService cria o serviço de aprovação.
func NewService(regs registrationStore, profiles profileStore, roles roleStore, provider IdentityProvider, resolver *org.Resolver, scopes *scope.Computer, audit auditor, locker Locker) *Service {
	return &Service{
		regs:     regs,
		profiles: profiles,
		roles:    roles,
		provider: provider,
		resolver: resolver,
		scopes:   scopes,
		audit:    audit,
		locker:   locker,
	}
}

// ApproveOptions são ajustes do revisor sobre o pedido original.
type ApproveOptions struct {
	SiglaAreaOverride   string
	GrantContentCurator bool
}

// ApproveResult devolve o essencial do provisionamento.
type ApproveResult struct {
	AccountID    string
	TempPassword string
	SiglaArea    string
	Guest        bool
}

// Approve valida o escopo do revisor e provisiona a conta do cadastro
// pendente. Toda falha depois da criação da conta desfaz o que já foi
// criado antes de retornar: nenhuma identidade fica órfã.
func (s *Service) Approve(ctx context.Context, registrationID, actorID uuid.UUID, opts ApproveOptions) (*ApproveResult, error) {
	actorScope, _, err := s.actorScope(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		ok, err := s.locker.Acquire(ctx, registrationID)
		if err != nil {
			return nil, apperr.Dependency("falha ao serializar revisão", err)
		}
		if !ok {
			return nil, apperr.Conflict("cadastro em revisão por outro usuário")
		}
		defer s.locker.Release(ctx, registrationID)
	}

	reg, err := s.loadPending(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.DateOfBirth == nil {
		return nil, apperr.Validation("cadastro sem data de nascimento",
			apperr.FieldError{Field: "dateOfBirth", Message: "obrigatória para aprovação"})
	}

	desired := strings.TrimSpace(opts.SiglaAreaOverride)
	if desired == "" {
		desired = reg.SiglaArea
	}
	guest := org.IsGuestCode(opts.SiglaAreaOverride) || org.IsGuestCode(reg.SiglaArea)
	if guest {
		desired = org.GuestTeamID
	} else {
		desired = org.NormalizeCode(desired)
	}

	if !scope.InScope(desired, actorScope) {
		return nil, apperr.Forbidden("sigla de área fora do seu escopo")
	}

	// Guard de idempotência: requisições repetidas não podem criar uma
	// segunda conta para o mesmo e-mail.
	if _, err := s.profiles.GetByEmail(ctx, reg.Email); err == nil {
		return nil, apperr.Conflict("já existe perfil para este e-mail")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.Dependency("consulta de perfil falhou", err)
	}

	tempPassword, err := auth.GenerateTempPassword()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	accountID, err := s.provider.CreateAccount(ctx, reg.Email, tempPassword)
	if err != nil {
		if errors.Is(err, idp.ErrEmailTaken) {
			return nil, apperr.Conflict("já existe conta para este e-mail")
		}
		return nil, apperr.Dependency("provedor de identidade indisponível", err)
	}

	// Lista de compensações executada em ordem reversa a partir do ponto
	// de não-retorno (conta criada).
	var compensations []func()
	compensations = append(compensations, func() {
		if err := s.provider.DeleteAccount(context.WithoutCancel(ctx), accountID); err != nil {
			log.Error().Err(err).Str("account_id", accountID).Msg("registration: falha ao desfazer conta")
		}
	})
	rollback := func() {
		for i := len(compensations) - 1; i >= 0; i-- {
			compensations[i]()
		}
	}

	accountUUID, err := uuid.Parse(accountID)
	if err != nil {
		rollback()
		return nil, apperr.Dependency("provedor devolveu id de conta inválido", err)
	}

	operationalBase := reg.OperationalBase
	if guest {
		operationalBase = org.GuestTeamID
	}

	profile := repo.Profile{
		ID:                 accountUUID,
		Nome:               reg.Nome,
		Email:              reg.Email,
		Matricula:          reg.Matricula,
		SiglaArea:          desired,
		OperationalBase:    operationalBase,
		MustChangePassword: true,
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		rollback()
		return nil, apperr.Dependency("falha ao gravar perfil", err)
	}
	compensations = append(compensations, func() {
		if err := s.profiles.Delete(context.WithoutCancel(ctx), accountUUID); err != nil {
			log.Error().Err(err).Str("account_id", accountID).Msg("registration: falha ao desfazer perfil")
		}
	})

	if err := s.assignOrganization(ctx, accountUUID, desired, operationalBase, guest); err != nil {
		rollback()
		return nil, err
	}

	baseRole := scope.RoleColaborador
	if guest {
		baseRole = scope.RoleConvidado
	}
	if err := s.roles.GrantRole(ctx, accountUUID, string(baseRole)); err != nil {
		rollback()
		return nil, apperr.Dependency("falha ao conceder papel", err)
	}
	compensations = append(compensations, s.revokeRoleCompensation(ctx, accountUUID, string(baseRole)))
	if opts.GrantContentCurator {
		if err := s.roles.GrantRole(ctx, accountUUID, string(scope.RoleContentCurator)); err != nil {
			rollback()
			return nil, apperr.Dependency("falha ao conceder curadoria", err)
		}
		compensations = append(compensations, s.revokeRoleCompensation(ctx, accountUUID, string(scope.RoleContentCurator)))
	}

	if err := s.regs.MarkReviewed(ctx, registrationID, repo.RegistrationApproved, actorID, "", desired, operationalBase); err != nil {
		rollback()
		if errors.Is(err, repo.ErrStaleStatus) {
			return nil, apperr.NotFound("cadastro não está mais pendente")
		}
		return nil, apperr.Dependency("falha ao fechar cadastro", err)
	}

	if s.audit != nil {
		s.audit.Append(actorID, "registration.approve", "pending_registration", registrationID.String(),
			map[string]any{"status": repo.RegistrationPending},
			map[string]any{"status": repo.RegistrationApproved, "account_id": accountID, "sigla_area": desired})
	}

	return &ApproveResult{
		AccountID:    accountID,
		TempPassword: tempPassword,
		SiglaArea:    desired,
		Guest:        guest,
	}, nil
}

// Reject fecha o cadastro como rejeitado, com a mesma estrutura de guards
// da aprovação e sem provisionar nada.
func (s *Service) Reject(ctx context.Context, registrationID, actorID uuid.UUID, notes string) error {
	actorScope, _, err := s.actorScope(ctx, actorID)
	if err != nil {
		return err
	}

	reg, err := s.loadPending(ctx, registrationID)
	if err != nil {
		return err
	}

	target := reg.SiglaArea
	if org.IsGuestCode(target) {
		target = org.GuestTeamID
	}
	if !scope.InScope(target, actorScope) {
		return apperr.Forbidden("sigla de área fora do seu escopo")
	}

	if err := s.regs.MarkReviewed(ctx, registrationID, repo.RegistrationRejected, actorID, notes, reg.SiglaArea, reg.OperationalBase); err != nil {
		if errors.Is(err, repo.ErrStaleStatus) {
			return apperr.NotFound("cadastro não está mais pendente")
		}
		return apperr.Dependency("falha ao fechar cadastro", err)
	}

	if s.audit != nil {
		s.audit.Append(actorID, "registration.reject", "pending_registration", registrationID.String(),
			map[string]any{"status": repo.RegistrationPending},
			map[string]any{"status": repo.RegistrationRejected, "notes": notes})
	}
	return nil
}

// ListPending devolve os cadastros pendentes dentro do escopo do ator.
func (s *Service) ListPending(ctx context.Context, actorID uuid.UUID, limit int) ([]repo.PendingRegistration, error) {
	actorScope, _, err := s.actorScope(ctx, actorID)
	if err != nil {
		return nil, err
	}

	all, err := s.regs.ListPending(ctx, limit)
	if err != nil {
		return nil, apperr.Dependency("falha ao listar cadastros", err)
	}

	visible := make([]repo.PendingRegistration, 0, len(all))
	for _, reg := range all {
		target := reg.SiglaArea
		if org.IsGuestCode(target) {
			target = org.GuestTeamID
		}
		if scope.InScope(target, actorScope) {
			visible = append(visible, reg)
		}
	}
	return visible, nil
}

func (s *Service) actorScope(ctx context.Context, actorID uuid.UUID) (scope.Scope, []string, error) {
	actor, err := s.profiles.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return scope.Scope{}, nil, apperr.Forbidden("ator sem perfil no portal")
		}
		return scope.Scope{}, nil, apperr.Dependency("consulta de perfil falhou", err)
	}

	roles, err := s.roles.GetRoles(ctx, actorID)
	if err != nil {
		return scope.Scope{}, nil, apperr.Dependency("consulta de papéis falhou", err)
	}

	actorScope, err := s.scopes.Compute(ctx, actor, roles)
	if err != nil {
		return scope.Scope{}, nil, apperr.Dependency("cálculo de escopo falhou", err)
	}
	if actorScope.EffectiveRole == "" || !actorScope.StudioAccess {
		return scope.Scope{}, nil, apperr.Forbidden("sem papel elegível para revisar cadastros")
	}
	return actorScope, roles, nil
}

func (s *Service) revokeRoleCompensation(ctx context.Context, accountID uuid.UUID, role string) func() {
	return func() {
		if err := s.roles.RevokeRole(context.WithoutCancel(ctx), accountID, role); err != nil {
			log.Error().Err(err).Str("account_id", accountID.String()).Str("role", role).Msg("registration: falha ao desfazer papel")
		}
	}
}

func (s *Service) loadPending(ctx context.Context, registrationID uuid.UUID) (repo.PendingRegistration, error) {
	reg, err := s.regs.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return repo.PendingRegistration{}, apperr.NotFound("cadastro não encontrado")
		}
		return repo.PendingRegistration{}, apperr.Dependency("consulta de cadastro falhou", err)
	}
	if reg.Status != repo.RegistrationPending {
		return repo.PendingRegistration{}, apperr.NotFound("cadastro não está mais pendente")
	}
	return reg, nil
}

func (s *Service) assignOrganization(ctx context.Context, accountID uuid.UUID, desired, operationalBase string, guest bool) error {
	if guest {
		if err := s.profiles.UpdateOrg(ctx, accountID, org.GuestTeamID, org.GuestTeamID, org.GuestTeamID, "", ""); err != nil {
			return apperr.Dependency("falha ao vincular convidado", err)
		}
		return nil
	}

	chain, err := s.resolver.EnsureChain(ctx, desired)
	if err != nil {
		return apperr.Dependency("falha ao derivar organização", err)
	}

	var teamID, coordID, divisionID string
	if chain != nil {
		teamID = chain.TeamID
		coordID = chain.CoordID
		divisionID = chain.DivisionID
	}
	if err := s.profiles.UpdateOrg(ctx, accountID, desired, operationalBase, teamID, coordID, divisionID); err != nil {
		return apperr.Dependency("falha ao vincular organização", err)
	}
	return nil
}
