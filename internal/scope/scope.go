package scope

import (
	"context"
	"fmt"
	"strings"

	"github.com/engrodrigo-prog/djt-quest/internal/org"
	"github.com/engrodrigo-prog/djt-quest/internal/repo"
)

// Scope é a posição organizacional efetiva de um ator para fins de
// autorização.
type Scope struct {
	EffectiveRole Role
	TeamID        string
	CoordID       string
	DivisionID    string
	StudioAccess  bool
}

// directoryReader é o recorte do diretório necessário para completar os
// caches de coordenação/divisão.
type directoryReader interface {
	GetTeam(ctx context.Context, id string) (*org.Team, error)
	GetCoordination(ctx context.Context, id string) (*org.Coordination, error)
}

// Computer deriva escopos a partir de perfis e papéis.
type Computer struct {
	dir directoryReader
}

// NewComputer cria um novo calculador de escopo.
func NewComputer(dir directoryReader) *Computer {
	return &Computer{dir: dir}
}

// Compute deriva o escopo do ator: papel efetivo, equipe (com fallback para
// a sigla de área ou base operacional) e ancestralidade completada pelo
// diretório quando o perfil não a tiver em cache.
func (c *Computer) Compute(ctx context.Context, profile repo.Profile, roles []string) (Scope, error) {
	s := Scope{
		EffectiveRole: EffectiveRole(roles),
		TeamID:        profile.TeamID,
		CoordID:       profile.CoordID,
		DivisionID:    profile.DivisionID,
	}

	if s.EffectiveRole == "" && profile.IsLeader {
		s.EffectiveRole = RoleLiderEquipe
	}
	if profile.IsLeader && s.EffectiveRole == RoleColaborador {
		s.EffectiveRole = RoleLiderEquipe
	}

	s.StudioAccess = profile.StudioAccess || profile.IsLeader || isStaff(s.EffectiveRole)

	if s.TeamID == "" {
		if profile.SiglaArea != "" {
			s.TeamID = org.NormalizeCode(profile.SiglaArea)
		} else {
			s.TeamID = org.NormalizeCode(profile.OperationalBase)
		}
	}

	if s.TeamID != "" && s.TeamID != org.GuestTeamID {
		if s.CoordID == "" {
			team, err := c.dir.GetTeam(ctx, s.TeamID)
			if err != nil {
				return Scope{}, fmt.Errorf("escopo: equipe %s: %w", s.TeamID, err)
			}
			if team != nil {
				s.CoordID = team.CoordinationID
			}
		}
		if s.DivisionID == "" && s.CoordID != "" {
			coord, err := c.dir.GetCoordination(ctx, s.CoordID)
			if err != nil {
				return Scope{}, fmt.Errorf("escopo: coordenação %s: %w", s.CoordID, err)
			}
			if coord != nil {
				s.DivisionID = coord.DivisionID
			}
		}
	}

	return s, nil
}

// InScope decide se o ator pode agir sobre um item marcado com a sigla
// informada. A visibilidade é estritamente decrescente: o escopo de cada
// papel mais sênior contém o dos papéis abaixo na mesma posição.
func InScope(targetAreaCode string, s Scope) bool {
	target := org.NormalizeCode(targetAreaCode)

	if target == org.ExternalCode || target == org.GuestTeamID {
		return s.EffectiveRole != ""
	}

	switch s.EffectiveRole {
	case RoleAdmin, RoleGerenteDJT:
		return true
	case RoleGerenteDivisao:
		return s.DivisionID != "" && strings.HasPrefix(target, s.DivisionID)
	case RoleCoordenador:
		if s.DivisionID != "" && strings.HasPrefix(target, s.DivisionID) {
			return true
		}
		if s.CoordID != "" && strings.HasPrefix(target, s.CoordID) {
			return true
		}
		return s.TeamID != "" && target == s.TeamID
	case RoleLiderEquipe:
		return s.TeamID != "" && target == s.TeamID
	default:
		return false
	}
}

// CanManageFinance é o gate plano das solicitações financeiras: conjunto de
// papéis, sem recorte hierárquico.
func CanManageFinance(s Scope, roles []string) bool {
	switch s.EffectiveRole {
	case RoleAdmin, RoleGerenteDJT, RoleGerenteDivisao, RoleCoordenador, RoleLiderEquipe:
		return true
	}
	return HasRole(roles, RoleAnalistaFin)
}

// CanAdjustXP e CanAdministerQuizzes substituem as antigas listas fixas de
// e-mails por papéis dedicados resolvidos pela mesma máquina de escopo.
func CanAdjustXP(roles []string) bool {
	return HasRole(roles, RoleXPAdjuster) || EffectiveRole(roles) == RoleAdmin
}

// CanAdministerQuizzes decide sobre curadoria/remoção de quizzes.
func CanAdministerQuizzes(roles []string) bool {
	return HasRole(roles, RoleQuizAdmin) || HasRole(roles, RoleContentCurator) || EffectiveRole(roles) == RoleAdmin
}

// IsGuestProfile classifica perfis de convidados: qualquer campo de
// organização apontando para a sentinela, ou papel de convidado.
func IsGuestProfile(profile repo.Profile, roles []string) bool {
	if HasRole(roles, RoleConvidado) {
		return true
	}
	for _, code := range []string{profile.TeamID, profile.SiglaArea, profile.OperationalBase, profile.CoordID, profile.DivisionID} {
		if org.NormalizeCode(code) == org.GuestTeamID {
			return true
		}
	}
	return false
}
