package scope

import (
	"context"
	"testing"

	"github.com/engrodrigo-prog/djt-quest/internal/org"
	"github.com/engrodrigo-prog/djt-quest/internal/repo"
)

type stubDirectory struct {
	teams  map[string]org.Team
	coords map[string]org.Coordination
}

func (s *stubDirectory) GetTeam(ctx context.Context, id string) (*org.Team, error) {
	if t, ok := s.teams[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *stubDirectory) GetCoordination(ctx context.Context, id string) (*org.Coordination, error) {
	if c, ok := s.coords[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func TestEffectiveRolePrecedence(t *testing.T) {
	cases := []struct {
		roles []string
		want  Role
	}{
		{[]string{"colaborador", "coordenador_djtx"}, RoleCoordenador},
		{[]string{"gerente_djt", "admin"}, RoleAdmin},
		{[]string{"invited"}, RoleConvidado},
		{[]string{"analista_financeiro"}, ""},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := EffectiveRole(tc.roles); got != tc.want {
			t.Fatalf("EffectiveRole(%v)=%q, esperado %q", tc.roles, got, tc.want)
		}
	}
}

func TestComputeFillsAncestryFromDirectory(t *testing.T) {
	dir := &stubDirectory{
		teams:  map[string]org.Team{"DJTB-CUB-TEAM1": {ID: "DJTB-CUB-TEAM1", CoordinationID: "DJTB-CUB"}},
		coords: map[string]org.Coordination{"DJTB-CUB": {ID: "DJTB-CUB", DivisionID: "DJTB"}},
	}
	profile := repo.Profile{SiglaArea: "djtb-cub-team1"}

	s, err := NewComputer(dir).Compute(context.Background(), profile, []string{"coordenador_djtx"})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if s.TeamID != "DJTB-CUB-TEAM1" || s.CoordID != "DJTB-CUB" || s.DivisionID != "DJTB" {
		t.Fatalf("escopo inesperado: %+v", s)
	}
	if !s.StudioAccess {
		t.Fatal("coordenador deve ter acesso ao estúdio")
	}
}

func TestComputeLeaderWithoutRoles(t *testing.T) {
	dir := &stubDirectory{}
	profile := repo.Profile{TeamID: "DJTB-CUB-TEAM1", IsLeader: true}

	s, err := NewComputer(dir).Compute(context.Background(), profile, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if s.EffectiveRole != RoleLiderEquipe {
		t.Fatalf("esperado lider_equipe, veio %q", s.EffectiveRole)
	}
	if !s.StudioAccess {
		t.Fatal("líder deve ter acesso ao estúdio")
	}
}

func TestInScopeCoordinator(t *testing.T) {
	s := Scope{EffectiveRole: RoleCoordenador, TeamID: "DJTB-CUB-TEAM1", CoordID: "DJTB-CUB", DivisionID: "DJTB"}

	if !InScope("DJTB-CUB-TEAM1", s) {
		t.Fatal("coordenador deve alcançar equipe da própria coordenação")
	}
	if InScope("DJTV-OTHER", s) {
		t.Fatal("coordenador não deve alcançar outra divisão")
	}
}

func TestInScopeGuestAndExternal(t *testing.T) {
	s := Scope{EffectiveRole: RoleColaborador}
	if !InScope("CONVIDADOS", s) {
		t.Fatal("itens de convidados devem estar sempre no escopo da equipe interna")
	}
	if !InScope("EXTERNO", s) {
		t.Fatal("itens externos devem estar sempre no escopo da equipe interna")
	}
	if InScope("CONVIDADOS", Scope{}) {
		t.Fatal("sem papel efetivo não há escopo")
	}
}

// Visibilidade decrescente: se um papel júnior alcança um código na mesma
// posição organizacional, todos os papéis mais sêniores também alcançam.
func TestInScopeMonotonicity(t *testing.T) {
	position := Scope{TeamID: "DJTB-CUB-TEAM1", CoordID: "DJTB-CUB", DivisionID: "DJTB"}
	ladder := []Role{RoleLiderEquipe, RoleCoordenador, RoleGerenteDivisao, RoleGerenteDJT, RoleAdmin}
	targets := []string{"DJTB-CUB-TEAM1", "DJTB-CUB-TEAM2", "DJTB-OUTRA", "DJTV-FORA", "EXTERNO", "CONVIDADOS"}

	for _, target := range targets {
		allowedBelow := false
		for _, role := range ladder {
			s := position
			s.EffectiveRole = role
			allowed := InScope(target, s)
			if allowedBelow && !allowed {
				t.Fatalf("escopo não monotônico: %s visível para papel júnior mas não para %s", target, role)
			}
			if allowed {
				allowedBelow = true
			}
		}
	}
}

func TestCanManageFinance(t *testing.T) {
	if !CanManageFinance(Scope{EffectiveRole: RoleLiderEquipe}, nil) {
		t.Fatal("líder de equipe gerencia solicitações")
	}
	if !CanManageFinance(Scope{}, []string{"analista_financeiro"}) {
		t.Fatal("analista financeiro gerencia solicitações")
	}
	if CanManageFinance(Scope{EffectiveRole: RoleColaborador}, nil) {
		t.Fatal("colaborador comum não gerencia solicitações")
	}
}

func TestIsGuestProfile(t *testing.T) {
	if !IsGuestProfile(repo.Profile{TeamID: "CONVIDADOS"}, nil) {
		t.Fatal("equipe sentinela classifica convidado")
	}
	if !IsGuestProfile(repo.Profile{}, []string{"invited"}) {
		t.Fatal("papel invited classifica convidado")
	}
	if IsGuestProfile(repo.Profile{TeamID: "DJTB-CUB"}, []string{"colaborador"}) {
		t.Fatal("colaborador de equipe normal não é convidado")
	}
}
