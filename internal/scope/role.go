// Package scope calcula o papel efetivo e o escopo organizacional de um
// ator, e decide sobre quais itens ele pode agir.
package scope

import "strings"

// Role é um papel concedido a um usuário do portal.
type Role string

// Papéis em ordem decrescente de senioridade. Desempates seguem esta lista.
const (
	RoleAdmin          Role = "admin"
	RoleGerenteDJT     Role = "gerente_djt"
	RoleGerenteDivisao Role = "gerente_divisao_djtx"
	RoleCoordenador    Role = "coordenador_djtx"
	RoleLiderEquipe    Role = "lider_equipe"
	RoleColaborador    Role = "colaborador"
	RoleConvidado      Role = "invited"
	RoleAnalistaFin    Role = "analista_financeiro"
	RoleContentCurator Role = "content_curator"
	RoleQuizAdmin      Role = "quiz_admin"
	RoleXPAdjuster     Role = "xp_adjuster"
)

// seniority lista os papéis hierárquicos do mais sênior para o mais júnior.
// Papéis de capacidade (analista, curador, quiz, xp) ficam fora da ordem.
var seniority = []Role{
	RoleAdmin,
	RoleGerenteDJT,
	RoleGerenteDivisao,
	RoleCoordenador,
	RoleLiderEquipe,
	RoleColaborador,
	RoleConvidado,
}

// ParseRole normaliza uma string de papel.
func ParseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// EffectiveRole devolve o papel hierárquico mais sênior presente no
// conjunto, ou "" se nenhum papel hierárquico existir.
func EffectiveRole(roles []string) Role {
	present := make(map[Role]bool, len(roles))
	for _, raw := range roles {
		present[ParseRole(raw)] = true
	}
	for _, role := range seniority {
		if present[role] {
			return role
		}
	}
	return ""
}

// HasRole verifica presença de um papel no conjunto bruto.
func HasRole(roles []string, target Role) bool {
	for _, raw := range roles {
		if ParseRole(raw) == target {
			return true
		}
	}
	return false
}

// isStaff indica papéis que caracterizam atuação interna (acesso ao estúdio
// e processamento de itens de convidados/externos).
func isStaff(role Role) bool {
	switch role {
	case RoleAdmin, RoleGerenteDJT, RoleGerenteDivisao, RoleCoordenador, RoleLiderEquipe:
		return true
	default:
		return false
	}
}
