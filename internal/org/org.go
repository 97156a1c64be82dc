// Package org modela a hierarquia organizacional da DJT
// (Divisão → Coordenação → Equipe) e infere a cadeia a partir de
// siglas de área digitadas livremente.
package org

import (
	"context"
	"strings"
)

// GuestTeamID é a equipe sentinela para convidados, fora da hierarquia.
const GuestTeamID = "CONVIDADOS"

// ExternalCode marca itens externos, sempre visíveis para a equipe interna.
const ExternalCode = "EXTERNO"

const maxCodeLen = 32

// Division é o nível superior da hierarquia (ex.: "DJTB").
type Division struct {
	ID   string
	Name string
}

// Coordination pertence a exatamente uma divisão; o id convencionalmente
// codifica "{divisao}-{tag}".
type Coordination struct {
	ID         string
	Name       string
	DivisionID string
}

// Team pertence a exatamente uma coordenação; o id é uma sigla normalizada.
type Team struct {
	ID             string
	Name           string
	CoordinationID string
}

// Chain é a cadeia resolvida para uma sigla de área.
type Chain struct {
	DivisionID string
	CoordID    string
	TeamID     string
}

// DirectoryStore dá acesso às tabelas de divisões/coordenações/equipes.
type DirectoryStore interface {
	GetTeam(ctx context.Context, id string) (*Team, error)
	GetCoordination(ctx context.Context, id string) (*Coordination, error)
	GetDivision(ctx context.Context, id string) (*Division, error)
	UpsertDivision(ctx context.Context, d Division) error
	UpsertCoordination(ctx context.Context, c Coordination) error
	UpsertTeam(ctx context.Context, t Team) error
}

// NormalizeCode padroniza siglas de área: maiúsculas, apenas [A-Z0-9-],
// hífens repetidos colapsados, hífens nas bordas removidos, máximo de 32
// caracteres. É idempotente e nunca falha.
func NormalizeCode(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))

	var b strings.Builder
	lastDash := false
	for _, r := range upper {
		valid := (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if valid {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}

	code := strings.Trim(b.String(), "-")
	if len(code) > maxCodeLen {
		code = strings.Trim(code[:maxCodeLen], "-")
	}
	return code
}

// IsGuestCode indica se a sigla normaliza para a equipe de convidados.
func IsGuestCode(raw string) bool {
	return NormalizeCode(raw) == GuestTeamID
}
