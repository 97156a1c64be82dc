package org

import (
	"context"
	"fmt"
	"strings"
)

// Resolver deriva a cadeia Divisão/Coordenação/Equipe de uma sigla de área,
// tolerando diretórios parcialmente provisionados. As consultas ao diretório
// devolvem nil (sem erro) quando o registro não existe.
type Resolver struct {
	dir DirectoryStore
}

// NewResolver cria um resolvedor sobre o diretório informado.
func NewResolver(dir DirectoryStore) *Resolver {
	return &Resolver{dir: dir}
}

// Derive infere a cadeia organizacional da sigla. Devolve nil quando nada
// pôde ser estabelecido (sigla vazia, sem separador e fora do diretório).
// A equipe de convidados nunca resolve para coordenação/divisão.
func (r *Resolver) Derive(ctx context.Context, rawCode string) (*Chain, error) {
	code := NormalizeCode(rawCode)
	if code == "" || code == GuestTeamID {
		return nil, nil
	}

	chain := &Chain{}

	team, err := r.dir.GetTeam(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("diretório: equipe %s: %w", code, err)
	}
	if team != nil {
		chain.TeamID = team.ID
		chain.CoordID = team.CoordinationID
	} else if idx := strings.Index(code, "-"); idx > 0 {
		divisionCandidate := code[:idx]
		tag := code[idx+1:]
		chain.DivisionID = divisionCandidate
		if tag != "" {
			chain.CoordID = divisionCandidate + "-" + tag
			t, err := r.dir.GetTeam(ctx, tag)
			if err != nil {
				return nil, fmt.Errorf("diretório: equipe %s: %w", tag, err)
			}
			if t != nil {
				chain.TeamID = t.ID
			}
		}
	} else {
		return nil, nil
	}

	if chain.DivisionID == "" && chain.CoordID != "" {
		coord, err := r.dir.GetCoordination(ctx, chain.CoordID)
		if err != nil {
			return nil, fmt.Errorf("diretório: coordenação %s: %w", chain.CoordID, err)
		}
		if coord != nil {
			chain.DivisionID = coord.DivisionID
		}
	}

	if chain.DivisionID == "" && chain.CoordID == "" && chain.TeamID == "" {
		return nil, nil
	}
	return chain, nil
}

// EnsureChain deriva a cadeia e garante que divisão, coordenação e equipe
// existam no diretório, criando o que faltar. Usado ao aprovar cadastros com
// siglas ainda não registradas.
func (r *Resolver) EnsureChain(ctx context.Context, rawCode string) (*Chain, error) {
	chain, err := r.Derive(ctx, rawCode)
	if err != nil || chain == nil {
		return chain, err
	}

	if chain.DivisionID != "" {
		if err := r.ensureDivision(ctx, chain.DivisionID); err != nil {
			return nil, err
		}
	}
	if chain.CoordID != "" && chain.DivisionID != "" {
		if err := r.ensureCoordination(ctx, chain.CoordID, chain.DivisionID); err != nil {
			return nil, err
		}
	}

	code := NormalizeCode(rawCode)
	if chain.TeamID == "" && chain.CoordID != "" {
		chain.TeamID = code
	}
	if chain.TeamID != "" && chain.CoordID != "" {
		if err := r.ensureTeam(ctx, chain.TeamID, chain.CoordID); err != nil {
			return nil, err
		}
	}

	return chain, nil
}

func (r *Resolver) ensureDivision(ctx context.Context, id string) error {
	existing, err := r.dir.GetDivision(ctx, id)
	if err != nil {
		return fmt.Errorf("diretório: divisão %s: %w", id, err)
	}
	if existing != nil {
		return nil
	}
	return r.dir.UpsertDivision(ctx, Division{ID: id, Name: id})
}

func (r *Resolver) ensureCoordination(ctx context.Context, id, divisionID string) error {
	existing, err := r.dir.GetCoordination(ctx, id)
	if err != nil {
		return fmt.Errorf("diretório: coordenação %s: %w", id, err)
	}
	if existing != nil {
		return nil
	}
	return r.dir.UpsertCoordination(ctx, Coordination{ID: id, Name: id, DivisionID: divisionID})
}

func (r *Resolver) ensureTeam(ctx context.Context, id, coordID string) error {
	existing, err := r.dir.GetTeam(ctx, id)
	if err != nil {
		return fmt.Errorf("diretório: equipe %s: %w", id, err)
	}
	if existing != nil {
		return nil
	}
	return r.dir.UpsertTeam(ctx, Team{ID: id, Name: id, CoordinationID: coordID})
}
