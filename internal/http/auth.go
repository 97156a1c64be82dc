package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	httpmiddleware "github.com/engrodrigo-prog/djt-quest/internal/http/middleware"
	"github.com/engrodrigo-prog/djt-quest/internal/repo"
	"github.com/engrodrigo-prog/djt-quest/internal/scope"
	"github.com/engrodrigo-prog/djt-quest/internal/service"
)

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileView struct {
	ID                 string `json:"id"`
	Nome               string `json:"nome"`
	Email              string `json:"email"`
	Matricula          string `json:"matricula,omitempty"`
	SiglaArea          string `json:"sigla_area,omitempty"`
	OperationalBase    string `json:"operational_base,omitempty"`
	TeamID             string `json:"team_id,omitempty"`
	CoordID            string `json:"coord_id,omitempty"`
	DivisionID         string `json:"division_id,omitempty"`
	MustChangePassword bool   `json:"must_change_password"`
}

type scopeView struct {
	EffectiveRole string `json:"effective_role"`
	TeamID        string `json:"team_id,omitempty"`
	CoordID       string `json:"coord_id,omitempty"`
	DivisionID    string `json:"division_id,omitempty"`
	StudioAccess  bool   `json:"studio_access"`
}

// Login autentica a conta local e devolve o token de acesso.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	result, err := h.authService.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrNoProfile) {
			WriteError(w, http.StatusUnauthorized, "AUTH", "credenciais inválidas", nil)
			return
		}
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": result.AccessToken,
		"roles":        result.Roles,
		"profile":      toProfileView(result.Profile),
		"scope":        toScopeView(result.Scope),
	})
}

// Me devolve perfil, papéis e escopo do usuário autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, ok := subjectUUID(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	result, err := h.authService.Me(r.Context(), subject)
	if err != nil {
		if errors.Is(err, service.ErrNoProfile) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "perfil não encontrado", nil)
			return
		}
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"roles":   result.Roles,
		"profile": toProfileView(result.Profile),
		"scope":   toScopeView(result.Scope),
	})
}

func subjectUUID(r *http.Request) (uuid.UUID, bool) {
	subject := httpmiddleware.GetSubject(r.Context())
	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func toProfileView(p repo.Profile) profileView {
	return profileView{
		ID:                 p.ID.String(),
		Nome:               p.Nome,
		Email:              p.Email,
		Matricula:          p.Matricula,
		SiglaArea:          p.SiglaArea,
		OperationalBase:    p.OperationalBase,
		TeamID:             p.TeamID,
		CoordID:            p.CoordID,
		DivisionID:         p.DivisionID,
		MustChangePassword: p.MustChangePassword,
	}
}

func toScopeView(s scope.Scope) scopeView {
	return scopeView{
		EffectiveRole: string(s.EffectiveRole),
		TeamID:        s.TeamID,
		CoordID:       s.CoordID,
		DivisionID:    s.DivisionID,
		StudioAccess:  s.StudioAccess,
	}
}
