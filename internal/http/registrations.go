package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/engrodrigo-prog/djt-quest/internal/registration"
	"github.com/engrodrigo-prog/djt-quest/internal/repo"
)

type registrationView struct {
	ID              string  `json:"id"`
	Nome            string  `json:"nome"`
	Email           string  `json:"email"`
	Matricula       string  `json:"matricula,omitempty"`
	SiglaArea       string  `json:"sigla_area,omitempty"`
	OperationalBase string  `json:"operational_base,omitempty"`
	DateOfBirth     *string `json:"date_of_birth,omitempty"`
	Status          string  `json:"status"`
	CriadoEm        string  `json:"criado_em"`
}

type approvePayload struct {
	SiglaArea           string `json:"sigla_area"`
	GrantContentCurator bool   `json:"grant_content_curator"`
}

type rejectPayload struct {
	Notes string `json:"notes"`
}

// ListPendingRegistrations devolve a fila de cadastros dentro do escopo do
// revisor.
func (h *Handler) ListPendingRegistrations(w http.ResponseWriter, r *http.Request) {
	actorID, ok := subjectUUID(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	pending, err := h.registrations.ListPending(r.Context(), actorID, limit)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	views := make([]registrationView, 0, len(pending))
	for _, reg := range pending {
		views = append(views, toRegistrationView(reg))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"registrations": views})
}

// ApproveRegistration aprova o cadastro e devolve a credencial temporária.
func (h *Handler) ApproveRegistration(w http.ResponseWriter, r *http.Request) {
	actorID, ok := subjectUUID(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	registrationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload approvePayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
			return
		}
	}

	result, err := h.registrations.Approve(r.Context(), registrationID, actorID, registration.ApproveOptions{
		SiglaAreaOverride:   payload.SiglaArea,
		GrantContentCurator: payload.GrantContentCurator,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"account_id":    result.AccountID,
		"temp_password": result.TempPassword,
		"sigla_area":    result.SiglaArea,
		"guest":         result.Guest,
	})
}

// RejectRegistration fecha o cadastro como rejeitado.
func (h *Handler) RejectRegistration(w http.ResponseWriter, r *http.Request) {
	actorID, ok := subjectUUID(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	registrationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload rejectPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
			return
		}
	}

	if err := h.registrations.Reject(r.Context(), registrationID, actorID, payload.Notes); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": repo.RegistrationRejected})
}

func toRegistrationView(reg repo.PendingRegistration) registrationView {
	view := registrationView{
		ID:              reg.ID.String(),
		Nome:            reg.Nome,
		Email:           reg.Email,
		Matricula:       reg.Matricula,
		SiglaArea:       reg.SiglaArea,
		OperationalBase: reg.OperationalBase,
		Status:          reg.Status,
		CriadoEm:        reg.CriadoEm.Format(time.RFC3339),
	}
	if reg.DateOfBirth != nil {
		dob := reg.DateOfBirth.Format("2006-01-02")
		view.DateOfBirth = &dob
	}
	return view
}
