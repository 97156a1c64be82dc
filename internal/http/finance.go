package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/engrodrigo-prog/djt-quest/internal/finance"
	"github.com/engrodrigo-prog/djt-quest/internal/money"
	"github.com/engrodrigo-prog/djt-quest/internal/repo"
)

type financeAttachmentPayload struct {
	FileName  string `json:"file_name"`
	FileURL   string `json:"file_url"`
	ObjectKey string `json:"object_key"`
}

type financeRequestPayload struct {
	Company      string                     `json:"company"`
	RequestKind  string                     `json:"request_kind"`
	ExpenseType  string                     `json:"expense_type"`
	Coordination string                     `json:"coordination"`
	DateStart    string                     `json:"date_start"`
	DateEnd      string                     `json:"date_end"`
	Description  string                     `json:"description"`
	AmountBRL    string                     `json:"amount_brl"`
	Attachments  []financeAttachmentPayload `json:"attachments"`
}

var errDateFormat = errors.New("datas devem usar o formato AAAA-MM-DD")

type financeBatchPayload struct {
	Items []financeRequestPayload `json:"items"`
}

type updateStatusPayload struct {
	Status      string `json:"status"`
	Observation string `json:"observation"`
}

type financeRequestView struct {
	ID              string  `json:"id"`
	Protocol        string  `json:"protocol"`
	CreatedBy       string  `json:"created_by"`
	CreatedByName   string  `json:"created_by_name"`
	Company         string  `json:"company,omitempty"`
	RequestKind     string  `json:"request_kind"`
	ExpenseType     string  `json:"expense_type,omitempty"`
	Coordination    string  `json:"coordination,omitempty"`
	DateStart       string  `json:"date_start"`
	DateEnd         *string `json:"date_end,omitempty"`
	Description     string  `json:"description,omitempty"`
	AmountBRL       *string `json:"amount_brl,omitempty"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	LastObservation *string `json:"last_observation,omitempty"`
	CriadoEm        string  `json:"criado_em"`
}

type financeAttachmentView struct {
	ID         string `json:"id"`
	FileName   string `json:"file_name"`
	FileURL    string `json:"file_url,omitempty"`
	UploadedAt string `json:"uploaded_at"`
}

type financeHistoryView struct {
	FromStatus  *string `json:"from_status"`
	ToStatus    string  `json:"to_status"`
	ChangedBy   string  `json:"changed_by"`
	Observation string  `json:"observation,omitempty"`
	CriadoEm    string  `json:"criado_em"`
}

// CreateFinanceRequest registra uma nova solicitação financeira.
func (h *Handler) CreateFinanceRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := subjectUUID(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	var payload financeRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	input, err := toCreateInput(payload)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}

	req, err := h.finance.Create(r.Context(), actorID, input)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toFinanceView(*req))
}

// CreateFinanceRequestBatch registra várias solicitações de uma vez.
func (h *Handler) CreateFinanceRequestBatch(w http.ResponseWriter, r *http.Request) {
	actorID, ok := subjectUUID(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	var payload financeBatchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	items := make([]finance.CreateInput, 0, len(payload.Items))
	for _, item := range payload.Items {
		input, err := toCreateInput(item)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return
		}
		items = append(items, input)
	}

	created, err := h.finance.CreateMany(r.Context(), actorID, items)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	views := make([]financeRequestView, 0, len(created))
	for _, req := range created {
		views = append(views, toFinanceView(req))
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"requests": views})
}

// ListFinanceRequests devolve solicitações filtradas. Não-gestores só veem
// as próprias.
func (h *Handler) ListFinanceRequests(w http.ResponseWriter, r *http.Request) {
	actorID, ok := subjectUUID(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	query := r.URL.Query()
	filter := repo.FinanceFilter{
		Status:       query.Get("status"),
		RequestKind:  query.Get("request_kind"),
		Coordination: query.Get("coordination"),
	}
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filter.Limit = parsed
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filter.Offset = parsed
		}
	}
	if raw := query.Get("date_from"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &parsed
		}
	}
	if raw := query.Get("date_to"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateTo = &parsed
		}
	}
	if raw := query.Get("mine"); raw == "true" {
		filter.CreatedBy = &actorID
	}

	requests, err := h.finance.List(r.Context(), actorID, filter)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	views := make([]financeRequestView, 0, len(requests))
	for _, req := range requests {
		views = append(views, toFinanceView(req))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"requests": views})
}

// GetFinanceRequest devolve a solicitação com anexos e trilha de status.
func (h *Handler) GetFinanceRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := subjectUUID(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	detail, err := h.finance.Get(r.Context(), actorID, requestID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	attachments := make([]financeAttachmentView, 0, len(detail.Attachments))
	for _, att := range detail.Attachments {
		attachments = append(attachments, financeAttachmentView{
			ID:         att.ID.String(),
			FileName:   att.FileName,
			FileURL:    att.FileURL,
			UploadedAt: att.UploadedAt.Format(time.RFC3339),
		})
	}
	history := make([]financeHistoryView, 0, len(detail.History))
	for _, item := range detail.History {
		history = append(history, financeHistoryView{
			FromStatus:  item.FromStatus,
			ToStatus:    item.ToStatus,
			ChangedBy:   item.ChangedBy.String(),
			Observation: item.Observation,
			CriadoEm:    item.CriadoEm.Format(time.RFC3339),
		})
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"request":     toFinanceView(detail.Request),
		"attachments": attachments,
		"history":     history,
	})
}

// CancelFinanceRequest cancela a solicitação a pedido do solicitante.
func (h *Handler) CancelFinanceRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := subjectUUID(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := h.finance.Cancel(r.Context(), actorID, requestID); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": finance.StatusCancelado})
}

// UpdateFinanceRequestStatus aplica uma transição de triagem.
func (h *Handler) UpdateFinanceRequestStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := subjectUUID(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var payload updateStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if err := h.finance.AdminUpdateStatus(r.Context(), actorID, requestID, payload.Status, payload.Observation); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": payload.Status})
}

// FinanceSummary agrega a fila por status.
func (h *Handler) FinanceSummary(w http.ResponseWriter, r *http.Request) {
	actorID, ok := subjectUUID(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	counts, err := h.finance.CountByStatus(r.Context(), actorID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func toCreateInput(payload financeRequestPayload) (finance.CreateInput, error) {
	input := finance.CreateInput{
		Company:      payload.Company,
		RequestKind:  payload.RequestKind,
		ExpenseType:  payload.ExpenseType,
		Coordination: payload.Coordination,
		Description:  payload.Description,
		AmountBRL:    payload.AmountBRL,
	}
	for _, att := range payload.Attachments {
		input.Attachments = append(input.Attachments, finance.AttachmentInput{
			FileName:  att.FileName,
			FileURL:   att.FileURL,
			ObjectKey: att.ObjectKey,
		})
	}

	if payload.DateStart != "" {
		start, err := time.Parse("2006-01-02", payload.DateStart)
		if err != nil {
			return finance.CreateInput{}, errDateFormat
		}
		input.DateStart = start
	}
	if payload.DateEnd != "" {
		end, err := time.Parse("2006-01-02", payload.DateEnd)
		if err != nil {
			return finance.CreateInput{}, errDateFormat
		}
		input.DateEnd = &end
	}
	return input, nil
}

func toFinanceView(req repo.FinanceRequest) financeRequestView {
	view := financeRequestView{
		ID:              req.ID.String(),
		Protocol:        req.Protocol,
		CreatedBy:       req.CreatedBy.String(),
		CreatedByName:   req.CreatedByName,
		Company:         req.Company,
		RequestKind:     req.RequestKind,
		ExpenseType:     req.ExpenseType,
		Coordination:    req.Coordination,
		DateStart:       req.DateStart.Format("2006-01-02"),
		Description:     req.Description,
		Currency:        req.Currency,
		Status:          req.Status,
		LastObservation: req.LastObservation,
		CriadoEm:        req.CriadoEm.Format(time.RFC3339),
	}
	if req.DateEnd != nil {
		end := req.DateEnd.Format("2006-01-02")
		view.DateEnd = &end
	}
	if req.AmountCents != nil {
		amount := money.FormatCents(*req.AmountCents)
		view.AmountBRL = &amount
	}
	return view
}
