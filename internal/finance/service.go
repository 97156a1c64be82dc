package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"

	"github.com/engrodrigo-prog/djt-quest/internal/apperr"
	"github.com/engrodrigo-prog/djt-quest/internal/money"
	"github.com/engrodrigo-prog/djt-quest/internal/repo"
	"github.com/engrodrigo-prog/djt-quest/internal/scope"
)

const maxAttachments = 12

type financeStore interface {
	Insert(ctx context.Context, req repo.FinanceRequest, attachments []repo.FinanceAttachment) error
	GetByID(ctx context.Context, id uuid.UUID) (repo.FinanceRequest, error)
	List(ctx context.Context, filter repo.FinanceFilter) ([]repo.FinanceRequest, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string, changedBy uuid.UUID, observation string) error
	InsertHistory(ctx context.Context, h repo.FinanceStatusHistory) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListAttachments(ctx context.Context, requestID uuid.UUID) ([]repo.FinanceAttachment, error)
	ListHistory(ctx context.Context, requestID uuid.UUID) ([]repo.FinanceStatusHistory, error)
}

type profileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repo.Profile, error)
}

type roleStore interface {
	GetRoles(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type auditor interface {
	Append(actorID uuid.UUID, action, entityType, entityID string, before, after any)
}

// Service coordena o ciclo de vida das solicitações financeiras.
type Service struct {
	requests financeStore
	profiles profileStore
	roles    roleStore
	scopes   *scope.Computer
	audit    auditor
}

// NewService cria o serviço de solicitações financeiras.
func NewService(requests financeStore, profiles profileStore, roles roleStore, scopes *scope.Computer, audit auditor) *Service {
	return &Service{
		requests: requests,
		profiles: profiles,
		roles:    roles,
		scopes:   scopes,
		audit:    audit,
	}
}

// AttachmentInput é o metadado de um comprovante enviado junto do pedido.
type AttachmentInput struct {
	FileName  string
	FileURL   string
	ObjectKey string
}

// CreateInput é o payload de criação de uma solicitação.
type CreateInput struct {
	Company      string
	RequestKind  string
	ExpenseType  string
	Coordination string
	DateStart    time.Time
	DateEnd      *time.Time
	Description  string
	AmountBRL    string
	Attachments  []AttachmentInput
}

// Detail agrega a solicitação, seus anexos e a trilha de status.
type Detail struct {
	Request     repo.FinanceRequest
	Attachments []repo.FinanceAttachment
	History     []repo.FinanceStatusHistory
}

// Create valida o payload segundo o tipo da solicitação e grava o pedido
// com status inicial Enviado. A linha inicial de histórico é registrada em
// melhor esforço: a solicitação criada vale mesmo se o histórico falhar.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*repo.FinanceRequest, error) {
	actor, _, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	amountCents, fields := validateInput(input, "")
	if len(fields) > 0 {
		return nil, apperr.Validation("solicitação inválida", fields...)
	}

	req, attachments := buildRequest(actor, input, amountCents)
	if err := s.requests.Insert(ctx, req, attachments); err != nil {
		return nil, apperr.Dependency("falha ao gravar solicitação", err)
	}
	s.recordInitialHistory(ctx, req, actorID)

	if s.audit != nil {
		s.audit.Append(actorID, "finance.create", "finance_request", req.ID.String(),
			nil, map[string]any{"protocol": req.Protocol, "status": req.Status, "request_kind": req.RequestKind})
	}
	return &req, nil
}

// CreateMany aplica as regras por tipo a cada item de forma independente e
// só grava se todos forem válidos. Itens de adiantamento não levam anexos
// nem valor; cada reembolso exige os seus. O lote é tudo ou nada: falha na
// gravação de um item desfaz os já gravados.
func (s *Service) CreateMany(ctx context.Context, actorID uuid.UUID, items []CreateInput) ([]repo.FinanceRequest, error) {
	actor, _, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.Validation("nenhum item informado",
			apperr.FieldError{Field: "items", Message: "informe ao menos um item"})
	}

	var allFields []apperr.FieldError
	amounts := make([]*int64, len(items))
	for i, item := range items {
		prefix := fmt.Sprintf("items[%d].", i)
		amountCents, fields := validateInput(item, prefix)
		if item.RequestKind == KindAdiantamento && len(item.Attachments) > 0 {
			fields = append(fields, apperr.FieldError{Field: prefix + "attachments", Message: "adiantamento não leva anexos"})
		}
		allFields = append(allFields, fields...)
		amounts[i] = amountCents
	}
	if len(allFields) > 0 {
		return nil, apperr.Validation("itens inválidos", allFields...)
	}

	created := make([]repo.FinanceRequest, 0, len(items))
	for i, item := range items {
		req, attachments := buildRequest(actor, item, amounts[i])
		if err := s.requests.Insert(ctx, req, attachments); err != nil {
			s.rollbackCreated(ctx, created)
			return nil, apperr.Dependency("falha ao gravar solicitação", err)
		}
		s.recordInitialHistory(ctx, req, actorID)
		created = append(created, req)
	}

	if s.audit != nil {
		protocols := make([]string, len(created))
		for i, req := range created {
			protocols[i] = req.Protocol
		}
		s.audit.Append(actorID, "finance.create_many", "finance_request", "",
			nil, map[string]any{"protocols": protocols})
	}
	return created, nil
}

// Cancel encerra a solicitação a pedido do próprio solicitante. Só vale a
// partir de Enviado; depois que a triagem tocou no pedido, cancelar é com
// ela.
func (s *Service) Cancel(ctx context.Context, actorID, requestID uuid.UUID) error {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.CreatedBy != actorID {
		return apperr.Forbidden("apenas o solicitante pode cancelar")
	}
	if req.Status != StatusEnviado {
		return apperr.Conflict("solicitação já em triagem; não pode ser cancelada")
	}

	if err := s.requests.TransitionStatus(ctx, requestID, StatusEnviado, StatusCancelado, actorID, ""); err != nil {
		if errors.Is(err, repo.ErrStaleStatus) {
			return apperr.Conflict("solicitação mudou de status durante o cancelamento")
		}
		return apperr.Dependency("falha ao cancelar solicitação", err)
	}

	if s.audit != nil {
		s.audit.Append(actorID, "finance.cancel", "finance_request", requestID.String(),
			map[string]any{"status": StatusEnviado}, map[string]any{"status": StatusCancelado})
	}
	return nil
}

// AdminUpdateStatus aplica uma transição de triagem validada contra a
// máquina de estados. O compare-and-swap no status anterior garante que
// dois revisores não apliquem transições sobrepostas.
func (s *Service) AdminUpdateStatus(ctx context.Context, actorID, requestID uuid.UUID, newStatus, observation string) error {
	if err := s.requireManager(ctx, actorID); err != nil {
		return err
	}
	if !ValidStatus(newStatus) {
		return apperr.Validation("status desconhecido",
			apperr.FieldError{Field: "status", Message: "valor fora do conjunto de status"})
	}

	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if !CanTransition(req.Status, newStatus) {
		return apperr.Conflict(fmt.Sprintf("transição %s -> %s não permitida", req.Status, newStatus))
	}

	if err := s.requests.TransitionStatus(ctx, requestID, req.Status, newStatus, actorID, observation); err != nil {
		if errors.Is(err, repo.ErrStaleStatus) {
			return apperr.Conflict("solicitação mudou de status durante a triagem")
		}
		return apperr.Dependency("falha ao transicionar solicitação", err)
	}

	if s.audit != nil {
		s.audit.Append(actorID, "finance.update_status", "finance_request", requestID.String(),
			map[string]any{"status": req.Status}, map[string]any{"status": newStatus, "observation": observation})
	}
	return nil
}

// Get devolve a solicitação com anexos e trilha. Leitura vale para o
// solicitante ou para quem gerencia a fila financeira.
func (s *Service) Get(ctx context.Context, actorID, requestID uuid.UUID) (*Detail, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.CreatedBy != actorID {
		if err := s.requireManager(ctx, actorID); err != nil {
			return nil, err
		}
	}

	attachments, err := s.requests.ListAttachments(ctx, requestID)
	if err != nil {
		return nil, apperr.Dependency("falha ao listar anexos", err)
	}
	history, err := s.requests.ListHistory(ctx, requestID)
	if err != nil {
		return nil, apperr.Dependency("falha ao listar histórico", err)
	}
	return &Detail{Request: req, Attachments: attachments, History: history}, nil
}

// List devolve solicitações segundo o filtro. Quem não gerencia a fila só
// enxerga as próprias.
func (s *Service) List(ctx context.Context, actorID uuid.UUID, filter repo.FinanceFilter) ([]repo.FinanceRequest, error) {
	if err := s.requireManager(ctx, actorID); err != nil {
		if apperr.KindOf(err) != apperr.KindAuthorization {
			return nil, err
		}
		filter.CreatedBy = &actorID
	}

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, apperr.Dependency("falha ao listar solicitações", err)
	}
	return requests, nil
}

// CountByStatus agrega a fila por status para o painel de triagem.
func (s *Service) CountByStatus(ctx context.Context, actorID uuid.UUID) (map[string]int, error) {
	if err := s.requireManager(ctx, actorID); err != nil {
		return nil, err
	}
	counts, err := s.requests.CountByStatus(ctx)
	if err != nil {
		return nil, apperr.Dependency("falha ao agregar solicitações", err)
	}
	return counts, nil
}

func (s *Service) loadActor(ctx context.Context, actorID uuid.UUID) (repo.Profile, []string, error) {
	actor, err := s.profiles.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return repo.Profile{}, nil, apperr.Forbidden("ator sem perfil no portal")
		}
		return repo.Profile{}, nil, apperr.Dependency("consulta de perfil falhou", err)
	}
	roles, err := s.roles.GetRoles(ctx, actorID)
	if err != nil {
		return repo.Profile{}, nil, apperr.Dependency("consulta de papéis falhou", err)
	}
	if scope.IsGuestProfile(actor, roles) {
		return repo.Profile{}, nil, apperr.Forbidden("convidados não abrem solicitações financeiras")
	}
	return actor, roles, nil
}

func (s *Service) requireManager(ctx context.Context, actorID uuid.UUID) error {
	actor, err := s.profiles.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.Forbidden("ator sem perfil no portal")
		}
		return apperr.Dependency("consulta de perfil falhou", err)
	}
	roles, err := s.roles.GetRoles(ctx, actorID)
	if err != nil {
		return apperr.Dependency("consulta de papéis falhou", err)
	}
	actorScope, err := s.scopes.Compute(ctx, actor, roles)
	if err != nil {
		return apperr.Dependency("cálculo de escopo falhou", err)
	}
	if !scope.CanManageFinance(actorScope, roles) {
		return apperr.Forbidden("sem papel para gerenciar solicitações financeiras")
	}
	return nil
}

func (s *Service) getRequest(ctx context.Context, requestID uuid.UUID) (repo.FinanceRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return repo.FinanceRequest{}, apperr.NotFound("solicitação não encontrada")
		}
		return repo.FinanceRequest{}, apperr.Dependency("consulta de solicitação falhou", err)
	}
	return req, nil
}

// rollbackCreated remove em ordem reversa as solicitações gravadas de um
// lote que não se completou.
func (s *Service) rollbackCreated(ctx context.Context, created []repo.FinanceRequest) {
	for i := len(created) - 1; i >= 0; i-- {
		req := created[i]
		if err := s.requests.Delete(context.WithoutCancel(ctx), req.ID); err != nil {
			log.Error().Err(err).Str("request_id", req.ID.String()).Str("protocol", req.Protocol).Msg("finance: falha ao desfazer item do lote")
		}
	}
}

func (s *Service) recordInitialHistory(ctx context.Context, req repo.FinanceRequest, actorID uuid.UUID) {
	err := s.requests.InsertHistory(ctx, repo.FinanceStatusHistory{
		RequestID: req.ID,
		ToStatus:  StatusEnviado,
		ChangedBy: actorID,
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", req.ID.String()).Msg("finance: histórico inicial não gravado")
	}
}

// validateInput aplica as regras por tipo e devolve o valor em centavos
// quando houver. O prefixo qualifica os campos no modo multi-item.
func validateInput(input CreateInput, prefix string) (*int64, []apperr.FieldError) {
	var fields []apperr.FieldError

	if !ValidKind(input.RequestKind) {
		fields = append(fields, apperr.FieldError{Field: prefix + "requestKind", Message: "tipo de solicitação desconhecido"})
		return nil, fields
	}

	if input.DateStart.IsZero() {
		fields = append(fields, apperr.FieldError{Field: prefix + "dateStart", Message: "data inicial obrigatória"})
	} else if input.DateEnd != nil && input.DateEnd.Before(input.DateStart) {
		fields = append(fields, apperr.FieldError{Field: prefix + "dateEnd", Message: "data final anterior à inicial"})
	}
	if len(input.Attachments) > maxAttachments {
		fields = append(fields, apperr.FieldError{Field: prefix + "attachments", Message: fmt.Sprintf("máximo de %d anexos", maxAttachments)})
	}

	var amountCents *int64
	switch input.RequestKind {
	case KindAdiantamento:
		if input.AmountBRL != "" {
			fields = append(fields, apperr.FieldError{Field: prefix + "amountBrl", Message: "adiantamento não leva valor"})
		}
	case KindReembolso:
		if input.ExpenseType == "" {
			fields = append(fields, apperr.FieldError{Field: prefix + "expenseType", Message: "tipo de despesa obrigatório"})
		}
		cents, ok := money.ParseAmount(input.AmountBRL)
		if !ok || cents <= 0 {
			fields = append(fields, apperr.FieldError{Field: prefix + "amountBrl", Message: "valor obrigatório e maior que zero"})
		} else {
			amountCents = &cents
		}
		if len(input.Attachments) == 0 {
			fields = append(fields, apperr.FieldError{Field: prefix + "attachments", Message: "anexe ao menos um comprovante"})
		}
	}

	return amountCents, fields
}

// buildRequest monta a solicitação com protocolo novo, status inicial e os
// dados do solicitante desnormalizados.
func buildRequest(actor repo.Profile, input CreateInput, amountCents *int64) (repo.FinanceRequest, []repo.FinanceAttachment) {
	expenseType := input.ExpenseType
	if input.RequestKind == KindAdiantamento {
		expenseType = KindAdiantamento
	}
	coordination := input.Coordination
	if coordination == "" {
		coordination = actor.CoordID
	}

	id := uuid.New()
	req := repo.FinanceRequest{
		ID:              id,
		Protocol:        "REQ-" + ksuid.New().String(),
		CreatedBy:       actor.ID,
		CreatedByName:   actor.Nome,
		CreatedByEmail:  actor.Email,
		CreatedByMatric: actor.Matricula,
		Company:         input.Company,
		RequestKind:     input.RequestKind,
		ExpenseType:     expenseType,
		Coordination:    coordination,
		DateStart:       input.DateStart,
		DateEnd:         input.DateEnd,
		Description:     input.Description,
		AmountCents:     amountCents,
		Currency:        "BRL",
		Status:          StatusEnviado,
	}

	attachments := make([]repo.FinanceAttachment, 0, len(input.Attachments))
	for _, att := range input.Attachments {
		attachments = append(attachments, repo.FinanceAttachment{
			ID:        uuid.New(),
			RequestID: id,
			FileName:  att.FileName,
			FileURL:   att.FileURL,
			ObjectKey: att.ObjectKey,
		})
	}
	return req, attachments
}
