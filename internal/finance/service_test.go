package finance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/engrodrigo-prog/djt-quest/internal/apperr"
	"github.com/engrodrigo-prog/djt-quest/internal/org"
	"github.com/engrodrigo-prog/djt-quest/internal/repo"
	"github.com/engrodrigo-prog/djt-quest/internal/scope"
)

type stubFinanceStore struct {
	requests     map[uuid.UUID]repo.FinanceRequest
	attachments  map[uuid.UUID][]repo.FinanceAttachment
	history      map[uuid.UUID][]repo.FinanceStatusHistory
	historyErr   error
	failInsertOn int
	inserts      int
	deleted      []uuid.UUID
}

func newStubFinanceStore() *stubFinanceStore {
	return &stubFinanceStore{
		requests:    map[uuid.UUID]repo.FinanceRequest{},
		attachments: map[uuid.UUID][]repo.FinanceAttachment{},
		history:     map[uuid.UUID][]repo.FinanceStatusHistory{},
	}
}

func (s *stubFinanceStore) Insert(ctx context.Context, req repo.FinanceRequest, attachments []repo.FinanceAttachment) error {
	s.inserts++
	if s.failInsertOn > 0 && s.inserts == s.failInsertOn {
		return errors.New("banco indisponível")
	}
	s.requests[req.ID] = req
	s.attachments[req.ID] = attachments
	return nil
}

func (s *stubFinanceStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.requests[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.requests, id)
	delete(s.attachments, id)
	delete(s.history, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubFinanceStore) GetByID(ctx context.Context, id uuid.UUID) (repo.FinanceRequest, error) {
	if req, ok := s.requests[id]; ok {
		return req, nil
	}
	return repo.FinanceRequest{}, repo.ErrNotFound
}

func (s *stubFinanceStore) List(ctx context.Context, filter repo.FinanceFilter) ([]repo.FinanceRequest, error) {
	var out []repo.FinanceRequest
	for _, req := range s.requests {
		if filter.CreatedBy != nil && req.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (s *stubFinanceStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	for _, req := range s.requests {
		counts[req.Status]++
	}
	return counts, nil
}

func (s *stubFinanceStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string, changedBy uuid.UUID, observation string) error {
	req, ok := s.requests[id]
	if !ok {
		return repo.ErrNotFound
	}
	if req.Status != from {
		return repo.ErrStaleStatus
	}
	prior := req.Status
	req.Status = to
	s.requests[id] = req
	s.history[id] = append(s.history[id], repo.FinanceStatusHistory{
		RequestID:   id,
		FromStatus:  &prior,
		ToStatus:    to,
		ChangedBy:   changedBy,
		Observation: observation,
	})
	return nil
}

func (s *stubFinanceStore) InsertHistory(ctx context.Context, h repo.FinanceStatusHistory) error {
	if s.historyErr != nil {
		return s.historyErr
	}
	s.history[h.RequestID] = append(s.history[h.RequestID], h)
	return nil
}

func (s *stubFinanceStore) ListAttachments(ctx context.Context, requestID uuid.UUID) ([]repo.FinanceAttachment, error) {
	return s.attachments[requestID], nil
}

func (s *stubFinanceStore) ListHistory(ctx context.Context, requestID uuid.UUID) ([]repo.FinanceStatusHistory, error) {
	return s.history[requestID], nil
}

type stubProfiles struct {
	profiles map[uuid.UUID]repo.Profile
}

func (s *stubProfiles) GetByID(ctx context.Context, id uuid.UUID) (repo.Profile, error) {
	if p, ok := s.profiles[id]; ok {
		return p, nil
	}
	return repo.Profile{}, repo.ErrNotFound
}

type stubRoles struct {
	roles map[uuid.UUID][]string
}

func (s *stubRoles) GetRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.roles[userID], nil
}

type nilDirectory struct{}

func (nilDirectory) GetTeam(ctx context.Context, id string) (*org.Team, error) { return nil, nil }
func (nilDirectory) GetCoordination(ctx context.Context, id string) (*org.Coordination, error) {
	return nil, nil
}

type financeFixture struct {
	svc       *Service
	store     *stubFinanceStore
	creatorID uuid.UUID
	managerID uuid.UUID
}

func newFinanceFixture(t *testing.T) *financeFixture {
	t.Helper()

	creatorID := uuid.New()
	managerID := uuid.New()

	profiles := &stubProfiles{profiles: map[uuid.UUID]repo.Profile{
		creatorID: {ID: creatorID, Nome: "Solicitante", Email: "sol@empresa.com", Matricula: "C111", TeamID: "DJTB-CUB-TEAM1", CoordID: "DJTB-CUB", DivisionID: "DJTB"},
		managerID: {ID: managerID, Nome: "Analista", Email: "fin@empresa.com", TeamID: "DJTB-FIN", CoordID: "DJTB-FIN", DivisionID: "DJTB"},
	}}
	roles := &stubRoles{roles: map[uuid.UUID][]string{
		creatorID: {"colaborador"},
		managerID: {"analista_financeiro", "colaborador"},
	}}
	store := newStubFinanceStore()

	svc := NewService(store, profiles, roles, scope.NewComputer(nilDirectory{}), nil)
	return &financeFixture{svc: svc, store: store, creatorID: creatorID, managerID: managerID}
}

func validReembolso() CreateInput {
	return CreateInput{
		Company:     "CPFL",
		RequestKind: KindReembolso,
		ExpenseType: "Alimentação",
		DateStart:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Description: "almoço em campo",
		AmountBRL:   "123,45",
		Attachments: []AttachmentInput{{FileName: "nota.pdf", FileURL: "https://files/nota.pdf", ObjectKey: "fin/nota.pdf"}},
	}
}

func TestCreateReembolso(t *testing.T) {
	f := newFinanceFixture(t)

	req, err := f.svc.Create(context.Background(), f.creatorID, validReembolso())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != StatusEnviado {
		t.Fatalf("status inicial: %q", req.Status)
	}
	if !strings.HasPrefix(req.Protocol, "REQ-") {
		t.Fatalf("protocolo sem prefixo: %q", req.Protocol)
	}
	if req.AmountCents == nil || *req.AmountCents != 12345 {
		t.Fatalf("valor em centavos: %v", req.AmountCents)
	}
	if req.Coordination != "DJTB-CUB" {
		t.Fatalf("coordenação não herdada do perfil: %q", req.Coordination)
	}
	if len(f.store.attachments[req.ID]) != 1 {
		t.Fatalf("anexos gravados: %d", len(f.store.attachments[req.ID]))
	}

	history := f.store.history[req.ID]
	if len(history) != 1 || history[0].FromStatus != nil || history[0].ToStatus != StatusEnviado {
		t.Fatalf("histórico inicial inesperado: %+v", history)
	}
}

func TestCreateReembolsoSemValorESemAnexo(t *testing.T) {
	f := newFinanceFixture(t)
	input := validReembolso()
	input.AmountBRL = ""
	input.Attachments = nil

	_, err := f.svc.Create(context.Background(), f.creatorID, input)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("esperado Validation, veio %v", err)
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("erro não é *apperr.Error: %v", err)
	}
	if !hasField(appErr.Fields, "amountBrl") || !hasField(appErr.Fields, "attachments") {
		t.Fatalf("campos rejeitados: %+v", appErr.Fields)
	}
}

func TestCreateAdiantamentoForcaTipoERejeitaValor(t *testing.T) {
	f := newFinanceFixture(t)

	input := CreateInput{
		Company:     "CPFL",
		RequestKind: KindAdiantamento,
		ExpenseType: "Hospedagem",
		DateStart:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Description: "viagem de manutenção",
	}
	req, err := f.svc.Create(context.Background(), f.creatorID, input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.ExpenseType != KindAdiantamento {
		t.Fatalf("tipo de despesa deveria ser forçado: %q", req.ExpenseType)
	}

	input.AmountBRL = "50,00"
	if _, err := f.svc.Create(context.Background(), f.creatorID, input); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("adiantamento com valor deveria falhar, veio %v", err)
	}
}

func TestCreateRejeitaConvidado(t *testing.T) {
	f := newFinanceFixture(t)
	guestID := uuid.New()
	profiles := f.svc.profiles.(*stubProfiles)
	profiles.profiles[guestID] = repo.Profile{ID: guestID, Nome: "Convidado", TeamID: org.GuestTeamID}

	_, err := f.svc.Create(context.Background(), guestID, validReembolso())
	if apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("esperado Authorization, veio %v", err)
	}
}

func TestCreateManyValidaCadaItem(t *testing.T) {
	f := newFinanceFixture(t)

	adiantamento := CreateInput{
		Company:     "CPFL",
		RequestKind: KindAdiantamento,
		DateStart:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Attachments: []AttachmentInput{{FileName: "x.pdf"}},
	}
	_, err := f.svc.CreateMany(context.Background(), f.creatorID, []CreateInput{validReembolso(), adiantamento})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("esperado Validation, veio %v", err)
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("erro não é *apperr.Error: %v", err)
	}
	if !hasField(appErr.Fields, "items[1].attachments") {
		t.Fatalf("campo do item errado: %+v", appErr.Fields)
	}

	adiantamento.Attachments = nil
	created, err := f.svc.CreateMany(context.Background(), f.creatorID, []CreateInput{validReembolso(), adiantamento})
	if err != nil {
		t.Fatalf("CreateMany: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("itens criados: %d", len(created))
	}
}

func TestCreateManyDesfazLoteIncompleto(t *testing.T) {
	f := newFinanceFixture(t)
	f.store.failInsertOn = 2

	second := validReembolso()
	second.Description = "Pedágio"

	created, err := f.svc.CreateMany(context.Background(), f.creatorID, []CreateInput{validReembolso(), second})
	if apperr.KindOf(err) != apperr.KindDependency {
		t.Fatalf("esperado Dependency, veio %v", err)
	}
	if created != nil {
		t.Fatalf("lote incompleto não pode devolver itens: %v", created)
	}
	if len(f.store.requests) != 0 {
		t.Fatalf("itens já gravados deveriam ter sido desfeitos, restam %d", len(f.store.requests))
	}
	if len(f.store.deleted) != 1 {
		t.Fatalf("esperada uma remoção de compensação, houve %d", len(f.store.deleted))
	}
}

func TestCancelApenasCriadorEApenasEnviado(t *testing.T) {
	f := newFinanceFixture(t)
	req, err := f.svc.Create(context.Background(), f.creatorID, validReembolso())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.svc.Cancel(context.Background(), f.managerID, req.ID); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("não-criador deveria receber Authorization, veio %v", err)
	}

	if err := f.svc.Cancel(context.Background(), f.creatorID, req.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := f.store.requests[req.ID].Status; got != StatusCancelado {
		t.Fatalf("status: %q", got)
	}

	if err := f.svc.Cancel(context.Background(), f.creatorID, req.ID); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("cancelamento repetido deveria ser Conflict, veio %v", err)
	}
}

func TestAdminUpdateStatusSegueTabela(t *testing.T) {
	f := newFinanceFixture(t)
	req, err := f.svc.Create(context.Background(), f.creatorID, validReembolso())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.svc.AdminUpdateStatus(context.Background(), f.creatorID, req.ID, StatusEmAnalise, ""); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("colaborador comum não gerencia a fila, veio %v", err)
	}

	if err := f.svc.AdminUpdateStatus(context.Background(), f.managerID, req.ID, StatusCancelado, ""); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("triagem não cancela, veio %v", err)
	}

	if err := f.svc.AdminUpdateStatus(context.Background(), f.managerID, req.ID, StatusEmAnalise, "em conferência"); err != nil {
		t.Fatalf("AdminUpdateStatus: %v", err)
	}
	if err := f.svc.AdminUpdateStatus(context.Background(), f.managerID, req.ID, StatusAprovado, ""); err != nil {
		t.Fatalf("AdminUpdateStatus: %v", err)
	}

	history := f.store.history[req.ID]
	last := history[len(history)-1]
	if last.FromStatus == nil || *last.FromStatus != StatusEmAnalise || last.ToStatus != StatusAprovado {
		t.Fatalf("histórico da transição: %+v", last)
	}
}

func TestAdminUpdateStatusDesconhecido(t *testing.T) {
	f := newFinanceFixture(t)
	req, err := f.svc.Create(context.Background(), f.creatorID, validReembolso())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.svc.AdminUpdateStatus(context.Background(), f.managerID, req.ID, "Arquivado", ""); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("status fora do conjunto deveria ser Validation, veio %v", err)
	}
}

func TestListRestringeNaoGestores(t *testing.T) {
	f := newFinanceFixture(t)
	if _, err := f.svc.Create(context.Background(), f.creatorID, validReembolso()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	otherID := uuid.New()
	profiles := f.svc.profiles.(*stubProfiles)
	profiles.profiles[otherID] = repo.Profile{ID: otherID, Nome: "Outro", TeamID: "DJTV-SUL"}
	roles := f.svc.roles.(*stubRoles)
	roles.roles[otherID] = []string{"colaborador"}

	visible, err := f.svc.List(context.Background(), otherID, repo.FinanceFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("não-gestor enxergou solicitações alheias: %d", len(visible))
	}

	all, err := f.svc.List(context.Background(), f.managerID, repo.FinanceFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("gestor deveria ver a fila inteira: %d", len(all))
	}
}

func TestGetRespeitaEscopoDeLeitura(t *testing.T) {
	f := newFinanceFixture(t)
	req, err := f.svc.Create(context.Background(), f.creatorID, validReembolso())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	detail, err := f.svc.Get(context.Background(), f.creatorID, req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(detail.Attachments) != 1 || len(detail.History) != 1 {
		t.Fatalf("detalhe incompleto: %+v", detail)
	}

	otherID := uuid.New()
	profiles := f.svc.profiles.(*stubProfiles)
	profiles.profiles[otherID] = repo.Profile{ID: otherID, Nome: "Outro"}
	if _, err := f.svc.Get(context.Background(), otherID, req.ID); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("terceiro não lê solicitação alheia, veio %v", err)
	}
}

func TestTransicoesExplicitas(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusEnviado, StatusEmAnalise, true},
		{StatusEnviado, StatusPago, true},
		{StatusEmAnalise, StatusAprovado, true},
		{StatusAprovado, StatusReprovado, true},
		{StatusPago, StatusEmAnalise, true},
		{StatusEnviado, StatusCancelado, false},
		{StatusEmAnalise, StatusEnviado, false},
		{StatusCancelado, StatusEnviado, false},
		{StatusAprovado, StatusAprovado, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%q, %q) = %v, esperado %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func hasField(fields []apperr.FieldError, name string) bool {
	for _, f := range fields {
		if f.Field == name {
			return true
		}
	}
	return false
}
