package registration

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

type stubRegStore struct {
	regs        map[uuid.UUID]repo.PendingRegistration
	markedCalls int
	markErr     error
}

func (s *stubRegStore) GetByID(ctx context.Context, id uuid.UUID) (repo.PendingRegistration, error) {
	if reg, ok := s.regs[id]; ok {
		return reg, nil
	}
	return repo.PendingRegistration{}, repo.ErrNotFound
}

func (s *stubRegStore) ListPending(ctx context.Context, limit int) ([]repo.PendingRegistration, error) {
	var out []repo.PendingRegistration
	for _, reg := range s.regs {
		if reg.Status == repo.RegistrationPending {
			out = append(out, reg)
		}
	}
	return out, nil
}

func (s *stubRegStore) MarkReviewed(ctx context.Context, id uuid.UUID, status string, reviewedBy uuid.UUID, notes, siglaArea, operationalBase string) error {
	if s.markErr != nil {
		return s.markErr
	}
	reg, ok := s.regs[id]
	if !ok {
		return repo.ErrNotFound
	}
	if reg.Status != repo.RegistrationPending {
		return repo.ErrStaleStatus
	}
	reg.Status = status
	reg.ReviewedBy = &reviewedBy
	reg.SiglaArea = siglaArea
	reg.OperationalBase = operationalBase
	s.regs[id] = reg
	s.markedCalls++
	return nil
}

type stubProfileStore struct {
	profiles map[uuid.UUID]repo.Profile
	byEmail  map[string]uuid.UUID
	deleted  []uuid.UUID
}

func newStubProfileStore() *stubProfileStore {
	return &stubProfileStore{
		profiles: map[uuid.UUID]repo.Profile{},
		byEmail:  map[string]uuid.UUID{},
	}
}

func (s *stubProfileStore) GetByID(ctx context.Context, id uuid.UUID) (repo.Profile, error) {
	if p, ok := s.profiles[id]; ok {
		return p, nil
	}
	return repo.Profile{}, repo.ErrNotFound
}

func (s *stubProfileStore) GetByEmail(ctx context.Context, email string) (repo.Profile, error) {
	if id, ok := s.byEmail[strings.ToLower(email)]; ok {
		return s.profiles[id], nil
	}
	return repo.Profile{}, repo.ErrNotFound
}

func (s *stubProfileStore) Upsert(ctx context.Context, p repo.Profile) error {
	s.profiles[p.ID] = p
	s.byEmail[strings.ToLower(p.Email)] = p.ID
	return nil
}

func (s *stubProfileStore) UpdateOrg(ctx context.Context, id uuid.UUID, siglaArea, operationalBase, teamID, coordID, divisionID string) error {
	p, ok := s.profiles[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.SiglaArea = siglaArea
	p.OperationalBase = operationalBase
	p.TeamID = teamID
	p.CoordID = coordID
	p.DivisionID = divisionID
	s.profiles[id] = p
	return nil
}

func (s *stubProfileStore) Delete(ctx context.Context, id uuid.UUID) error {
	if p, ok := s.profiles[id]; ok {
		delete(s.byEmail, strings.ToLower(p.Email))
	}
	delete(s.profiles, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubRoleStore struct {
	roles    map[uuid.UUID][]string
	grantErr error
}

func (s *stubRoleStore) GetRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.roles[userID], nil
}

func (s *stubRoleStore) GrantRole(ctx context.Context, userID uuid.UUID, role string) error {
	if s.grantErr != nil {
		return s.grantErr
	}
	if s.roles == nil {
		s.roles = map[uuid.UUID][]string{}
	}
	s.roles[userID] = append(s.roles[userID], role)
	return nil
}

func (s *stubRoleStore) RevokeRole(ctx context.Context, userID uuid.UUID, role string) error {
	current := s.roles[userID]
	for i, r := range current {
		if r == role {
			s.roles[userID] = append(current[:i:i], current[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

type stubProvider struct {
	created   []string
	deleted   []string
	createErr error
}

func (s *stubProvider) CreateAccount(ctx context.Context, email, tempPassword string) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	id := uuid.NewString()
	s.created = append(s.created, id)
	return id, nil
}

func (s *stubProvider) DeleteAccount(ctx context.Context, accountID string) error {
	s.deleted = append(s.deleted, accountID)
	return nil
}

type memDirectory struct {
	teams  map[string]org.Team
	coords map[string]org.Coordination
	divs   map[string]org.Division
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		teams:  map[string]org.Team{},
		coords: map[string]org.Coordination{},
		divs:   map[string]org.Division{},
	}
}

func (m *memDirectory) GetTeam(ctx context.Context, id string) (*org.Team, error) {
	if t, ok := m.teams[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memDirectory) GetCoordination(ctx context.Context, id string) (*org.Coordination, error) {
	if c, ok := m.coords[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *memDirectory) GetDivision(ctx context.Context, id string) (*org.Division, error) {
	if d, ok := m.divs[id]; ok {
		return &d, nil
	}
	return nil, nil
}

func (m *memDirectory) UpsertDivision(ctx context.Context, d org.Division) error {
	m.divs[d.ID] = d
	return nil
}

func (m *memDirectory) UpsertCoordination(ctx context.Context, c org.Coordination) error {
	m.coords[c.ID] = c
	return nil
}

func (m *memDirectory) UpsertTeam(ctx context.Context, t org.Team) error {
	m.teams[t.ID] = t
	return nil
}

type fixture struct {
	svc      *Service
	regs     *stubRegStore
	profiles *stubProfileStore
	roles    *stubRoleStore
	provider *stubProvider
	actorID  uuid.UUID
	regID    uuid.UUID
}

func newFixture(t *testing.T, actorRoles []string) *fixture {
	t.Helper()

	actorID := uuid.New()
	regID := uuid.New()
	dob := time.Date(1990, 5, 10, 0, 0, 0, 0, time.UTC)

	profiles := newStubProfileStore()
	profiles.profiles[actorID] = repo.Profile{ID: actorID, Nome: "Revisor", Email: "revisor@empresa.com", TeamID: "DJTB-CUB-TEAM1", CoordID: "DJTB-CUB", DivisionID: "DJTB"}
	profiles.byEmail["revisor@empresa.com"] = actorID

	roles := &stubRoleStore{roles: map[uuid.UUID][]string{actorID: actorRoles}}
	regs := &stubRegStore{regs: map[uuid.UUID]repo.PendingRegistration{
		regID: {
			ID:              regID,
			Nome:            "Novo Colaborador",
			Email:           "novo@empresa.com",
			Matricula:       "C123456",
			SiglaArea:       "DJTB-CUB-TEAM1",
			OperationalBase: "CUBATAO",
			DateOfBirth:     &dob,
			Status:          repo.RegistrationPending,
		},
	}}

	dir := newMemDirectory()
	provider := &stubProvider{}

	svc := NewService(regs, profiles, roles, provider, org.NewResolver(dir), scope.NewComputer(dir), nil, nil)

	return &fixture{svc: svc, regs: regs, profiles: profiles, roles: roles, provider: provider, actorID: actorID, regID: regID}
}

func TestApproveProvisionsAccountProfileAndRole(t *testing.T) {
	f := newFixture(t, []string{"coordenador_djtx"})

	result, err := f.svc.Approve(context.Background(), f.regID, f.actorID, ApproveOptions{})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if result.AccountID == "" || result.TempPassword == "" {
		t.Fatalf("resultado incompleto: %+v", result)
	}

	accountUUID, err := uuid.Parse(result.AccountID)
	if err != nil {
		t.Fatalf("account id inválido: %v", err)
	}
	profile, ok := f.profiles.profiles[accountUUID]
	if !ok {
		t.Fatal("perfil não criado")
	}
	if !profile.MustChangePassword {
		t.Fatal("perfil deve exigir troca de senha")
	}
	if profile.TeamID != "DJTB-CUB-TEAM1" || profile.DivisionID != "DJTB" {
		t.Fatalf("organização não vinculada: %+v", profile)
	}

	granted := f.roles.roles[accountUUID]
	if len(granted) != 1 || granted[0] != "colaborador" {
		t.Fatalf("papéis concedidos: %v", granted)
	}

	if got := f.regs.regs[f.regID].Status; got != repo.RegistrationApproved {
		t.Fatalf("status do cadastro: %q", got)
	}
}

func TestApproveSecondCallReturnsNotFound(t *testing.T) {
	f := newFixture(t, []string{"admin"})

	if _, err := f.svc.Approve(context.Background(), f.regID, f.actorID, ApproveOptions{}); err != nil {
		t.Fatalf("primeira aprovação: %v", err)
	}

	marked := f.regs.markedCalls
	created := len(f.provider.created)

	_, err := f.svc.Approve(context.Background(), f.regID, f.actorID, ApproveOptions{})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("esperado NotFound, veio %v", err)
	}
	if f.regs.markedCalls != marked {
		t.Fatal("segunda aprovação não pode escrever no cadastro")
	}
	if len(f.provider.created) != created {
		t.Fatal("segunda aprovação não pode criar conta")
	}
}

func TestApproveOutOfScope(t *testing.T) {
	f := newFixture(t, []string{"coordenador_djtx"})
	reg := f.regs.regs[f.regID]
	reg.SiglaArea = "DJTV-OUTRA"
	f.regs.regs[f.regID] = reg

	_, err := f.svc.Approve(context.Background(), f.regID, f.actorID, ApproveOptions{})
	if apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("esperado Authorization, veio %v", err)
	}
	if len(f.provider.created) != 0 {
		t.Fatal("nenhuma conta deve ser criada fora do escopo")
	}
}

func TestApproveWithoutRoleIsForbidden(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Approve(context.Background(), f.regID, f.actorID, ApproveOptions{})
	if apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("esperado Authorization, veio %v", err)
	}
}

func TestApproveMissingDateOfBirth(t *testing.T) {
	f := newFixture(t, []string{"admin"})
	reg := f.regs.regs[f.regID]
	reg.DateOfBirth = nil
	f.regs.regs[f.regID] = reg

	_, err := f.svc.Approve(context.Background(), f.regID, f.actorID, ApproveOptions{})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("esperado Validation, veio %v", err)
	}
}

func TestApproveGuestOverride(t *testing.T) {
	f := newFixture(t, []string{"admin"})

	result, err := f.svc.Approve(context.Background(), f.regID, f.actorID, ApproveOptions{SiglaAreaOverride: "convidados"})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !result.Guest || result.SiglaArea != org.GuestTeamID {
		t.Fatalf("esperado convidado, veio %+v", result)
	}

	accountUUID, _ := uuid.Parse(result.AccountID)
	profile := f.profiles.profiles[accountUUID]
	if profile.TeamID != org.GuestTeamID || profile.CoordID != "" || profile.DivisionID != "" {
		t.Fatalf("convidado deve ficar fora da hierarquia: %+v", profile)
	}
	granted := f.roles.roles[accountUUID]
	if len(granted) != 1 || granted[0] != "invited" {
		t.Fatalf("papéis concedidos: %v", granted)
	}
}

func TestApproveRollsBackAccountOnRoleFailure(t *testing.T) {
	f := newFixture(t, []string{"admin"})
	f.roles.grantErr = errors.New("papel indisponível")

	_, err := f.svc.Approve(context.Background(), f.regID, f.actorID, ApproveOptions{})
	if apperr.KindOf(err) != apperr.KindDependency {
		t.Fatalf("esperado Dependency, veio %v", err)
	}
	if len(f.provider.created) != 1 || len(f.provider.deleted) != 1 {
		t.Fatalf("conta deveria ter sido criada e desfeita: created=%d deleted=%d", len(f.provider.created), len(f.provider.deleted))
	}
	if f.provider.created[0] != f.provider.deleted[0] {
		t.Fatal("compensação removeu conta errada")
	}
	if got := f.regs.regs[f.regID].Status; got != repo.RegistrationPending {
		t.Fatalf("cadastro deveria seguir pendente, veio %q", got)
	}
}

func TestApproveRollsBackRolesOnCloseFailure(t *testing.T) {
	f := newFixture(t, []string{"admin"})
	f.regs.markErr = errors.New("banco indisponível")

	_, err := f.svc.Approve(context.Background(), f.regID, f.actorID, ApproveOptions{GrantContentCurator: true})
	if apperr.KindOf(err) != apperr.KindDependency {
		t.Fatalf("esperado Dependency, veio %v", err)
	}

	if len(f.provider.created) != 1 || len(f.provider.deleted) != 1 {
		t.Fatalf("conta deveria ter sido criada e desfeita: created=%d deleted=%d", len(f.provider.created), len(f.provider.deleted))
	}
	accountUUID, parseErr := uuid.Parse(f.provider.created[0])
	if parseErr != nil {
		t.Fatalf("account id inválido: %v", parseErr)
	}
	if _, ok := f.profiles.profiles[accountUUID]; ok {
		t.Fatal("perfil deveria ter sido desfeito")
	}
	if remaining := f.roles.roles[accountUUID]; len(remaining) != 0 {
		t.Fatalf("papéis deveriam ter sido desfeitos, restaram %v", remaining)
	}
}

func TestApproveDuplicateEmailIsConflict(t *testing.T) {
	f := newFixture(t, []string{"admin"})
	existing := uuid.New()
	f.profiles.profiles[existing] = repo.Profile{ID: existing, Email: "novo@empresa.com"}
	f.profiles.byEmail["novo@empresa.com"] = existing

	_, err := f.svc.Approve(context.Background(), f.regID, f.actorID, ApproveOptions{})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("esperado Conflict, veio %v", err)
	}
	if len(f.provider.created) != 0 {
		t.Fatal("não pode criar conta para e-mail já cadastrado")
	}
}

func TestRejectClosesRegistration(t *testing.T) {
	f := newFixture(t, []string{"admin"})

	if err := f.svc.Reject(context.Background(), f.regID, f.actorID, "dados inconsistentes"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got := f.regs.regs[f.regID].Status; got != repo.RegistrationRejected {
		t.Fatalf("status: %q", got)
	}

	err := f.svc.Reject(context.Background(), f.regID, f.actorID, "de novo")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("segunda rejeição deve ser NotFound, veio %v", err)
	}
}

func TestListPendingFiltersByScope(t *testing.T) {
	f := newFixture(t, []string{"coordenador_djtx"})

	otherID := uuid.New()
	dob := time.Date(1992, 1, 1, 0, 0, 0, 0, time.UTC)
	f.regs.regs[otherID] = repo.PendingRegistration{
		ID:          otherID,
		Nome:        "Fora do Escopo",
		Email:       "fora@empresa.com",
		SiglaArea:   "DJTV-OUTRA",
		DateOfBirth: &dob,
		Status:      repo.RegistrationPending,
	}

	visible, err := f.svc.ListPending(context.Background(), f.actorID, 50)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != f.regID {
		t.Fatalf("esperado apenas o cadastro da coordenação, veio %d", len(visible))
	}
}
