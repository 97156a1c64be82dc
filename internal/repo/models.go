package repo

import (
	"time"

	"github.com/google/uuid"
)

// Status de cadastros pendentes.
const (
	RegistrationPending  = "pending"
	RegistrationApproved = "approved"
	RegistrationRejected = "rejected"
)

// Profile representa o perfil de um colaborador no portal. Os campos de
// organização são caches desnormalizados da ancestralidade da equipe e são
// reescritos sempre que a equipe do perfil muda.
type Profile struct {
	ID                 uuid.UUID
	Nome               string
	Email              string
	Matricula          string
	SiglaArea          string
	OperationalBase    string
	TeamID             string
	CoordID            string
	DivisionID         string
	IsLeader           bool
	StudioAccess       bool
	MustChangePassword bool
	CriadoEm           time.Time
}

// PendingRegistration representa um pedido de cadastro aguardando revisão.
type PendingRegistration struct {
	ID              uuid.UUID
	Nome            string
	Email           string
	Matricula       string
	SiglaArea       string
	OperationalBase string
	DateOfBirth     *time.Time
	Status          string
	ReviewedBy      *uuid.UUID
	ReviewedAt      *time.Time
	ReviewNotes     *string
	CriadoEm        time.Time
}

// FinanceRequest representa uma solicitação financeira (reembolso ou
// adiantamento) com trilha de status própria.
type FinanceRequest struct {
	ID              uuid.UUID
	Protocol        string
	CreatedBy       uuid.UUID
	CreatedByName   string
	CreatedByEmail  string
	CreatedByMatric string
	Company         string
	RequestKind     string
	ExpenseType     string
	Coordination    string
	DateStart       time.Time
	DateEnd         *time.Time
	Description     string
	AmountCents     *int64
	Currency        string
	Status          string
	LastObservation *string
	CriadoEm        time.Time
	AtualizadoEm    time.Time
}

// FinanceAttachment é o metadado de um comprovante anexado à solicitação.
type FinanceAttachment struct {
	ID         uuid.UUID
	RequestID  uuid.UUID
	FileName   string
	FileURL    string
	ObjectKey  string
	UploadedAt time.Time
}

// FinanceStatusHistory é a trilha append-only de transições de status.
type FinanceStatusHistory struct {
	ID          uuid.UUID
	RequestID   uuid.UUID
	FromStatus  *string
	ToStatus    string
	ChangedBy   uuid.UUID
	Observation string
	CriadoEm    time.Time
}

// AuditEntry registra uma ação administrativa para fins de auditoria.
type AuditEntry struct {
	ID         uuid.UUID
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Before     []byte
	After      []byte
	CriadoEm   time.Time
}
