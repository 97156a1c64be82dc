// Package apperr define a taxonomia de erros do portal: cada rejeição
// carrega um tipo estável verificável por máquina e uma mensagem legível.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifica a falha.
type Kind int

const (
	// KindValidation indica entrada malformada ou ausente (sem efeitos colaterais).
	KindValidation Kind = iota
	// KindAuthentication indica ausência de identidade verificável.
	KindAuthentication
	// KindAuthorization indica ator identificado sem escopo/papel suficiente.
	KindAuthorization
	// KindNotFound indica entidade ausente ou já em estado terminal.
	KindNotFound
	// KindConflict indica duplicidade (conta/cadastro) ou estado desatualizado.
	KindConflict
	// KindDependency indica falha em colaborador externo (IdP, banco).
	KindDependency
	// KindInternal cobre o restante.
	KindInternal
)

// FieldError aponta um campo inválido no payload.
type FieldError struct {
	Field   string `json:"campo"`
	Message string `json:"mensagem"`
}

// Error é o erro padrão das operações do portal.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation cria erro de validação com os campos rejeitados.
func Validation(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Unauthenticated cria erro de autenticação.
func Unauthenticated(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

// Forbidden cria erro de autorização.
func Forbidden(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// NotFound cria erro de entidade ausente ou terminal.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict cria erro de duplicidade/estado desatualizado.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Dependency embrulha falha de colaborador externo.
func Dependency(message string, err error) *Error {
	return &Error{Kind: KindDependency, Message: message, Err: err}
}

// Internal embrulha falha inesperada.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "erro interno", Err: err}
}

// KindOf extrai o tipo de um erro qualquer (KindInternal quando não for *Error).
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus mapeia o tipo para o status HTTP correspondente.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code devolve o código estável usado no envelope de erro.
func Code(kind Kind) string {
	switch kind {
	case KindValidation:
		return "VALIDATION"
	case KindAuthentication:
		return "AUTH"
	case KindAuthorization:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindDependency:
		return "DEPENDENCY"
	default:
		return "INTERNAL"
	}
}
