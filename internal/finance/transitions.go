// Package finance implementa as solicitações financeiras: criação com
// validação por tipo, cancelamento pelo solicitante e triagem
// administrativa com máquina de estados explícita.
package finance

// Status do ciclo de vida de uma solicitação financeira. Os literais são
// exibidos ao usuário e gravados como estão.
const (
	StatusEnviado   = "Enviado"
	StatusEmAnalise = "Em análise"
	StatusAprovado  = "Aprovado"
	StatusReprovado = "Reprovado"
	StatusPago      = "Pago"
	StatusCancelado = "Cancelado"
)

// Tipos de solicitação aceitos.
const (
	KindReembolso    = "Reembolso"
	KindAdiantamento = "Adiantamento"
)

// adminTransitions mapeia cada status de origem para os destinos que a
// triagem pode aplicar. Cancelado fica fora do grafo: só o solicitante
// cancela, e só a partir de Enviado.
var adminTransitions = map[string]map[string]bool{
	StatusEnviado: {
		StatusEmAnalise: true,
		StatusAprovado:  true,
		StatusReprovado: true,
		StatusPago:      true,
	},
	StatusEmAnalise: {
		StatusAprovado:  true,
		StatusReprovado: true,
		StatusPago:      true,
	},
	StatusAprovado: {
		StatusEmAnalise: true,
		StatusReprovado: true,
		StatusPago:      true,
	},
	StatusReprovado: {
		StatusEmAnalise: true,
		StatusAprovado:  true,
		StatusPago:      true,
	},
	StatusPago: {
		StatusEmAnalise: true,
		StatusAprovado:  true,
		StatusReprovado: true,
	},
	StatusCancelado: {},
}

// ValidStatus informa se o literal é um status conhecido.
func ValidStatus(status string) bool {
	_, ok := adminTransitions[status]
	return ok
}

// CanTransition informa se a triagem pode mover a solicitação de from
// para to.
func CanTransition(from, to string) bool {
	return adminTransitions[from][to]
}

// ValidKind informa se o tipo de solicitação é conhecido.
func ValidKind(kind string) bool {
	return kind == KindReembolso || kind == KindAdiantamento
}
