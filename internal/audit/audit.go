// Package audit grava a trilha de auditoria em melhor esforço: a falha de
// um registro de auditoria nunca derruba a operação que o originou, mas
// sempre aparece no log estruturado.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/engrodrigo-prog/djt-quest/internal/repo"
)

// Sink é o destino durável das entradas de auditoria.
type Sink interface {
	Insert(ctx context.Context, entry repo.AuditEntry) error
}

// Dispatcher despacha entradas de auditoria fora do caminho crítico.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
}

// NewDispatcher cria o despachante sobre o sink informado.
func NewDispatcher(sink Sink) *Dispatcher {
	return &Dispatcher{sink: sink, timeout: 5 * time.Second}
}

// Append envia a entrada em uma goroutine própria; before/after são
// serializados como JSON. Erros são logados e descartados.
func (d *Dispatcher) Append(actorID uuid.UUID, action, entityType, entityID string, before, after any) {
	entry := repo.AuditEntry{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     marshalOrNil(before),
		After:      marshalOrNil(after),
	}

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Msg("audit: panic no despacho")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sink.Insert(ctx, entry); err != nil {
			log.Warn().Err(err).
				Str("action", action).
				Str("entity_type", entityType).
				Str("entity_id", entityID).
				Msg("audit: falha ao registrar entrada")
		}
	}()
}

func marshalOrNil(v any) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("audit: falha ao serializar payload")
		return nil
	}
	return data
}
