package repo

import "errors"

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrStaleStatus indica que o guard condicional de status não casou:
	// o registro mudou entre a leitura e a escrita.
	ErrStaleStatus = errors.New("status desatualizado")
	// ErrDuplicate indica violação de chave única.
	ErrDuplicate = errors.New("registro duplicado")
)
