package models

import (
	"errors"
	"fmt"
)

// ErrNotFound indica que o alvo da mutação não existe (no cache ou no remoto).
var ErrNotFound = errors.New("tarefa não encontrada")

// ValidationError é um erro de entrada detectado antes de qualquer chamada de
// rede: título vazio, arquivo grande demais, tipo de arquivo não permitido.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validação falhou em %s: %s", e.Field, e.Reason)
}

// StorageError representa uma falha transitória ou de backend reportada pelo
// gateway de persistência.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("erro de armazenamento em %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

type MutationOp string

const (
	OpCreate MutationOp = "create"
	OpUpdate MutationOp = "update"
	OpDelete MutationOp = "delete"
)

// MutationError é a falha tipada de uma mutação individual do store, com o
// motivo original inspecionável via errors.Is/As.
type MutationError struct {
	Op     MutationOp
	TaskID string
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("falha na operação %s da tarefa %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// BulkOutcome guarda o resultado individual de um id em uma operação em lote.
type BulkOutcome struct {
	TaskID string
	Err    error
}

// BulkReport reúne o resultado por id de um bulk-update ou bulk-delete.
// Cada id tem sucesso ou falha independente; nunca um booleano agregado.
type BulkReport struct {
	Op       MutationOp
	Outcomes []BulkOutcome
}

// Failed devolve apenas os ids que falharam.
func (r BulkReport) Failed() []BulkOutcome {
	var out []BulkOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Err devolve nil quando todos os ids tiveram sucesso; caso contrário um
// PartialFailureError com o relatório completo.
func (r BulkReport) Err() error {
	if len(r.Failed()) == 0 {
		return nil
	}
	return &PartialFailureError{Report: r}
}

// PartialFailureError sinaliza que parte dos ids de uma operação em lote
// falhou. O relatório por id fica acessível para o chamador.
type PartialFailureError struct {
	Report BulkReport
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("operação %s em lote com falhas parciais: %d de %d ids falharam",
		e.Report.Op, len(e.Report.Failed()), len(e.Report.Outcomes))
}
