package dragdrop

import (
	"kanban-scheduler/models"
	"kanban-scheduler/utilities"
)

// StatusUpdater é o subconjunto do task store que o coordenador consome.
type StatusUpdater interface {
	Update(taskID string, updates models.UpdateTaskInput, newFiles []models.Attachment, removedUrls []string) (<-chan error, error)
}

// Coordinator traduz um gesto de arrastar-e-soltar em uma única atualização
// de status pelo mesmo caminho usado pela edição manual, para que as regras
// de consistência valham independente do gatilho.
type Coordinator struct {
	store StatusUpdater
}

func NewCoordinator(store StatusUpdater) *Coordinator {
	return &Coordinator{store: store}
}

// OnDrop encaminha a troca de status da tarefa arrastada. Soltar no mesmo
// grupo de origem é um no-op: nenhuma chamada ao store é emitida e o canal
// devolvido é nil.
func (c *Coordinator) OnDrop(taskID string, source, target models.TaskStatus) (<-chan error, error) {
	if source == target {
		utilities.LogDebug("Drop da tarefa %s no mesmo grupo %s ignorado", taskID, source)
		return nil, nil
	}
	if !models.ValidStatuses[target] {
		return nil, &models.ValidationError{Field: "status", Reason: "status inválido: " + string(target)}
	}

	st := target
	return c.store.Update(taskID, models.UpdateTaskInput{Status: &st}, nil, nil)
}
