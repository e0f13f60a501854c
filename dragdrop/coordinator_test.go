package dragdrop

import (
	"testing"

	"kanban-scheduler/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spyUpdater struct {
	calls   []models.UpdateTaskInput
	taskIDs []string
}

func (s *spyUpdater) Update(taskID string, updates models.UpdateTaskInput, newFiles []models.Attachment, removedUrls []string) (<-chan error, error) {
	s.calls = append(s.calls, updates)
	s.taskIDs = append(s.taskIDs, taskID)
	done := make(chan error, 1)
	done <- nil
	return done, nil
}

func TestOnDropMesmoStatusNaoChamaStore(t *testing.T) {
	spy := &spyUpdater{}
	coordinator := NewCoordinator(spy)

	done, err := coordinator.OnDrop("t1", models.StatusTodo, models.StatusTodo)
	require.NoError(t, err)
	assert.Nil(t, done)
	assert.Empty(t, spy.calls)
}

func TestOnDropEncaminhaTrocaDeStatus(t *testing.T) {
	spy := &spyUpdater{}
	coordinator := NewCoordinator(spy)

	done, err := coordinator.OnDrop("t1", models.StatusTodo, models.StatusInProgress)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.NoError(t, <-done)

	require.Len(t, spy.calls, 1)
	assert.Equal(t, "t1", spy.taskIDs[0])
	require.NotNil(t, spy.calls[0].Status)
	assert.Equal(t, models.StatusInProgress, *spy.calls[0].Status)

	// Só o status muda: nenhum outro campo é tocado
	assert.Nil(t, spy.calls[0].Title)
	assert.Nil(t, spy.calls[0].DueDate)
	assert.Nil(t, spy.calls[0].Category)
}

func TestOnDropStatusInvalido(t *testing.T) {
	spy := &spyUpdater{}
	coordinator := NewCoordinator(spy)

	_, err := coordinator.OnDrop("t1", models.StatusTodo, models.TaskStatus("DONE"))
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, spy.calls)
}
