package taskstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"kanban-scheduler/attachments"
	"kanban-scheduler/models"
	"kanban-scheduler/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway simula o gateway de persistência com falhas e bloqueios
// controláveis por id.
type fakeGateway struct {
	mu         sync.Mutex
	created    []models.Task
	updates    []models.UpdateTaskInput
	updateIDs  []string
	deleted    []string
	failCreate map[string]error
	failUpdate map[string]error
	failDelete map[string]error
	listResult []models.Task
	createGate chan struct{}
	updateGate chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		failCreate: make(map[string]error),
		failUpdate: make(map[string]error),
		failDelete: make(map[string]error),
	}
}

func (g *fakeGateway) CreateTask(_ context.Context, _ string, task models.Task) error {
	if g.createGate != nil {
		<-g.createGate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failCreate[task.ID]; err != nil {
		return err
	}
	g.created = append(g.created, task)
	return nil
}

func (g *fakeGateway) UpdateTask(_ context.Context, _ string, taskID string, updates models.UpdateTaskInput) error {
	if g.updateGate != nil {
		<-g.updateGate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failUpdate[taskID]; err != nil {
		return err
	}
	g.updateIDs = append(g.updateIDs, taskID)
	g.updates = append(g.updates, updates)
	return nil
}

func (g *fakeGateway) DeleteTask(_ context.Context, _ string, taskID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failDelete[taskID]; err != nil {
		return err
	}
	g.deleted = append(g.deleted, taskID)
	return nil
}

func (g *fakeGateway) ListTasks(_ context.Context, _ string) ([]models.Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listResult, nil
}

func (g *fakeGateway) updateCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.updateIDs)
}

// fakeStorage simula o armazenamento de objetos para o gerenciador de anexos.
type fakeStorage struct {
	mu       sync.Mutex
	uploads  []string
	deletes  []string
	failFile map[string]error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{failFile: make(map[string]error)}
}

func (s *fakeStorage) UploadAttachment(_ context.Context, _ string, file models.Attachment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFile[file.Filename]; err != nil {
		return "", err
	}
	url := "https://storage.test/" + file.Filename
	s.uploads = append(s.uploads, url)
	return url, nil
}

func (s *fakeStorage) DeleteAttachment(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, url)
	return nil
}

func (s *fakeStorage) deletedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

func newTestStore(t *testing.T, gw *fakeGateway, st *fakeStorage) *Store {
	t.Helper()
	store := NewStore("user-1", gw, attachments.NewManager(st))
	require.NoError(t, store.Load(context.Background()))
	return store
}

func seedTask(id, title string, status models.TaskStatus) models.Task {
	return models.Task{
		ID:        id,
		Title:     title,
		Status:    status,
		Category:  models.CategoryWork,
		ImageUrls: []string{},
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now().Add(-time.Hour),
	}
}

func waitErrCh(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timeout esperando o desfecho da operação")
		return nil
	}
}

func waitReport(t *testing.T, ch <-chan models.BulkReport) models.BulkReport {
	t.Helper()
	select {
	case report := <-ch:
		return report
	case <-time.After(2 * time.Second):
		t.Fatal("timeout esperando o relatório da operação em lote")
		return models.BulkReport{}
	}
}

func TestAddVisivelAntesDaConfirmacao(t *testing.T) {
	gw := newFakeGateway()
	gw.createGate = make(chan struct{})
	store := newTestStore(t, gw, newFakeStorage())

	taskID, done, err := store.Add(models.CreateTaskInput{
		Title:    "Write report",
		Category: models.CategoryWork,
	}, nil)
	require.NoError(t, err)

	// Antes da persistência resolver, a tarefa já aparece na visão derivada
	snap := store.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "Write report", snap.Tasks[0].Title)

	state, ok := store.State(taskID)
	require.True(t, ok)
	assert.Equal(t, StatePending, state)

	groups := view.DeriveView(snap.Tasks, models.FilterSpec{})
	require.Len(t, groups.Todo, 1)
	assert.Equal(t, taskID, groups.Todo[0].ID)

	close(gw.createGate)
	require.NoError(t, waitErrCh(t, done))

	state, ok = store.State(taskID)
	require.True(t, ok)
	assert.Equal(t, StateConfirmed, state)
}

func TestAddFalhaRemoveDoCache(t *testing.T) {
	gw := newFakeGateway()
	gw.createGate = make(chan struct{})
	store := newTestStore(t, gw, newFakeStorage())

	taskID, done, err := store.Add(models.CreateTaskInput{
		Title:    "Vai falhar",
		Category: models.CategoryPersonal,
	}, nil)
	require.NoError(t, err)

	// O id só existe depois do Add; registra a falha antes de liberar a chamada
	gw.mu.Lock()
	gw.failCreate[taskID] = &models.StorageError{Op: "createTask", Err: errors.New("backend indisponível")}
	gw.mu.Unlock()
	close(gw.createGate)

	err = waitErrCh(t, done)
	require.Error(t, err)

	var mErr *models.MutationError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, models.OpCreate, mErr.Op)
	assert.Equal(t, taskID, mErr.TaskID)

	snap := store.Snapshot()
	assert.Empty(t, snap.Tasks)
	assert.Error(t, snap.Err)
	_, ok := store.State(taskID)
	assert.False(t, ok)
}

func TestAddTituloVazioFalhaSemChamarGateway(t *testing.T) {
	gw := newFakeGateway()
	store := newTestStore(t, gw, newFakeStorage())

	_, _, err := store.Add(models.CreateTaskInput{Title: "   ", Category: models.CategoryWork}, nil)
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "title", vErr.Field)

	assert.Empty(t, store.Snapshot().Tasks)
	assert.Empty(t, gw.created)
}

func TestUpdateOtimistaComRollback(t *testing.T) {
	gw := newFakeGateway()
	gw.listResult = []models.Task{seedTask("t1", "Original", models.StatusTodo)}
	gw.failUpdate["t1"] = &models.StorageError{Op: "updateTask", Err: errors.New("timeout")}
	store := newTestStore(t, gw, newFakeStorage())

	title := "Editado"
	done, err := store.Update("t1", models.UpdateTaskInput{Title: &title}, nil, nil)
	require.NoError(t, err)

	// Aplicação otimista visível de imediato
	assert.Equal(t, "Editado", store.Snapshot().Tasks[0].Title)

	err = waitErrCh(t, done)
	var mErr *models.MutationError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, models.OpUpdate, mErr.Op)

	// Snapshot pré-atualização restaurado
	assert.Equal(t, "Original", store.Snapshot().Tasks[0].Title)
	state, ok := store.State("t1")
	require.True(t, ok)
	assert.Equal(t, StateRolledBack, state)
}

func TestUpdateInexistente(t *testing.T) {
	store := newTestStore(t, newFakeGateway(), newFakeStorage())

	title := "Qualquer"
	_, err := store.Update("nao-existe", models.UpdateTaskInput{Title: &title}, nil, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteNaoRestauraAposFalha(t *testing.T) {
	gw := newFakeGateway()
	gw.listResult = []models.Task{seedTask("t1", "Para excluir", models.StatusTodo)}
	gw.failDelete["t1"] = &models.StorageError{Op: "deleteTask", Err: errors.New("backend indisponível")}
	store := newTestStore(t, gw, newFakeStorage())

	done, err := store.Delete("t1")
	require.NoError(t, err)

	// Removida do cache imediatamente
	assert.Empty(t, store.Snapshot().Tasks)

	err = waitErrCh(t, done)
	var mErr *models.MutationError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, models.OpDelete, mErr.Op)

	// A falha é reportada, mas a tarefa não ressuscita
	assert.Empty(t, store.Snapshot().Tasks)
	_, ok := store.State("t1")
	assert.False(t, ok)
}

func TestDeleteLimpaAnexosAposConfirmacao(t *testing.T) {
	gw := newFakeGateway()
	task := seedTask("t1", "Com anexos", models.StatusCompleted)
	task.ImageUrls = []string{"https://storage.test/a.png", "https://storage.test/b.png"}
	gw.listResult = []models.Task{task}
	storage := newFakeStorage()
	store := newTestStore(t, gw, storage)

	done, err := store.Delete("t1")
	require.NoError(t, err)
	require.NoError(t, waitErrCh(t, done))

	assert.ElementsMatch(t, task.ImageUrls, storage.deletedURLs())
}

func TestBulkUpdateFalhasIndependentesPorID(t *testing.T) {
	gw := newFakeGateway()
	gw.listResult = []models.Task{
		seedTask("t1", "Um", models.StatusTodo),
		seedTask("t2", "Dois", models.StatusTodo),
		seedTask("t3", "Três", models.StatusTodo),
	}
	gw.failUpdate["t2"] = &models.StorageError{Op: "updateTask", Err: errors.New("conflito")}
	store := newTestStore(t, gw, newFakeStorage())

	completed := models.StatusCompleted
	reportCh, err := store.BulkUpdate([]string{"t1", "t2", "t3"}, models.UpdateTaskInput{Status: &completed})
	require.NoError(t, err)

	report := waitReport(t, reportCh)
	require.Len(t, report.Outcomes, 3)
	assert.NoError(t, report.Outcomes[0].Err)
	assert.Error(t, report.Outcomes[1].Err)
	assert.NoError(t, report.Outcomes[2].Err)

	var pErr *models.PartialFailureError
	require.ErrorAs(t, report.Err(), &pErr)
	assert.Len(t, pErr.Report.Failed(), 1)

	// O estado final de cada id corresponde exatamente ao desfecho da sua
	// própria chamada, sem contaminação entre ids
	byID := map[string]models.Task{}
	for _, task := range store.Snapshot().Tasks {
		byID[task.ID] = task
	}
	assert.Equal(t, models.StatusCompleted, byID["t1"].Status)
	assert.Equal(t, models.StatusTodo, byID["t2"].Status)
	assert.Equal(t, models.StatusCompleted, byID["t3"].Status)

	state, _ := store.State("t2")
	assert.Equal(t, StateRolledBack, state)
}

func TestBulkDeleteFalhasIndependentesPorID(t *testing.T) {
	gw := newFakeGateway()
	gw.listResult = []models.Task{
		seedTask("t1", "Um", models.StatusTodo),
		seedTask("t2", "Dois", models.StatusTodo),
	}
	gw.failDelete["t2"] = &models.StorageError{Op: "deleteTask", Err: errors.New("backend indisponível")}
	store := newTestStore(t, gw, newFakeStorage())

	reportCh, err := store.BulkDelete([]string{"t1", "t2"})
	require.NoError(t, err)

	report := waitReport(t, reportCh)
	require.Len(t, report.Outcomes, 2)
	assert.NoError(t, report.Outcomes[0].Err)
	assert.Error(t, report.Outcomes[1].Err)

	// Deleção não restaura nem no caminho em lote
	assert.Empty(t, store.Snapshot().Tasks)
}

func TestBulkUpdateIDDesconhecidoRejeitaTudo(t *testing.T) {
	gw := newFakeGateway()
	gw.listResult = []models.Task{seedTask("t1", "Um", models.StatusTodo)}
	store := newTestStore(t, gw, newFakeStorage())

	completed := models.StatusCompleted
	_, err := store.BulkUpdate([]string{"t1", "fantasma"}, models.UpdateTaskInput{Status: &completed})
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Nada foi aplicado no cache
	assert.Equal(t, models.StatusTodo, store.Snapshot().Tasks[0].Status)
}

func TestMutacoesNoMesmoIDSaoSerializadas(t *testing.T) {
	gw := newFakeGateway()
	gw.listResult = []models.Task{seedTask("t1", "Original", models.StatusTodo)}
	gw.updateGate = make(chan struct{})
	store := newTestStore(t, gw, newFakeStorage())

	first := "Primeira"
	done1, err := store.Update("t1", models.UpdateTaskInput{Title: &first}, nil, nil)
	require.NoError(t, err)

	second := "Segunda"
	done2, err := store.Update("t1", models.UpdateTaskInput{Title: &second}, nil, nil)
	require.NoError(t, err)

	// Enquanto a primeira está em voo, nenhuma chegou ao gateway e a segunda
	// ainda não sobrescreveu a aplicação otimista da primeira
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, gw.updateCount())
	assert.Equal(t, "Primeira", store.Snapshot().Tasks[0].Title)

	close(gw.updateGate)
	require.NoError(t, waitErrCh(t, done1))
	require.NoError(t, waitErrCh(t, done2))

	// As chamadas chegaram ao gateway na ordem de emissão
	gw.mu.Lock()
	require.Len(t, gw.updates, 2)
	assert.Equal(t, "Primeira", *gw.updates[0].Title)
	assert.Equal(t, "Segunda", *gw.updates[1].Title)
	gw.mu.Unlock()

	assert.Equal(t, "Segunda", store.Snapshot().Tasks[0].Title)
}

func TestCenarioBulkUpdateMoveParaCompleted(t *testing.T) {
	gw := newFakeGateway()
	store := newTestStore(t, gw, newFakeStorage())

	taskID, done, err := store.Add(models.CreateTaskInput{
		Title:    "Write report",
		Status:   models.StatusTodo,
		Category: models.CategoryWork,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, waitErrCh(t, done))

	completed := models.StatusCompleted
	reportCh, err := store.BulkUpdate([]string{taskID}, models.UpdateTaskInput{Status: &completed})
	require.NoError(t, err)
	report := waitReport(t, reportCh)
	require.NoError(t, report.Err())

	groups := view.DeriveView(store.Snapshot().Tasks, models.FilterSpec{})
	assert.Empty(t, groups.Todo)
	require.Len(t, groups.Completed, 1)
	assert.Equal(t, taskID, groups.Completed[0].ID)
}

func TestUpdateComArquivoGrandeMantemAtualizacaoDosCampos(t *testing.T) {
	gw := newFakeGateway()
	gw.listResult = []models.Task{seedTask("t1", "Original", models.StatusTodo)}
	storage := newFakeStorage()
	storage.failFile["gigante.png"] = &models.ValidationError{Field: "file", Reason: "arquivo gigante.png excede o limite de 5MB"}
	store := newTestStore(t, gw, storage)

	title := "Editado"
	bigFile := models.Attachment{Filename: "gigante.png", ContentType: "image/png"}
	done, err := store.Update("t1", models.UpdateTaskInput{Title: &title}, []models.Attachment{bigFile}, nil)
	require.NoError(t, err)

	// O upload é rejeitado por validação, mas a atualização dos campos segue
	require.NoError(t, waitErrCh(t, done))

	task := store.Snapshot().Tasks[0]
	assert.Equal(t, "Editado", task.Title)
	assert.Empty(t, task.ImageUrls)
}

func TestUpdateMesclaAnexosERemoveDepoisDoCommit(t *testing.T) {
	gw := newFakeGateway()
	task := seedTask("t1", "Com anexos", models.StatusTodo)
	task.ImageUrls = []string{"https://storage.test/velha.png", "https://storage.test/fica.png"}
	gw.listResult = []models.Task{task}
	storage := newFakeStorage()
	store := newTestStore(t, gw, storage)

	newFile := models.Attachment{Filename: "nova.png", ContentType: "image/png", Data: []byte("img")}
	done, err := store.Update("t1", models.UpdateTaskInput{},
		[]models.Attachment{newFile}, []string{"https://storage.test/velha.png"})
	require.NoError(t, err)
	require.NoError(t, waitErrCh(t, done))

	// URLs finais = (existentes − removidas) ∪ novas, na ordem
	gw.mu.Lock()
	require.Len(t, gw.updates, 1)
	require.NotNil(t, gw.updates[0].ImageUrls)
	assert.Equal(t, []string{"https://storage.test/fica.png", "https://storage.test/nova.png"}, *gw.updates[0].ImageUrls)
	gw.mu.Unlock()

	assert.Equal(t, []string{"https://storage.test/fica.png", "https://storage.test/nova.png"},
		store.Snapshot().Tasks[0].ImageUrls)
	assert.Equal(t, []string{"https://storage.test/velha.png"}, storage.deletedURLs())
}

func TestSubscribeRecebeMudancas(t *testing.T) {
	gw := newFakeGateway()
	store := newTestStore(t, gw, newFakeStorage())

	ch, cancel := store.Subscribe()
	defer cancel()

	_, done, err := store.Add(models.CreateTaskInput{Title: "Nova", Category: models.CategoryWork}, nil)
	require.NoError(t, err)
	require.NoError(t, waitErrCh(t, done))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if len(snap.Tasks) == 1 && snap.Tasks[0].Title == "Nova" {
				return
			}
		case <-deadline:
			t.Fatal("observador não recebeu o snapshot com a nova tarefa")
		}
	}
}

func TestSignOutLimpaCacheERejeitaOperacoes(t *testing.T) {
	gw := newFakeGateway()
	gw.listResult = []models.Task{seedTask("t1", "Um", models.StatusTodo)}
	manager := NewManager(gw, attachments.NewManager(newFakeStorage()))

	store := manager.ForUser("user-1")
	require.NoError(t, store.Load(context.Background()))
	require.Len(t, store.Snapshot().Tasks, 1)

	manager.Drop("user-1")

	assert.Empty(t, store.Snapshot().Tasks)
	_, _, err := store.Add(models.CreateTaskInput{Title: "Depois do logout", Category: models.CategoryWork}, nil)
	assert.ErrorIs(t, err, ErrClosed)

	// Um novo login cria um store novo, vazio até a próxima carga
	fresh := manager.ForUser("user-1")
	assert.NotSame(t, store, fresh)
}

func TestOperacoesEmIDsDistintosCorremEmParalelo(t *testing.T) {
	gw := newFakeGateway()
	gw.listResult = []models.Task{
		seedTask("t1", "Um", models.StatusTodo),
		seedTask("t2", "Dois", models.StatusTodo),
	}
	store := newTestStore(t, gw, newFakeStorage())

	var dones []<-chan error
	for i, id := range []string{"t1", "t2"} {
		title := fmt.Sprintf("Título %d", i)
		done, err := store.Update(id, models.UpdateTaskInput{Title: &title}, nil, nil)
		require.NoError(t, err)
		dones = append(dones, done)
	}
	for _, done := range dones {
		require.NoError(t, waitErrCh(t, done))
	}
	assert.Equal(t, 2, gw.updateCount())
}
