package taskstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"kanban-scheduler/attachments"
	"kanban-scheduler/models"
	"kanban-scheduler/utilities"

	"github.com/google/uuid"
)

// ErrClosed indica que o store foi encerrado (usuário saiu) e não aceita
// mais operações.
var ErrClosed = errors.New("store encerrado")

// Gateway é o contrato de persistência de tarefas consumido pelo store.
// Todas as operações podem falhar de forma independente e nenhuma é
// repetida automaticamente pela camada de persistência.
type Gateway interface {
	CreateTask(ctx context.Context, uid string, task models.Task) error
	UpdateTask(ctx context.Context, uid, taskID string, updates models.UpdateTaskInput) error
	DeleteTask(ctx context.Context, uid, taskID string) error
	ListTasks(ctx context.Context, uid string) ([]models.Task, error)
}

// SyncState é a fase de sincronização de uma tarefa no cache.
type SyncState string

const (
	StatePending    SyncState = "pending"
	StateConfirmed  SyncState = "confirmed"
	StateUpdating   SyncState = "updating"
	StateDeleting   SyncState = "deleting"
	StateRolledBack SyncState = "rolled_back"
)

type entry struct {
	task  models.Task
	state SyncState
}

// Snapshot é a visão imutável do cache exposta aos observadores: as tarefas
// em ordem de inserção mais os flags de carga e de último erro.
type Snapshot struct {
	Tasks   []models.Task
	Loading bool
	Err     error
}

// Store é o cache autoritativo das tarefas de um usuário, com semântica
// otimista: toda mutação aparece no cache antes da confirmação remota e é
// revertida (exceto deleção) quando o gateway falha.
//
// Mutações sobre o mesmo id são serializadas em ordem de chegada; mutações
// sobre ids distintos correm em paralelo. As operações sempre correm até o
// fim mesmo que o chamador original já tenha desaparecido: o store é o dono
// durável do estado, a interface é só um observador efêmero.
type Store struct {
	uid     string
	gateway Gateway
	anexos  *attachments.Manager

	mu       sync.Mutex
	entries  map[string]*entry
	order    []string
	deleting map[string]bool
	inflight map[string]chan struct{}
	subs     map[int]chan Snapshot
	nextSub  int
	loading  bool
	loaded   bool
	lastErr  error
	closed   bool
}

func NewStore(uid string, gateway Gateway, anexos *attachments.Manager) *Store {
	return &Store{
		uid:      uid,
		gateway:  gateway,
		anexos:   anexos,
		entries:  make(map[string]*entry),
		order:    nil,
		deleting: make(map[string]bool),
		inflight: make(map[string]chan struct{}),
		subs:     make(map[int]chan Snapshot),
	}
}

// UID devolve o identificador do usuário dono deste store.
func (s *Store) UID() string { return s.uid }

// Load carrega o cache a partir do gateway. Chamadas repetidas depois de uma
// carga bem-sucedida são no-ops.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.mu.Unlock()
	s.notify()

	tasks, err := s.gateway.ListTasks(ctx, s.uid)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		s.notify()
		return err
	}
	for _, t := range tasks {
		if _, ok := s.entries[t.ID]; ok {
			continue
		}
		s.entries[t.ID] = &entry{task: t.Clone(), state: StateConfirmed}
		s.order = append(s.order, t.ID)
	}
	s.loaded = true
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
	return nil
}

// Snapshot devolve uma cópia do estado atual, segura para leitura repetida.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	tasks := make([]models.Task, 0, len(s.order))
	for _, id := range s.order {
		if e, ok := s.entries[id]; ok {
			tasks = append(tasks, e.task.Clone())
		}
	}
	return Snapshot{Tasks: tasks, Loading: s.loading, Err: s.lastErr}
}

// State expõe a fase de sincronização de uma tarefa, para inspeção e testes.
func (s *Store) State(taskID string) (SyncState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleting[taskID] {
		return StateDeleting, true
	}
	if e, ok := s.entries[taskID]; ok {
		return e.state, true
	}
	return "", false
}

// Subscribe registra um observador de snapshots. O canal recebe o estado a
// cada mudança; notificações são descartadas se o observador não acompanha.
// A função devolvida cancela a inscrição.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 8)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Close encerra o store no sign-out: limpa o cache e rejeita novas operações.
// Operações já em andamento correm até o fim, mas encontram o cache vazio.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.entries = make(map[string]*entry)
	s.order = nil
	s.deleting = make(map[string]bool)
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
}

// chainLocked encadeia uma nova operação na fila FIFO do id: devolve o fim da
// operação anterior (nil se não há nenhuma) e registra o fim desta.
func (s *Store) chainLocked(taskID string) (prev <-chan struct{}, opEnd chan struct{}) {
	prevCh := s.inflight[taskID]
	opEnd = make(chan struct{})
	s.inflight[taskID] = opEnd
	if prevCh != nil {
		prev = prevCh
	}
	return prev, opEnd
}

func (s *Store) finishOp(taskID string, opEnd chan struct{}) {
	close(opEnd)
	s.mu.Lock()
	if s.inflight[taskID] == opEnd {
		delete(s.inflight, taskID)
	}
	s.mu.Unlock()
}

func validateCreate(input *models.CreateTaskInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return &models.ValidationError{Field: "title", Reason: "título não pode ser vazio"}
	}
	if input.Status == "" {
		input.Status = models.StatusTodo
	}
	if !models.ValidStatuses[input.Status] {
		return &models.ValidationError{Field: "status", Reason: "status inválido: " + string(input.Status)}
	}
	if !models.ValidCategories[input.Category] {
		return &models.ValidationError{Field: "category", Reason: "categoria inválida: " + string(input.Category)}
	}
	return nil
}

func validateUpdate(updates models.UpdateTaskInput) error {
	if updates.Title != nil && strings.TrimSpace(*updates.Title) == "" {
		return &models.ValidationError{Field: "title", Reason: "título não pode ser vazio"}
	}
	if updates.Status != nil && !models.ValidStatuses[*updates.Status] {
		return &models.ValidationError{Field: "status", Reason: "status inválido: " + string(*updates.Status)}
	}
	if updates.Category != nil && !models.ValidCategories[*updates.Category] {
		return &models.ValidationError{Field: "category", Reason: "categoria inválida: " + string(*updates.Category)}
	}
	return nil
}

// Add insere a tarefa otimisticamente como Pending e dispara a criação remota
// (com upload dos anexos). Erros de validação voltam de forma síncrona; o
// desfecho da persistência chega pelo canal devolvido. Em caso de falha a
// entrada é removida do cache.
func (s *Store) Add(input models.CreateTaskInput, files []models.Attachment) (string, <-chan error, error) {
	if err := validateCreate(&input); err != nil {
		return "", nil, err
	}

	taskID := uuid.NewString()
	now := time.Now()
	task := models.Task{
		ID:        taskID,
		Title:     strings.TrimSpace(input.Title),
		DueDate:   input.DueDate,
		Status:    input.Status,
		Category:  input.Category,
		ImageUrls: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", nil, ErrClosed
	}
	s.entries[taskID] = &entry{task: task.Clone(), state: StatePending}
	s.order = append(s.order, taskID)
	_, opEnd := s.chainLocked(taskID)
	s.mu.Unlock()
	s.notify()

	done := make(chan error, 1)
	go s.runCreate(task, files, opEnd, done)
	return taskID, done, nil
}

func (s *Store) runCreate(task models.Task, files []models.Attachment, opEnd chan struct{}, done chan<- error) {
	defer s.finishOp(task.ID, opEnd)
	ctx := context.Background()

	if len(files) > 0 {
		results := s.anexos.UploadAll(ctx, s.uid, files)
		task.ImageUrls = append(task.ImageUrls, attachments.SucceededURLs(results)...)
	}

	err := s.gateway.CreateTask(ctx, s.uid, task)

	s.mu.Lock()
	if err != nil {
		s.removeLocked(task.ID)
		mErr := &models.MutationError{Op: models.OpCreate, TaskID: task.ID, Err: err}
		s.lastErr = mErr
		s.mu.Unlock()
		s.notify()
		utilities.LogError(err, "Falha ao criar tarefa "+task.ID)
		done <- mErr
		return
	}
	if e, ok := s.entries[task.ID]; ok {
		e.task.ImageUrls = append([]string(nil), task.ImageUrls...)
		e.state = StateConfirmed
	}
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
	utilities.LogDebug("Tarefa %s criada e confirmada", task.ID)
	done <- nil
}

// Update aplica a atualização parcial otimisticamente e dispara a
// reconciliação remota, coordenada com o ciclo de vida dos anexos. Em caso de
// falha o snapshot pré-atualização é restaurado e a entrada fica RolledBack.
func (s *Store) Update(taskID string, updates models.UpdateTaskInput, newFiles []models.Attachment, removedUrls []string) (<-chan error, error) {
	if err := validateUpdate(updates); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := s.entries[taskID]; !ok {
		s.mu.Unlock()
		return nil, models.ErrNotFound
	}
	prev, opEnd := s.chainLocked(taskID)
	var before models.Task
	applied := prev == nil
	if applied {
		before = s.applyOptimisticLocked(taskID, updates, removedUrls)
	}
	s.mu.Unlock()
	if applied {
		s.notify()
	}

	done := make(chan error, 1)
	go s.runUpdate(taskID, updates, newFiles, removedUrls, before, applied, prev, opEnd, done)
	return done, nil
}

// applyOptimisticLocked grava os campos no cache e devolve o snapshot
// anterior para eventual rollback. URLs removidas saem imediatamente da
// visão; novas URLs só entram após o upload confirmar.
func (s *Store) applyOptimisticLocked(taskID string, updates models.UpdateTaskInput, removedUrls []string) models.Task {
	e := s.entries[taskID]
	before := e.task.Clone()
	if updates.Title != nil {
		e.task.Title = strings.TrimSpace(*updates.Title)
	}
	if updates.DueDate != nil {
		due := *updates.DueDate
		e.task.DueDate = &due
	}
	if updates.Status != nil {
		e.task.Status = *updates.Status
	}
	if updates.Category != nil {
		e.task.Category = *updates.Category
	}
	if len(removedUrls) > 0 {
		e.task.ImageUrls = attachments.MergeImageURLs(e.task.ImageUrls, removedUrls, nil)
	}
	e.task.UpdatedAt = time.Now()
	e.state = StateUpdating
	return before
}

func (s *Store) runUpdate(taskID string, updates models.UpdateTaskInput, newFiles []models.Attachment, removedUrls []string, before models.Task, applied bool, prev <-chan struct{}, opEnd chan struct{}, done chan<- error) {
	defer s.finishOp(taskID, opEnd)
	ctx := context.Background()

	if !applied {
		<-prev
		s.mu.Lock()
		if _, ok := s.entries[taskID]; !ok {
			s.mu.Unlock()
			done <- &models.MutationError{Op: models.OpUpdate, TaskID: taskID, Err: models.ErrNotFound}
			return
		}
		before = s.applyOptimisticLocked(taskID, updates, removedUrls)
		s.mu.Unlock()
		s.notify()
	}

	var added []string
	if len(newFiles) > 0 {
		results := s.anexos.UploadAll(ctx, s.uid, newFiles)
		added = attachments.SucceededURLs(results)
	}

	// URLs finais = (existentes − removidas) ∪ novas
	var merged []string
	if len(newFiles) > 0 || len(removedUrls) > 0 {
		merged = attachments.MergeImageURLs(before.ImageUrls, removedUrls, added)
		updates.ImageUrls = &merged
	}

	err := s.gateway.UpdateTask(ctx, s.uid, taskID, updates)

	s.mu.Lock()
	if err != nil {
		if e, ok := s.entries[taskID]; ok {
			e.task = before
			e.state = StateRolledBack
		}
		mErr := &models.MutationError{Op: models.OpUpdate, TaskID: taskID, Err: err}
		s.lastErr = mErr
		s.mu.Unlock()
		s.notify()
		utilities.LogError(err, "Falha ao atualizar tarefa "+taskID)
		done <- mErr
		return
	}
	if e, ok := s.entries[taskID]; ok {
		if updates.ImageUrls != nil {
			e.task.ImageUrls = append([]string(nil), merged...)
		}
		e.task.UpdatedAt = time.Now()
		e.state = StateConfirmed
	}
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()

	// Anexos removidos só são apagados depois que o documento foi atualizado
	// com sucesso; uma queda no meio deixa objetos órfãos, nunca uma tarefa
	// apontando para anexo inexistente.
	if len(removedUrls) > 0 {
		s.anexos.DeleteAll(ctx, removedUrls)
	}
	done <- nil
}

// Delete remove a tarefa do cache imediatamente e dispara a deleção remota
// com limpeza dos anexos. Falha remota é reportada mas a entrada NÃO é
// restaurada: deleção é definitiva do ponto de vista do usuário.
func (s *Store) Delete(taskID string) (<-chan error, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := s.entries[taskID]; !ok {
		s.mu.Unlock()
		return nil, models.ErrNotFound
	}
	prev, opEnd := s.chainLocked(taskID)
	var urls []string
	applied := prev == nil
	if applied {
		urls = s.removeLocked(taskID)
		s.deleting[taskID] = true
	}
	s.mu.Unlock()
	if applied {
		s.notify()
	}

	done := make(chan error, 1)
	go s.runDelete(taskID, urls, applied, prev, opEnd, done)
	return done, nil
}

// removeLocked tira a entrada do cache e devolve as URLs de anexos dela.
func (s *Store) removeLocked(taskID string) []string {
	var urls []string
	if e, ok := s.entries[taskID]; ok {
		urls = append([]string(nil), e.task.ImageUrls...)
		delete(s.entries, taskID)
	}
	for i, id := range s.order {
		if id == taskID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return urls
}

func (s *Store) runDelete(taskID string, urls []string, applied bool, prev <-chan struct{}, opEnd chan struct{}, done chan<- error) {
	defer s.finishOp(taskID, opEnd)
	ctx := context.Background()

	if !applied {
		<-prev
		s.mu.Lock()
		if _, ok := s.entries[taskID]; !ok {
			s.mu.Unlock()
			done <- &models.MutationError{Op: models.OpDelete, TaskID: taskID, Err: models.ErrNotFound}
			return
		}
		urls = s.removeLocked(taskID)
		s.deleting[taskID] = true
		s.mu.Unlock()
		s.notify()
	}

	err := s.gateway.DeleteTask(ctx, s.uid, taskID)

	s.mu.Lock()
	delete(s.deleting, taskID)
	if err != nil {
		mErr := &models.MutationError{Op: models.OpDelete, TaskID: taskID, Err: err}
		s.lastErr = mErr
		s.mu.Unlock()
		s.notify()
		utilities.LogError(err, "Falha ao deletar tarefa "+taskID)
		done <- mErr
		return
	}
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()

	if len(urls) > 0 {
		s.anexos.DeleteAll(ctx, urls)
	}
	done <- nil
}

// BulkUpdate aplica a mesma atualização parcial a todos os ids, de forma
// atômica no cache (ou todos os ids são válidos ou nada é aplicado), e emite
// uma chamada remota concorrente por id. Cada id tem rollback e desfecho
// independentes, reunidos no relatório final.
func (s *Store) BulkUpdate(taskIDs []string, updates models.UpdateTaskInput) (<-chan models.BulkReport, error) {
	if err := validateUpdate(updates); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	for _, id := range taskIDs {
		if _, ok := s.entries[id]; !ok {
			s.mu.Unlock()
			return nil, models.ErrNotFound
		}
	}

	prevs := make([]<-chan struct{}, len(taskIDs))
	opEnds := make([]chan struct{}, len(taskIDs))
	befores := make([]models.Task, len(taskIDs))
	applieds := make([]bool, len(taskIDs))
	for i, id := range taskIDs {
		prevs[i], opEnds[i] = s.chainLocked(id)
		if prevs[i] == nil {
			befores[i] = s.applyOptimisticLocked(id, updates, nil)
			applieds[i] = true
		}
	}
	s.mu.Unlock()
	s.notify()

	dones := make([]chan error, len(taskIDs))
	for i, id := range taskIDs {
		dones[i] = make(chan error, 1)
		go s.runUpdate(id, updates, nil, nil, befores[i], applieds[i], prevs[i], opEnds[i], dones[i])
	}

	report := make(chan models.BulkReport, 1)
	go func() {
		out := models.BulkReport{Op: models.OpUpdate, Outcomes: make([]models.BulkOutcome, len(taskIDs))}
		for i, id := range taskIDs {
			out.Outcomes[i] = models.BulkOutcome{TaskID: id, Err: <-dones[i]}
		}
		report <- out
	}()
	return report, nil
}

// BulkDelete remove todos os ids do cache de uma vez e emite uma deleção
// remota concorrente por id, com desfecho independente por id. Como na
// deleção simples, falhas são reportadas mas nada é restaurado.
func (s *Store) BulkDelete(taskIDs []string) (<-chan models.BulkReport, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	for _, id := range taskIDs {
		if _, ok := s.entries[id]; !ok {
			s.mu.Unlock()
			return nil, models.ErrNotFound
		}
	}

	prevs := make([]<-chan struct{}, len(taskIDs))
	opEnds := make([]chan struct{}, len(taskIDs))
	urls := make([][]string, len(taskIDs))
	applieds := make([]bool, len(taskIDs))
	for i, id := range taskIDs {
		prevs[i], opEnds[i] = s.chainLocked(id)
		if prevs[i] == nil {
			urls[i] = s.removeLocked(id)
			s.deleting[id] = true
			applieds[i] = true
		}
	}
	s.mu.Unlock()
	s.notify()

	dones := make([]chan error, len(taskIDs))
	for i, id := range taskIDs {
		dones[i] = make(chan error, 1)
		go s.runDelete(id, urls[i], applieds[i], prevs[i], opEnds[i], dones[i])
	}

	report := make(chan models.BulkReport, 1)
	go func() {
		out := models.BulkReport{Op: models.OpDelete, Outcomes: make([]models.BulkOutcome, len(taskIDs))}
		for i, id := range taskIDs {
			out.Outcomes[i] = models.BulkOutcome{TaskID: id, Err: <-dones[i]}
		}
		report <- out
	}()
	return report, nil
}
