package models

import "time"

type TaskStatus string
type TaskCategory string

// Valores de status e categoria usados no Firestore e na interface.
const (
	StatusTodo       TaskStatus = "TO-DO"
	StatusInProgress TaskStatus = "IN-PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"

	CategoryWork     TaskCategory = "WORK"
	CategoryPersonal TaskCategory = "PERSONAL"
)

var ValidStatuses = map[TaskStatus]bool{
	StatusTodo:       true,
	StatusInProgress: true,
	StatusCompleted:  true,
}

var ValidCategories = map[TaskCategory]bool{
	CategoryWork:     true,
	CategoryPersonal: true,
}

// Task representa uma tarefa do usuário. O documento completo reside no
// Firestore em users/{uid}/tasks/{id}; o cache local mantém a mesma forma.
type Task struct {
	ID        string       `json:"id" firestore:"id"`
	Title     string       `json:"title" firestore:"title"`
	DueDate   *time.Time   `json:"due_date,omitempty" firestore:"due_date,omitempty"`
	Status    TaskStatus   `json:"status" firestore:"status"`
	Category  TaskCategory `json:"category" firestore:"category"`
	ImageUrls []string     `json:"image_urls" firestore:"image_urls"`
	CreatedAt time.Time    `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" firestore:"updated_at"`
}

// Clone devolve uma cópia independente da tarefa, incluindo a lista de URLs.
func (t Task) Clone() Task {
	c := t
	if t.ImageUrls != nil {
		c.ImageUrls = append([]string(nil), t.ImageUrls...)
	}
	if t.DueDate != nil {
		due := *t.DueDate
		c.DueDate = &due
	}
	return c
}

type CreateTaskInput struct {
	Title    string       `json:"title"`
	DueDate  *time.Time   `json:"due_date"`
	Status   TaskStatus   `json:"status"`
	Category TaskCategory `json:"category"`
}

// UpdateTaskInput usa ponteiros para indicar quais campos atualizar.
// ImageUrls é preenchido pelo store depois de resolver os anexos; não deve
// vir do cliente.
type UpdateTaskInput struct {
	Title     *string       `json:"title"`
	DueDate   *time.Time    `json:"due_date"`
	Status    *TaskStatus   `json:"status"`
	Category  *TaskCategory `json:"category"`
	ImageUrls *[]string     `json:"-"`
}

// Empty informa se a atualização não altera campo algum.
func (u UpdateTaskInput) Empty() bool {
	return u.Title == nil && u.DueDate == nil && u.Status == nil &&
		u.Category == nil && u.ImageUrls == nil
}

// Valores aceitos em FilterSpec.
const (
	FilterAll      = "all"
	DueToday       = "today"
	DueTomorrow    = "tomorrow"
	DueThisWeek    = "this-week"
	SortAscending  = "asc"
	SortDescending = "desc"
)

// FilterSpec descreve o filtro/ordenação aplicado pela derivação de visão.
// É um valor puro e serializável; valores zero significam filtro desligado.
type FilterSpec struct {
	Category    string `json:"category"`
	DueDate     string `json:"due_date"`
	SearchQuery string `json:"search_query"`
	Sort        string `json:"sort"`
}

// ViewGroups é o resultado da derivação: as tarefas particionadas por status,
// na ordem de iteração do cache (ordem de inserção).
type ViewGroups struct {
	Todo       []Task `json:"TO-DO"`
	InProgress []Task `json:"IN-PROGRESS"`
	Completed  []Task `json:"COMPLETED"`
}
