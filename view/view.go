package view

import (
	"sort"
	"strings"
	"time"

	"kanban-scheduler/models"
)

// DeriveView aplica filtro e ordenação ao snapshot de tarefas e particiona o
// resultado por status. A função é pura: não modifica a entrada e pode ser
// recalculada à vontade sobre o mesmo snapshot.
func DeriveView(tasks []models.Task, filter models.FilterSpec) models.ViewGroups {
	return deriveViewAt(tasks, filter, time.Now())
}

// deriveViewAt recebe o instante de referência explicitamente, para que as
// janelas de data sejam determinísticas nos testes.
func deriveViewAt(tasks []models.Task, filter models.FilterSpec, now time.Time) models.ViewGroups {
	filtered := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if !matchesCategory(t, filter.Category) {
			continue
		}
		if !matchesDueDate(t, filter.DueDate, now) {
			continue
		}
		if !matchesSearch(t, filter.SearchQuery) {
			continue
		}
		filtered = append(filtered, t)
	}

	sortTasks(filtered, filter.Sort)

	groups := models.ViewGroups{
		Todo:       []models.Task{},
		InProgress: []models.Task{},
		Completed:  []models.Task{},
	}
	for _, t := range filtered {
		switch t.Status {
		case models.StatusTodo:
			groups.Todo = append(groups.Todo, t)
		case models.StatusInProgress:
			groups.InProgress = append(groups.InProgress, t)
		case models.StatusCompleted:
			groups.Completed = append(groups.Completed, t)
		}
	}
	return groups
}

// matchesCategory compara categoria de forma exata, sem diferenciar
// maiúsculas; "all" (ou vazio) desliga o filtro.
func matchesCategory(t models.Task, category string) bool {
	if category == "" || category == models.FilterAll {
		return true
	}
	return strings.EqualFold(string(t.Category), category)
}

// matchesDueDate aplica a janela de vencimento no fuso local:
// today/tomorrow comparam o dia-calendário; this-week é a semana corrente de
// domingo 00:00:00 a sábado 23:59:59, inclusive.
func matchesDueDate(t models.Task, window string, now time.Time) bool {
	if window == "" || window == models.FilterAll {
		return true
	}
	if t.DueDate == nil {
		return false
	}
	due := t.DueDate.Local()
	now = now.Local()

	switch window {
	case models.DueToday:
		return sameDay(due, now)
	case models.DueTomorrow:
		return sameDay(due, now.AddDate(0, 0, 1))
	case models.DueThisWeek:
		weekStart := startOfDay(now).AddDate(0, 0, -int(now.Weekday()))
		weekEnd := weekStart.AddDate(0, 0, 7)
		return !due.Before(weekStart) && due.Before(weekEnd)
	default:
		return true
	}
}

// matchesSearch faz busca por substring no título, sem diferenciar
// maiúsculas; consulta vazia desliga o filtro.
func matchesSearch(t models.Task, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), strings.ToLower(query))
}

// sortTasks ordena por data de vencimento quando pedido; empates quebram por
// data de criação ascendente e tarefas sem vencimento ficam ao final. Sem
// ordenação, a ordem de inserção do snapshot é preservada.
func sortTasks(tasks []models.Task, order string) {
	if order != models.SortAscending && order != models.SortDescending {
		return
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		case a.DueDate.Equal(*b.DueDate):
			return a.CreatedAt.Before(b.CreatedAt)
		case order == models.SortAscending:
			return a.DueDate.Before(*b.DueDate)
		default:
			return a.DueDate.After(*b.DueDate)
		}
	})
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
