package taskstore

import (
	"sync"

	"kanban-scheduler/attachments"
	"kanban-scheduler/utilities"
)

// Manager mantém um Store por usuário autenticado. O provedor de identidade
// entrega um uid opaco e estável; quando ele some (sign-out), o store do
// usuário é encerrado e descartado.
type Manager struct {
	gateway Gateway
	anexos  *attachments.Manager

	mu     sync.Mutex
	stores map[string]*Store
}

func NewManager(gateway Gateway, anexos *attachments.Manager) *Manager {
	return &Manager{
		gateway: gateway,
		anexos:  anexos,
		stores:  make(map[string]*Store),
	}
}

// ForUser devolve o store do usuário, criando-o na primeira chamada.
// A carga inicial fica a cargo do chamador via Store.Load.
func (m *Manager) ForUser(uid string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[uid]; ok {
		return s
	}
	s := NewStore(uid, m.gateway, m.anexos)
	m.stores[uid] = s
	utilities.LogDebug("Store de tarefas criado para o usuário %s", uid)
	return s
}

// Drop encerra e descarta o store do usuário (sign-out): o cache é limpo e o
// uid antigo deixa de ser usado.
func (m *Manager) Drop(uid string) {
	m.mu.Lock()
	s, ok := m.stores[uid]
	delete(m.stores, uid)
	m.mu.Unlock()
	if ok {
		s.Close()
		utilities.LogInfo("Store de tarefas do usuário %s encerrado", uid)
	}
}
