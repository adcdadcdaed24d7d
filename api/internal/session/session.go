package session

import (
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Stage string

const (
	// StageAwaitingAmount пишется после извлечения кандидатов; как условие
	// перехода нигде не проверяется — новое фото молча перезаписывает сессию.
	StageAwaitingAmount Stage = "awaiting_amount"
	StageAwaitingPeople Stage = "awaiting_people"
)

// State — снимок сессии наружу, без таймстампа.
type State struct {
	Stage          Stage
	SelectedAmount decimal.Decimal
}

type record struct {
	stage          Stage
	selectedAmount decimal.Decimal
	lastActivity   time.Time
}

// Manager хранит состояние диалога по chatID. Запись живёт ttl с момента
// последней активности; удачное чтение продлевает срок (sliding expiration).
// Все операции под одним мьютексом: чтение с выселением/продлением должно
// быть атомарным.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*record
	ttl      time.Duration

	now func() time.Time // подменяется в тестах
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{
		sessions: make(map[int64]*record),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetState перезаписывает сессию чата целиком.
func (m *Manager) SetState(chatID int64, stage Stage, selectedAmount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = &record{
		stage:          stage,
		selectedAmount: selectedAmount,
		lastActivity:   m.now(),
	}
}

// GetState возвращает nil, если сессии нет или она протухла (протухшую
// попутно удаляет). Живой записи обновляет lastActivity.
func (m *Manager) GetState(chatID int64) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[chatID]
	if !ok {
		return nil
	}
	if m.now().Sub(rec.lastActivity) > m.ttl {
		delete(m.sessions, chatID)
		return nil
	}
	rec.lastActivity = m.now()
	return &State{Stage: rec.stage, SelectedAmount: rec.selectedAmount}
}

func (m *Manager) ClearState(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}

// CleanupExpired выселяет все протухшие записи и возвращает их количество.
// Для корректности не обязателен (GetState чистит лениво), но ограничивает
// память от чатов, приславших одно сообщение без ответа.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for chatID, rec := range m.sessions {
		if now.Sub(rec.lastActivity) > m.ttl {
			delete(m.sessions, chatID)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("session: cleaned up %d expired", removed)
	}
	return removed
}
