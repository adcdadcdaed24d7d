package ocr

import (
	"context"
	"sync"
)

type Options struct {
	Langs []string // языки распознавания, если движок это умеет
	Model string   // разовый override модели
}

// Engine распознаёт текст на фото чека.
// Пустая строка без ошибки означает "текста на фото нет" — это поправимо
// пользователем; операционные сбои провайдера приходят как *ProviderError.
type Engine interface {
	Name() string
	GetModel() string
	Recognize(ctx context.Context, image []byte, opt Options) (string, error)
}

// Manager хранит выбранный движок по чату поверх дефолтного.
type Manager struct {
	def Engine
	m   sync.Map // chatID -> Engine
}

func NewManager(defaultEngine Engine) *Manager {
	return &Manager{def: defaultEngine}
}

func (m *Manager) Get(chatID int64) Engine {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Engine)
	}
	return m.def
}

func (m *Manager) Set(chatID int64, e Engine) {
	m.m.Store(chatID, e)
}
