package ocr

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimited
	KindPermission
)

// ProviderError — операционная ошибка OCR-провайдера (не "текста нет").
type ProviderError struct {
	Engine     string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s ocr %d: %s", e.Engine, e.StatusCode, e.Body)
}

func (e *ProviderError) Kind() ErrorKind {
	body := strings.ToLower(e.Body)
	switch {
	case e.StatusCode == 429 || strings.Contains(body, "quota"):
		return KindRateLimited
	case e.StatusCode == 403 || strings.Contains(body, "permission"):
		return KindPermission
	default:
		return KindUnknown
	}
}

// KindOf классифицирует любую ошибку распознавания для выбора ответа пользователю.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind()
	}
	return KindUnknown
}
