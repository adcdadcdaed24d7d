package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"split-bot/api/internal/ocr"
	"split-bot/api/internal/util"
)

type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Recognize транскрибирует текст с фото чека. Пустой ответ = текста нет.
func (e *Engine) Recognize(ctx context.Context, image []byte, opt ocr.Options) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	model := e.Model
	if opt.Model != "" {
		model = opt.Model
	}
	m := cl.GenerativeModel(model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(0),
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{
			genai.Text(`Ты — OCR-модуль. Перепиши ВЕСЬ текст с фото чека как есть, построчно,
включая названия позиций, цены и итог. Ничего не добавляй, не комментируй и не исправляй.
Если текста на фото нет — верни пустой ответ.`),
		},
	}

	parts := []genai.Part{
		genai.Text("Текст с фото, построчно."),
		&genai.Blob{MIMEType: util.SniffMimeHTTP(image), Data: image},
	}

	// Ретраи на случай транзиентных сбоев; квоту/доступ не ретраим.
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) && (gerr.Code == 429 || gerr.Code == 403) {
				return "", &ocr.ProviderError{Engine: e.Name(), StatusCode: gerr.Code, Body: gerr.Message}
			}
			lastErr = err
			time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
			continue
		}
		return strings.TrimSpace(firstText(resp)), nil
	}
	return "", &ocr.ProviderError{Engine: e.Name(), Body: lastErr.Error()}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				if s := strings.TrimSpace(string(t)); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
