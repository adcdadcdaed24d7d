package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"split-bot/api/internal/ocr"
	"split-bot/api/internal/util"
)

type Engine struct {
	iamc     *IamClient
	folderID string
	httpc    *http.Client
}

func New(oauthToken, folderID string) *Engine {
	return &Engine{
		iamc:     NewIamClient(oauthToken),
		folderID: folderID,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string     { return "yandex" }
func (e *Engine) GetModel() string { return "page" }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"`      // "JPEG" | "PNG" | "PDF"
	LanguageCodes []string `json:"languageCodes,omitempty"` // ["ru","en"]
	Model         string   `json:"model,omitempty"`
}

type response struct {
	Result *struct {
		TextAnnotation *textAnnotation `json:"textAnnotation,omitempty"`
		Page           string          `json:"page,omitempty"`
	} `json:"result,omitempty"`
}

type textAnnotation struct {
	FullText string `json:"fullText,omitempty"`
	Blocks   []struct {
		Lines []struct {
			Text string `json:"text,omitempty"`
		} `json:"lines,omitempty"`
	} `json:"blocks,omitempty"`
}

// Recognize гонит фото чека через recognizeText. Чеки печатные, поэтому
// дефолтная модель "page", не "handwritten".
func (e *Engine) Recognize(ctx context.Context, image []byte, opt ocr.Options) (string, error) {
	iamToken, err := e.iamc.Token(ctx)
	if err != nil {
		return "", err
	}

	langs := opt.Langs
	if len(langs) == 0 {
		langs = []string{"ru", "en"}
	}
	reqBody := request{
		Content:       base64.StdEncoding.EncodeToString(image),
		MimeType:      util.SniffMimeForOCR(image),
		LanguageCodes: langs,
		Model:         e.GetModel(),
	}
	if opt.Model != "" {
		reqBody.Model = opt.Model
	}
	payload, _ := json.Marshal(reqBody)

	do := func(token string) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, "POST",
			"https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText",
			bytes.NewReader(payload),
		)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("x-folder-id", e.folderID)
		return e.httpc.Do(req)
	}

	resp, err := do(iamToken)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// один ретрай со свежим IAM-токеном
		if iamToken, err = e.iamc.Token(ctx); err != nil {
			return "", err
		}
		resp.Body.Close()
		resp, err = do(iamToken)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
	}
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return "", &ocr.ProviderError{Engine: e.Name(), StatusCode: resp.StatusCode, Body: string(x)}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Result == nil || out.Result.TextAnnotation == nil {
		return "", nil
	}
	ta := out.Result.TextAnnotation
	if t := strings.TrimSpace(ta.FullText); t != "" {
		return t, nil
	}
	// fallback: собираем построчно
	var lines []string
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			if s := strings.TrimSpace(l.Text); s != "" {
				lines = append(lines, s)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
