package telegram

import (
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"split-bot/api/internal/dialog"
	"split-bot/api/internal/ocr"
	"split-bot/api/internal/ocr/gemini"
	"split-bot/api/internal/ocr/yandex"
)

type Engines struct {
	Yandex *yandex.Engine
	Gemini *gemini.Engine
}

type Router struct {
	Bot        *tgbotapi.BotAPI
	Dialog     *dialog.Controller
	EngManager *ocr.Manager
	Engines    Engines
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	// callback-кнопки
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	cid := upd.Message.Chat.ID

	if upd.Message.IsCommand() {
		r.handleCommand(upd)
		return
	}

	// фото чека
	if len(upd.Message.Photo) > 0 {
		r.acceptPhoto(*upd.Message)
		return
	}

	// текст — количество человек (или приглашение прислать чек)
	if txt := strings.TrimSpace(upd.Message.Text); txt != "" {
		r.deliver(cid, r.Dialog.HandleText(cid, txt))
	}
}

func (r *Router) handleCommand(upd tgbotapi.Update) {
	cid := upd.Message.Chat.ID
	switch upd.Message.Command() {
	case "start":
		r.send(cid, "Пришлите фото чека — предложу суммы и разделю счёт на компанию.\nКоманды: /health, /engine")
	case "health":
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, upd.Message.Text)
	default:
		r.send(cid, "Неизвестная команда")
	}
}

// handleEngineCommand переключает OCR-движок для чата.
// Форматы:
//
//	/engine yandex
//	/engine gemini [model]
func (r *Router) handleEngineCommand(chatID int64, cmd string) {
	args := strings.Fields(strings.TrimSpace(strings.TrimPrefix(cmd, "/engine")))
	if len(args) == 0 {
		cur := r.EngManager.Get(chatID).Name()
		r.send(chatID, "Текущий движок: "+cur+
			"\nИспользование:\n/engine yandex\n/engine gemini [model]")
		return
	}
	name := strings.ToLower(args[0])
	var mdl string
	if len(args) > 1 {
		mdl = strings.TrimSpace(args[1])
	}
	r.send(chatID, r.switchEngine(chatID, name, mdl))
}

// switchEngine переключает OCR-движок чата и возвращает текст ответа.
func (r *Router) switchEngine(chatID int64, name, mdl string) string {
	switch name {
	case "yandex":
		if r.Engines.Yandex == nil {
			return "❌ Yandex OCR не настроен."
		}
		r.EngManager.Set(chatID, r.Engines.Yandex)
		return "✅ Движок: yandex."
	case "gemini":
		if r.Engines.Gemini == nil {
			return "❌ Gemini не настроен."
		}
		eng := r.Engines.Gemini
		if mdl != "" {
			// отдельный экземпляр на чат: общий движок не мутируем
			eng = gemini.New(eng.APIKey, mdl)
		}
		r.EngManager.Set(chatID, eng)
		return "✅ Движок: gemini (" + eng.GetModel() + ")."
	default:
		return "Неизвестный движок. Доступны: yandex | gemini"
	}
}

// deliver переводит Reply диалога в сообщения Telegram.
func (r *Router) deliver(chatID int64, rep dialog.Reply) {
	if rep.Result != nil {
		r.send(chatID, formatResult(rep.Result))
		return
	}
	if len(rep.Amounts) > 0 {
		msg := tgbotapi.NewMessage(chatID, rep.Text)
		msg.ReplyMarkup = makeAmountKeyboard(rep.Amounts)
		if _, err := r.Bot.Send(msg); err != nil {
			log.Printf("telegram: send card: %v", err)
		}
		return
	}
	r.send(chatID, rep.Text)
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram: send: %v", err)
	}
}

// PhotoAcceptedText — первый ответ после получения фото/первой страницы альбома.
func (r *Router) PhotoAcceptedText() string {
	return "Фото принято. Если чек длинный и на нескольких фото — пришлите их подряд, я склею страницы перед распознаванием."
}
