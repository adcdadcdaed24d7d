package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	if payload, ok := strings.CutPrefix(cb.Data, amountCallbackPrefix); ok {
		// убрать клавиатуру, чтобы сумму не выбрали дважды
		empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
		edit := tgbotapi.NewEditMessageReplyMarkup(cid, cb.Message.MessageID, empty)
		_, _ = r.Bot.Send(edit)
		r.deliver(cid, r.Dialog.HandleAmountChoice(cid, payload))
	}
}
