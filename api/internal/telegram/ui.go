package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"split-bot/api/internal/dialog"
)

const amountCallbackPrefix = "amt="

// Кнопки выбора суммы: текст кнопки и callback data — точная десятичная
// строка, чтобы значение вернулось без потери точности.
func makeAmountKeyboard(amounts []decimal.Decimal) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(amounts))
	for _, a := range amounts {
		s := a.String()
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s, amountCallbackPrefix+s),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatResult(res *dialog.SplitResult) string {
	return fmt.Sprintf("【Итог】\nСумма: %s\nЧеловек: %d\nС каждого: %s",
		res.Total.String(), res.People, res.PerPerson.StringFixed(2))
}
