package dialog

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"split-bot/api/internal/amount"
	"split-bot/api/internal/ocr"
	"split-bot/api/internal/session"
	"split-bot/api/internal/store"
	"split-bot/api/internal/usage"
	"split-bot/api/internal/util"
)

// В карточке выбора не больше 5 кандидатов.
const MaxCardChoices = 5

// Reply — что транспорт должен отправить пользователю.
// Amounts != nil — карточка выбора суммы, Result != nil — итог делёжки,
// иначе просто текст. Ошибок наружу нет: любой исход — сообщение.
type Reply struct {
	Text    string
	Amounts []decimal.Decimal
	Result  *SplitResult
}

type SplitResult struct {
	Total     decimal.Decimal
	People    int
	PerPerson decimal.Decimal
}

const (
	msgLimit      = "Лимит распознаваний на этот месяц исчерпан. Счётчик обнулится в следующем месяце."
	msgQuota      = "Квота OCR-провайдера исчерпана. Попробуйте позже."
	msgPermission = "Нет доступа к OCR-сервису. Напишите администратору."
	msgOCRFail    = "Не получилось обработать фото. Попробуйте ещё раз."
	msgNoText     = "Не удалось прочитать текст чека. Пришлите фото ещё раз."
	msgNoAmounts  = "Суммы не найдены. Сфотографируйте чек чётче."
	msgPickAmount = "Выберите сумму чека:"
	msgBadAmount  = "Не удалось обработать сумму."
	msgSendPhoto  = "Пришлите фото чека."
	msgBadPeople  = "Введите целое число больше нуля (например, 3)."
)

// Controller ведёт диалог "фото → сумма → количество человек → итог".
// Cache необязателен (nil — без кэша распознавания).
type Controller struct {
	Sessions *session.Manager
	Usage    *usage.Tracker
	Engines  *ocr.Manager
	Cache    *store.OCRRepo
	CacheAge time.Duration
}

// HandlePhoto: проверка лимита до OCR, инкремент счётчика сразу после
// допуска (при сбое провайдера не откатывается), распознавание, извлечение
// кандидатов. На любом сбое сессия не трогается — в том числе живая
// awaiting_people от предыдущего фото.
func (c *Controller) HandlePhoto(ctx context.Context, chatID int64, image []byte) Reply {
	if c.Usage.LimitExceeded() {
		return Reply{Text: msgLimit}
	}
	c.Usage.Increment()

	text, err := c.recognize(ctx, chatID, image)
	if err != nil {
		log.Printf("dialog: ocr chat=%d: %v", chatID, err)
		switch ocr.KindOf(err) {
		case ocr.KindRateLimited:
			return Reply{Text: msgQuota}
		case ocr.KindPermission:
			return Reply{Text: msgPermission}
		default:
			return Reply{Text: msgOCRFail}
		}
	}
	if strings.TrimSpace(text) == "" {
		return Reply{Text: msgNoText}
	}

	candidates := amount.ExtractCandidates(text)
	if len(candidates) == 0 {
		return Reply{Text: msgNoAmounts}
	}

	c.Sessions.SetState(chatID, session.StageAwaitingAmount, decimal.Decimal{})

	if len(candidates) > MaxCardChoices {
		candidates = candidates[:MaxCardChoices]
	}
	return Reply{Text: msgPickAmount, Amounts: candidates}
}

func (c *Controller) recognize(ctx context.Context, chatID int64, image []byte) (string, error) {
	eng := c.Engines.Get(chatID)
	hash := util.SHA256Hex(image)

	if c.Cache != nil {
		if text, err := c.Cache.FindByHash(ctx, hash, eng.Name(), eng.GetModel(), c.CacheAge); err == nil {
			return text, nil
		}
	}

	text, err := eng.Recognize(ctx, image, ocr.Options{})
	if err != nil {
		return "", err
	}
	if c.Cache != nil && text != "" {
		if err := c.Cache.Upsert(ctx, chatID, hash, eng.Name(), eng.GetModel(), text); err != nil {
			log.Printf("dialog: cache upsert: %v", err)
		}
	}
	return text, nil
}

// HandleAmountChoice — нажатие кнопки с суммой. payload — точная десятичная
// строка из callback data, без потери точности.
func (c *Controller) HandleAmountChoice(chatID int64, payload string) Reply {
	amt, err := decimal.NewFromString(strings.TrimSpace(payload))
	if err != nil {
		return Reply{Text: msgBadAmount}
	}
	c.Sessions.SetState(chatID, session.StageAwaitingPeople, amt)
	return Reply{Text: fmt.Sprintf("Сумма: %s\nНа сколько человек делим? Введите число.", amt.String())}
}

// HandleText — ответ с количеством человек. Вне awaiting_people любой текст
// получает приглашение прислать чек; кривой ввод сессию не сбрасывает.
func (c *Controller) HandleText(chatID int64, text string) Reply {
	st := c.Sessions.GetState(chatID)
	if st == nil || st.Stage != session.StageAwaitingPeople {
		return Reply{Text: msgSendPhoto}
	}

	people, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || people <= 0 {
		return Reply{Text: msgBadPeople}
	}

	perPerson, err := amount.SplitPerPerson(st.SelectedAmount, people, 2)
	if err != nil {
		return Reply{Text: msgBadPeople}
	}

	c.Sessions.ClearState(chatID)
	return Reply{Result: &SplitResult{
		Total:     st.SelectedAmount,
		People:    people,
		PerPerson: perPerson,
	}}
}
