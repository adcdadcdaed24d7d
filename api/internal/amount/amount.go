package amount

import (
	"errors"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidPeople = errors.New("people must be positive")

// Правдоподобный диапазон итога чека.
var (
	minAmount = decimal.NewFromInt(1)
	maxAmount = decimal.NewFromInt(10_000_000)
)

// Числовые токены: 1,234.56 / 1.234,56 / 1 234.56 / 1234,56 / 1234 и т.п.
// Сначала вариант с разрядными группами по 3 цифры, затем простое число;
// Longest() берёт максимальную подстроку, а не первую сработавшую альтернативу.
var tokenRe = func() *regexp.Regexp {
	re := regexp.MustCompile(`\d{1,3}(?:[,.\s]\d{3})*(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`)
	re.Longest()
	return re
}()

// ExtractCandidates вытаскивает из OCR-текста кандидатов на сумму чека:
// отсортированы по убыванию (итог обычно самое большое число), без дублей.
func ExtractCandidates(ocrText string) []decimal.Decimal {
	if ocrText == "" {
		return nil
	}

	var found []decimal.Decimal
	for _, token := range tokenRe.FindAllString(ocrText, -1) {
		for _, v := range ParseNumeric(token) {
			if v.Cmp(minAmount) >= 0 && v.Cmp(maxAmount) <= 0 {
				found = append(found, v)
			}
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Cmp(found[j]) > 0 })

	// дедуп по точному значению (12.5 и 12.50 — одно и то же)
	out := found[:0]
	for _, v := range found {
		if len(out) == 0 || out[len(out)-1].Cmp(v) != 0 {
			out = append(out, v)
		}
	}

	log.Printf("amount: %d candidates", len(out))
	return out
}

// ParseNumeric разбирает один числовой токен с неоднозначными разделителями.
// Возвращает ноль или одно значение; слайс оставлен на случай, если когда-нибудь
// понадобится отдавать несколько прочтений одного токена.
func ParseNumeric(token string) []decimal.Decimal {
	if token == "" {
		return nil
	}
	token = strings.ReplaceAll(token, " ", "")

	dots := strings.Count(token, ".")
	commas := strings.Count(token, ",")

	var normalized string
	switch {
	case dots == 0 && commas == 0:
		normalized = token

	case dots == 1 && commas == 0:
		// точка — десятичный разделитель
		normalized = token

	case dots == 0 && commas == 1:
		// запятая: 3 цифры после неё — разряды (1,234), иначе — десятичная (12,34)
		parts := strings.SplitN(token, ",", 2)
		if len(parts[1]) == 3 {
			normalized = parts[0] + parts[1]
		} else {
			normalized = strings.ReplaceAll(token, ",", ".")
		}

	case dots >= 1 && commas >= 1:
		// смешанный формат: десятичный разделитель тот, чьё последнее вхождение правее
		if strings.LastIndex(token, ".") > strings.LastIndex(token, ",") {
			normalized = strings.ReplaceAll(token, ",", "")
		} else {
			normalized = strings.ReplaceAll(strings.ReplaceAll(token, ".", ""), ",", ".")
		}

	case dots > 1:
		normalized = strings.ReplaceAll(token, ".", "")

	default: // commas > 1
		normalized = strings.ReplaceAll(token, ",", "")
	}

	v, err := decimal.NewFromString(normalized)
	if err != nil {
		// кривой токен просто выбрасываем, наверх ошибку не поднимаем
		return nil
	}
	return []decimal.Decimal{v}
}

// SplitPerPerson делит сумму на people с округлением до scale знаков.
// Ненулевой остаток округляется вверх, чтобы взносы в сумме покрывали счёт
// целиком (100 / 3 -> 33.34, не 33.33).
func SplitPerPerson(total decimal.Decimal, people int, scale int32) (decimal.Decimal, error) {
	if people <= 0 {
		return decimal.Decimal{}, ErrInvalidPeople
	}
	q, r := total.Shift(scale).QuoRem(decimal.NewFromInt(int64(people)), 0)
	if !r.IsZero() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q.Shift(-scale), nil
}
