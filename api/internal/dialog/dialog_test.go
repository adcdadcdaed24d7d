package dialog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"split-bot/api/internal/ocr"
	"split-bot/api/internal/session"
	"split-bot/api/internal/usage"
)

type fakeEngine struct {
	text  string
	err   error
	calls int
}

func (f *fakeEngine) Name() string     { return "fake" }
func (f *fakeEngine) GetModel() string { return "test" }

func (f *fakeEngine) Recognize(_ context.Context, _ []byte, _ ocr.Options) (string, error) {
	f.calls++
	return f.text, f.err
}

func newController(eng ocr.Engine, monthlyCap int) *Controller {
	return &Controller{
		Sessions: session.NewManager(30 * time.Minute),
		Usage:    usage.NewTracker("UTC", monthlyCap, true, nil),
		Engines:  ocr.NewManager(eng),
	}
}

// Полный сценарий: фото → карточка сумм → выбор → количество человек → итог.
func TestSplitWorkflow(t *testing.T) {
	eng := &fakeEngine{text: "Total 1,234 Tax 56"}
	c := newController(eng, 1000)
	const chatID int64 = 42

	// 1. Фото: кандидаты по убыванию
	rep := c.HandlePhoto(context.Background(), chatID, []byte("photo"))
	require.Len(t, rep.Amounts, 2)
	require.True(t, rep.Amounts[0].Equal(decimal.NewFromInt(1234)))
	require.True(t, rep.Amounts[1].Equal(decimal.NewFromInt(56)))
	require.Equal(t, 1, c.Usage.Count())

	st := c.Sessions.GetState(chatID)
	require.NotNil(t, st)
	require.Equal(t, session.StageAwaitingAmount, st.Stage)

	// 2. Выбор суммы
	rep = c.HandleAmountChoice(chatID, "1234")
	require.Contains(t, rep.Text, "1234")
	st = c.Sessions.GetState(chatID)
	require.NotNil(t, st)
	require.Equal(t, session.StageAwaitingPeople, st.Stage)
	require.True(t, st.SelectedAmount.Equal(decimal.NewFromInt(1234)))

	// 3. Количество человек → итог, сессия очищена
	rep = c.HandleText(chatID, "3")
	require.NotNil(t, rep.Result)
	require.True(t, rep.Result.Total.Equal(decimal.NewFromInt(1234)))
	require.Equal(t, 3, rep.Result.People)
	require.True(t, rep.Result.PerPerson.Equal(decimal.RequireFromString("411.34")))
	require.Nil(t, c.Sessions.GetState(chatID))

	// 4. После итога текст снова упирается в приглашение
	rep = c.HandleText(chatID, "3")
	require.Equal(t, msgSendPhoto, rep.Text)
}

func TestPhotoNoText(t *testing.T) {
	c := newController(&fakeEngine{text: ""}, 1000)

	rep := c.HandlePhoto(context.Background(), 1, []byte("photo"))
	require.Equal(t, msgNoText, rep.Text)
	require.Nil(t, rep.Amounts)
	require.Nil(t, c.Sessions.GetState(1))
	// счётчик не откатывается
	require.Equal(t, 1, c.Usage.Count())
}

func TestPhotoNoCandidates(t *testing.T) {
	c := newController(&fakeEngine{text: "спасибо за покупку"}, 1000)

	rep := c.HandlePhoto(context.Background(), 1, []byte("photo"))
	require.Equal(t, msgNoAmounts, rep.Text)
	require.Nil(t, c.Sessions.GetState(1))
}

func TestPhotoProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "rate limited",
			err:  &ocr.ProviderError{Engine: "fake", StatusCode: 429, Body: "too many requests"},
			want: msgQuota,
		},
		{
			name: "quota in body",
			err:  &ocr.ProviderError{Engine: "fake", StatusCode: 500, Body: "vision quota exceeded"},
			want: msgQuota,
		},
		{
			name: "permission denied",
			err:  &ocr.ProviderError{Engine: "fake", StatusCode: 403, Body: "forbidden"},
			want: msgPermission,
		},
		{
			name: "generic failure",
			err:  errors.New("connection reset"),
			want: msgOCRFail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(&fakeEngine{err: tt.err}, 1000)
			rep := c.HandlePhoto(context.Background(), 1, []byte("photo"))
			require.Equal(t, tt.want, rep.Text)
			// допуск уже съел единицу лимита
			require.Equal(t, 1, c.Usage.Count())
			require.Nil(t, c.Sessions.GetState(1))
		})
	}
}

func TestPhotoLimitExceeded(t *testing.T) {
	eng := &fakeEngine{text: "1500"}
	c := newController(eng, 0)

	rep := c.HandlePhoto(context.Background(), 1, []byte("photo"))
	require.Equal(t, msgLimit, rep.Text)
	require.Equal(t, 0, eng.calls, "OCR must not be called past the cap")
	require.Equal(t, 0, c.Usage.Count())
}

// Сбой OCR не трогает живую сессию от предыдущего фото.
func TestPhotoFailureKeepsExistingSession(t *testing.T) {
	eng := &fakeEngine{text: "Итого 500"}
	c := newController(eng, 1000)
	const chatID int64 = 7

	c.HandlePhoto(context.Background(), chatID, []byte("photo"))
	c.HandleAmountChoice(chatID, "500")

	eng.text = ""
	rep := c.HandlePhoto(context.Background(), chatID, []byte("photo2"))
	require.Equal(t, msgNoText, rep.Text)

	st := c.Sessions.GetState(chatID)
	require.NotNil(t, st)
	require.Equal(t, session.StageAwaitingPeople, st.Stage)
}

func TestNewPhotoOverwritesSession(t *testing.T) {
	c := newController(&fakeEngine{text: "Итого 500"}, 1000)
	const chatID int64 = 7

	c.HandlePhoto(context.Background(), chatID, []byte("photo"))
	c.HandleAmountChoice(chatID, "500")

	c.HandlePhoto(context.Background(), chatID, []byte("photo2"))
	st := c.Sessions.GetState(chatID)
	require.NotNil(t, st)
	require.Equal(t, session.StageAwaitingAmount, st.Stage)
}

func TestAmountChoiceBadPayload(t *testing.T) {
	c := newController(&fakeEngine{}, 1000)

	rep := c.HandleAmountChoice(1, "не число")
	require.Equal(t, msgBadAmount, rep.Text)
	require.Nil(t, c.Sessions.GetState(1))
}

func TestBadPeopleInputKeepsSession(t *testing.T) {
	c := newController(&fakeEngine{text: "Итого 1234"}, 1000)
	const chatID int64 = 9

	c.HandlePhoto(context.Background(), chatID, []byte("photo"))
	c.HandleAmountChoice(chatID, "1234")

	for _, input := range []string{"abc", "0", "-2", "2.5"} {
		rep := c.HandleText(chatID, input)
		require.Equal(t, msgBadPeople, rep.Text, "input %q", input)
		st := c.Sessions.GetState(chatID)
		require.NotNil(t, st, "session must survive input %q", input)
		require.Equal(t, session.StageAwaitingPeople, st.Stage)
	}

	rep := c.HandleText(chatID, "4")
	require.NotNil(t, rep.Result)
	require.True(t, rep.Result.PerPerson.Equal(decimal.RequireFromString("308.50")))
}

func TestTextWithoutSession(t *testing.T) {
	c := newController(&fakeEngine{}, 1000)

	rep := c.HandleText(1, "3")
	require.Equal(t, msgSendPhoto, rep.Text)
}

func TestCardLimitedToTopFive(t *testing.T) {
	c := newController(&fakeEngine{text: "a 10 b 20 c 30 d 40 e 50 f 60 g 70"}, 1000)

	rep := c.HandlePhoto(context.Background(), 1, []byte("photo"))
	require.Len(t, rep.Amounts, MaxCardChoices)
	require.True(t, rep.Amounts[0].Equal(decimal.NewFromInt(70)))
	require.True(t, rep.Amounts[4].Equal(decimal.NewFromInt(30)))
}
