package usage

import (
	"context"
	"log"
	"sync"
	"time"
)

// Repo — необязательное хранилище счётчика, чтобы месяц переживал рестарты
// (store.UsageRepo). nil — чисто в памяти.
type Repo interface {
	Load(ctx context.Context, monthKey string) (int, error)
	Save(ctx context.Context, monthKey string, count int) error
}

// Tracker считает OCR-вызовы за календарный месяц в заданной таймзоне
// и сравнивает с лимитом бесплатного режима. На границе месяца счётчик
// обнуляется; проверка происходит под локом при каждой операции.
type Tracker struct {
	timezone   string
	monthlyCap int
	freeMode   bool
	repo       Repo

	mu       sync.Mutex
	monthKey string
	counter  int

	now func() time.Time // подменяется в тестах
}

func NewTracker(timezone string, monthlyCap int, freeMode bool, repo Repo) *Tracker {
	t := &Tracker{
		timezone:   timezone,
		monthlyCap: monthlyCap,
		freeMode:   freeMode,
		repo:       repo,
		now:        time.Now,
	}
	t.monthKey = t.currentMonthKey()
	if repo != nil {
		if n, err := repo.Load(context.Background(), t.monthKey); err == nil {
			t.counter = n
		}
	}
	log.Printf("usage: timezone=%s cap=%d free_mode=%v count=%d",
		timezone, monthlyCap, freeMode, t.counter)
	return t
}

// currentMonthKey — "YYYY-MM" в таймзоне трекера, UTC при кривой таймзоне.
func (t *Tracker) currentMonthKey() string {
	loc, err := time.LoadLocation(t.timezone)
	if err != nil {
		log.Printf("usage: invalid timezone %q, using UTC", t.timezone)
		loc = time.UTC
	}
	return t.now().In(loc).Format("2006-01")
}

// вызывается под t.mu
func (t *Tracker) checkMonthReset() {
	key := t.currentMonthKey()
	if key != t.monthKey {
		t.monthKey = key
		t.counter = 0
		log.Printf("usage: month changed to %s, counter reset", key)
	}
}

// Increment увеличивает счётчик и возвращает новое значение.
func (t *Tracker) Increment() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkMonthReset()
	t.counter++
	if t.repo != nil {
		if err := t.repo.Save(context.Background(), t.monthKey, t.counter); err != nil {
			log.Printf("usage: save counter: %v", err)
		}
	}
	return t.counter
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkMonthReset()
	return t.counter
}

// LimitExceeded — допуск к OCR. В платном режиме лимита нет.
func (t *Tracker) LimitExceeded() bool {
	if !t.freeMode {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkMonthReset()
	exceeded := t.counter >= t.monthlyCap
	if exceeded {
		log.Printf("usage: monthly limit exceeded: %d/%d", t.counter, t.monthlyCap)
	}
	return exceeded
}

// Remaining возвращает остаток на месяц; ok=false в платном режиме.
func (t *Tracker) Remaining() (int, bool) {
	if !t.freeMode {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkMonthReset()
	if r := t.monthlyCap - t.counter; r > 0 {
		return r, true
	}
	return 0, true
}

// Reset принудительно обнуляет счётчик (админка/тесты).
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counter = 0
	log.Printf("usage: counter manually reset")
}
