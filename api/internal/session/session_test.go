package session

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func managerAt(ttl time.Duration, start time.Time) (*Manager, *time.Time) {
	m := NewManager(ttl)
	cur := start
	m.now = func() time.Time { return cur }
	return m, &cur
}

func TestSetGetClear(t *testing.T) {
	m, _ := managerAt(30*time.Minute, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	if st := m.GetState(1); st != nil {
		t.Fatalf("GetState before SetState = %+v, want nil", st)
	}

	amt := decimal.RequireFromString("1234.56")
	m.SetState(1, StageAwaitingPeople, amt)

	st := m.GetState(1)
	if st == nil {
		t.Fatal("GetState = nil, want state")
	}
	if st.Stage != StageAwaitingPeople {
		t.Errorf("Stage = %q, want %q", st.Stage, StageAwaitingPeople)
	}
	if !st.SelectedAmount.Equal(amt) {
		t.Errorf("SelectedAmount = %s, want %s", st.SelectedAmount, amt)
	}

	m.ClearState(1)
	if st := m.GetState(1); st != nil {
		t.Fatalf("GetState after ClearState = %+v, want nil", st)
	}
	// повторный clear — no-op
	m.ClearState(1)
}

func TestSetStateOverwrites(t *testing.T) {
	m, _ := managerAt(30*time.Minute, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	m.SetState(1, StageAwaitingAmount, decimal.Decimal{})
	m.SetState(1, StageAwaitingPeople, decimal.NewFromInt(500))

	st := m.GetState(1)
	if st == nil || st.Stage != StageAwaitingPeople {
		t.Fatalf("GetState = %+v, want awaiting_people", st)
	}
	if !st.SelectedAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("SelectedAmount = %s, want 500", st.SelectedAmount)
	}
}

func TestTTLExpiry(t *testing.T) {
	m, cur := managerAt(30*time.Minute, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	m.SetState(1, StageAwaitingPeople, decimal.NewFromInt(500))

	*cur = cur.Add(31 * time.Minute)
	if st := m.GetState(1); st != nil {
		t.Fatalf("GetState after TTL = %+v, want nil", st)
	}
	// запись выселена, а не просто скрыта
	if len(m.sessions) != 0 {
		t.Errorf("sessions = %d records, want 0", len(m.sessions))
	}
}

func TestSlidingExpiry(t *testing.T) {
	m, cur := managerAt(30*time.Minute, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	m.SetState(1, StageAwaitingPeople, decimal.NewFromInt(500))

	// каждое чтение продлевает срок: 4 раза по 20 минут — всё ещё жива
	for i := 0; i < 4; i++ {
		*cur = cur.Add(20 * time.Minute)
		if st := m.GetState(1); st == nil {
			t.Fatalf("GetState at +%d min = nil, want live session", (i+1)*20)
		}
	}

	*cur = cur.Add(31 * time.Minute)
	if st := m.GetState(1); st != nil {
		t.Fatalf("GetState after idle TTL = %+v, want nil", st)
	}
}

func TestCleanupExpired(t *testing.T) {
	m, cur := managerAt(30*time.Minute, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	m.SetState(1, StageAwaitingPeople, decimal.NewFromInt(100))
	m.SetState(2, StageAwaitingPeople, decimal.NewFromInt(200))

	*cur = cur.Add(20 * time.Minute)
	if st := m.GetState(2); st == nil { // продлеваем вторую
		t.Fatal("GetState(2) = nil, want live session")
	}

	*cur = cur.Add(15 * time.Minute) // первая: 35 мин простоя, вторая: 15
	if n := m.CleanupExpired(); n != 1 {
		t.Errorf("CleanupExpired = %d, want 1", n)
	}
	if st := m.GetState(1); st != nil {
		t.Errorf("GetState(1) = %+v, want nil", st)
	}
	if st := m.GetState(2); st == nil {
		t.Error("GetState(2) = nil, want live session")
	}

	if n := m.CleanupExpired(); n != 0 {
		t.Errorf("second CleanupExpired = %d, want 0", n)
	}
}

func TestIndependentUsers(t *testing.T) {
	m, _ := managerAt(30*time.Minute, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	m.SetState(1, StageAwaitingPeople, decimal.NewFromInt(100))
	m.SetState(2, StageAwaitingPeople, decimal.NewFromInt(200))
	m.ClearState(1)

	if st := m.GetState(1); st != nil {
		t.Errorf("GetState(1) = %+v, want nil", st)
	}
	st := m.GetState(2)
	if st == nil || !st.SelectedAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("GetState(2) = %+v, want amount 200", st)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := NewManager(30 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.SetState(chatID, StageAwaitingPeople, decimal.NewFromInt(chatID))
				if st := m.GetState(chatID); st != nil && !st.SelectedAmount.Equal(decimal.NewFromInt(chatID)) {
					t.Errorf("chat %d observed foreign amount %s", chatID, st.SelectedAmount)
				}
				m.ClearState(chatID)
				m.CleanupExpired()
			}
		}(int64(i))
	}
	wg.Wait()
}
