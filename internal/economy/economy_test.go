package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/metro-engine/internal/network"
)

func TestSpendMoneyNeverOverdraws(t *testing.T) {
	now := 0.0
	l := NewLedger(500, func() float64 { return now })

	assert.True(t, l.CanAfford(500))
	assert.False(t, l.CanAfford(501))

	now = 3
	assert.True(t, l.SpendMoney(200, "new line"))
	assert.Equal(t, 300.0, l.Balance())

	assert.False(t, l.SpendMoney(301, "too much"))
	assert.Equal(t, 300.0, l.Balance(), "failed spend leaves balance")
	assert.False(t, l.SpendMoney(-5, "negative"))

	require.Len(t, l.Transactions(), 1)
	tx := l.Transactions()[0]
	assert.Equal(t, Transaction{ID: 1, Direction: Expense, Amount: 200, Description: "new line", Timestamp: 3}, tx)
}

func TestAddMoney(t *testing.T) {
	l := NewLedger(0, nil)
	l.AddMoney(30, "tickets")
	l.AddMoney(0, "nothing")
	l.AddMoney(-1, "nothing")
	assert.Equal(t, 30.0, l.Balance())
	assert.Len(t, l.Transactions(), 1)
	s := l.State()
	assert.Equal(t, 30.0, s.TotalIncome)
	assert.Equal(t, 2, s.NextID)
}

func TestInfiniteMode(t *testing.T) {
	l := NewLedger(10, nil)
	l.SetInfinite(true)
	assert.True(t, l.CanAfford(1e9))
	assert.True(t, l.SpendMoney(1000, "train"))
	assert.Equal(t, -990.0, l.Balance())
	assert.Len(t, l.Transactions(), 1)
	st := l.State()
	assert.Equal(t, 10+st.TotalIncome-st.TotalExpense, l.Balance())

	l.SetInfinite(false)
	assert.False(t, l.SpendMoney(1000, "train"))
}

func TestBalanceMatchesLog(t *testing.T) {
	l := NewLedger(500, nil)
	l.AddMoney(40, "a")
	l.SpendMoney(100, "b")
	l.SpendMoney(1000, "c")
	l.AddMoney(7, "d")

	bal := 500.0
	for _, tx := range l.Transactions() {
		if tx.Direction == Income {
			bal += tx.Amount
		} else {
			bal -= tx.Amount
		}
	}
	assert.Equal(t, bal, l.Balance())
}

func TestRestore(t *testing.T) {
	l := NewLedger(500, nil)
	l.SpendMoney(100, "x")
	s := l.State()

	r := NewLedger(0, nil)
	require.NoError(t, r.Restore(s))
	assert.Equal(t, 400.0, r.Balance())
	r.AddMoney(1, "y")
	assert.Equal(t, 2, r.Transactions()[1].ID)
	assert.Len(t, l.Transactions(), 1, "restored ledger does not alias the source")

	assert.Error(t, r.Restore(State{Transactions: []Transaction{{ID: 1}}, NextID: 1}))
}

func TestCosts(t *testing.T) {
	p := DefaultPrices()
	assert.Equal(t, 200.0, p.NewLineCost())
	assert.Equal(t, 50.0, p.ExtensionCost())
	assert.Equal(t, 200.0, p.ModificationCost())
	assert.Equal(t, 100.0, p.TrainCost())
	assert.Equal(t, 60.0, p.CapacityUpgradeCost(3))
	assert.InDelta(t, 1.0, p.MaintenanceCost(2, 30), 1e-9)
}

func TestTicketPrice(t *testing.T) {
	p := DefaultPrices()
	tests := []struct {
		name     string
		stops    int
		shape    network.Shape
		transfer bool
		want     float64
	}{
		{"adjacent circle", 2, network.Circle, false, 15},
		{"adjacent star", 2, network.Star, false, 23}, // 22.5 rounds up
		{"three stops triangle", 3, network.Triangle, false, 24},
		{"with transfer", 2, network.Circle, true, 18},
		{"no distance", 0, network.Circle, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.TicketPrice(tt.stops, tt.shape, tt.transfer))
		})
	}
}

func TestFarePolicies(t *testing.T) {
	trips := []Trip{{Shape: network.Circle, Stops: 2}, {Shape: network.Square, Stops: 3, ViaTransfer: true}}

	flat, err := NewFarePolicy("flat", 12, DefaultPrices())
	require.NoError(t, err)
	assert.Equal(t, FlatPolicyName, flat.Name())
	assert.Equal(t, 24.0, flat.Revenue(trips))

	dist, err := NewFarePolicy("distance", 12, DefaultPrices())
	require.NoError(t, err)
	assert.Equal(t, DistancePolicyName, dist.Name())
	// 15 + round(20*1.1 + 3) = 15 + 25
	assert.Equal(t, 40.0, dist.Revenue(trips))

	_, err = NewFarePolicy("surge", 0, DefaultPrices())
	assert.Error(t, err)
}
