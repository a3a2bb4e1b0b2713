package stock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"drims-backend/internal/apperr"
	"drims-backend/internal/auth"
	"drims-backend/internal/ledger"
	"drims-backend/internal/models"
	"drims-backend/internal/stock"
	"drims-backend/internal/testutil"

	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	ledger *ledger.Service
	stock  *stock.Service

	main, sub, agency *models.Depot
	water, rice       *models.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:     db,
		ledger: ledger.New(db, testutil.Logger()),
		stock:  stock.NewService(db),
		main:   testutil.CreateDepot(t, db, "Kingston MAIN", models.TierMain),
		sub:    testutil.CreateDepot(t, db, "St. James SUB", models.TierSub),
		agency: testutil.CreateDepot(t, db, "Red Cross Store", models.TierAgency),
		water:  testutil.CreateItem(t, db, "Bottled Water", "Water", 20),
		rice:   testutil.CreateItem(t, db, "Rice", "Food", 0),
	}
	return f
}

func (f *fixture) donate(t *testing.T, depotID, itemID uint, qty int64) {
	t.Helper()
	if _, err := f.ledger.Append(context.Background(), ledger.Movement{
		ItemID: itemID, Quantity: qty, DestDepotID: &depotID, RecordedByID: 1,
	}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func managerAt(depotID uint) auth.Principal {
	return auth.Principal{UserID: 1, Role: models.RoleLogisticsManager, DepotID: &depotID}
}

func TestOverallBalancesExcludeAgencyStock(t *testing.T) {
	f := newFixture(t)
	f.donate(t, f.main.ID, f.water.ID, 100)
	f.donate(t, f.sub.ID, f.water.ID, 40)
	f.donate(t, f.agency.ID, f.water.ID, 999)

	rows, err := f.stock.OverallBalances(context.Background(), managerAt(f.main.ID))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one item row, got %d", len(rows))
	}
	if rows[0].Quantity != 140 {
		t.Errorf("overall water = %d, want 140 (agency stock excluded)", rows[0].Quantity)
	}
}

func TestAgencyPrincipalSeesOwnDepotOnly(t *testing.T) {
	f := newFixture(t)
	f.donate(t, f.main.ID, f.water.ID, 100)
	f.donate(t, f.agency.ID, f.water.ID, 30)

	p := auth.Principal{UserID: 2, Role: models.RoleFieldPersonnel, DepotID: &f.agency.ID}
	rows, err := f.stock.OverallBalances(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Quantity != 30 {
		t.Errorf("agency view = %+v, want only their own 30 units", rows)
	}

	// and they cannot query another depot's account
	_, err = f.stock.Balance(context.Background(), p, f.main.ID, f.water.ID, nil)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestBalanceAsOf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	early := time.Now().Add(-48 * time.Hour)
	if _, err := f.ledger.Append(ctx, ledger.Movement{
		ItemID: f.rice.ID, Quantity: 60, DestDepotID: &f.main.ID, OccurredAt: early, RecordedByID: 1,
	}); err != nil {
		t.Fatal(err)
	}
	f.donate(t, f.main.ID, f.rice.ID, 40) // now

	cutoff := time.Now().Add(-24 * time.Hour)
	bal, err := f.stock.Balance(ctx, managerAt(f.main.ID), f.main.ID, f.rice.ID, &cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if bal != 60 {
		t.Errorf("as-of balance = %d, want 60", bal)
	}

	bal, err = f.stock.Balance(ctx, managerAt(f.main.ID), f.main.ID, f.rice.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if bal != 100 {
		t.Errorf("current balance = %d, want 100", bal)
	}
}

func TestVoidedPairsDropOutOfHistoricalViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pairID, err := f.ledger.Append(ctx, ledger.Movement{
		ItemID: f.rice.ID, Quantity: 50, DestDepotID: &f.main.ID, RecordedByID: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.Void(ctx, pairID, "duplicate entry", 1); err != nil {
		t.Fatal(err)
	}

	// voids apply retroactively: even an as-of query after the original
	// occurred_at no longer counts the pair
	cutoff := time.Now().Add(time.Hour)
	bal, err := f.stock.Balance(ctx, managerAt(f.main.ID), f.main.ID, f.rice.ID, &cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if bal != 0 {
		t.Errorf("as-of balance = %d, want 0 after void", bal)
	}
}

func TestBalancesByCategory(t *testing.T) {
	f := newFixture(t)
	beans := testutil.CreateItem(t, f.db, "Canned Beans", "Food", 0)
	f.donate(t, f.main.ID, f.rice.ID, 30)
	f.donate(t, f.sub.ID, beans.ID, 20)
	f.donate(t, f.main.ID, f.water.ID, 10)

	rows, err := f.stock.BalancesByCategory(context.Background(), managerAt(f.main.ID))
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]int64{}
	for _, r := range rows {
		got[r.Category] = r.Quantity
	}
	if got["Food"] != 50 {
		t.Errorf("Food = %d, want 50", got["Food"])
	}
	if got["Water"] != 10 {
		t.Errorf("Water = %d, want 10", got["Water"])
	}
}

func TestLowStock(t *testing.T) {
	f := newFixture(t)
	// water has MinQty 20; rice has no threshold
	f.donate(t, f.main.ID, f.water.ID, 5)

	rows, err := f.stock.LowStock(context.Background(), managerAt(f.main.ID), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the thresholded item, got %d rows", len(rows))
	}
	if rows[0].ItemID != f.water.ID || rows[0].Quantity != 5 || rows[0].Threshold != 20 {
		t.Errorf("low stock row = %+v", rows[0])
	}

	// items with zero balance and a threshold still show up
	blankets := testutil.CreateItem(t, f.db, "Blankets", "Shelter", 10)
	rows, err = f.stock.LowStock(context.Background(), managerAt(f.main.ID), nil)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range rows {
		if r.ItemID == blankets.ID && r.Quantity == 0 {
			found = true
		}
	}
	if !found {
		t.Error("zero-balance item with a threshold missing from low stock")
	}

	// an explicit threshold applies to every item
	th := int64(100)
	rows, err = f.stock.LowStock(context.Background(), managerAt(f.main.ID), &th)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("explicit threshold should cover all items, got %d rows", len(rows))
	}
}

func TestExpiringWithin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	soon := time.Now().Add(10 * 24 * time.Hour)
	far := time.Now().Add(90 * 24 * time.Hour)
	for _, lot := range []struct {
		expiry time.Time
		qty    int64
	}{{soon, 25}, {far, 40}} {
		e := lot.expiry
		if _, err := f.ledger.Append(ctx, ledger.Movement{
			ItemID: f.rice.ID, Quantity: lot.qty, DestDepotID: &f.main.ID, ExpiryDate: &e, RecordedByID: 1,
		}); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := f.stock.ExpiringWithin(ctx, managerAt(f.main.ID), 30*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one expiring lot, got %d", len(rows))
	}
	if rows[0].Quantity != 25 || rows[0].ItemID != f.rice.ID {
		t.Errorf("expiring row = %+v", rows[0])
	}
}
