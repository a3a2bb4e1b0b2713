package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"drims-backend/internal/apperr"
	"drims-backend/internal/models"
	"drims-backend/internal/stock"
	"drims-backend/internal/testutil"

	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return New(db, testutil.Logger()), db
}

func balance(t *testing.T, db *gorm.DB, depotID, itemID uint) int64 {
	t.Helper()
	bal, err := stock.BalanceTx(db, depotID, itemID, nil)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func TestDonationIntakeIsSingleEntry(t *testing.T) {
	svc, db := newTestService(t)
	depot := testutil.CreateDepot(t, db, "Kingston MAIN", models.TierMain)
	item := testutil.CreateItem(t, db, "Bottled Water", "Water", 0)

	pairID, err := svc.Append(context.Background(), Movement{
		ItemID:       item.ID,
		Quantity:     100,
		DestDepotID:  &depot.ID,
		RecordedByID: 1,
	})
	if err != nil {
		t.Fatalf("append donation: %v", err)
	}

	var entries []models.Transaction
	if err := db.Where("pair_id = ?", pairID).Find(&entries).Error; err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("external-source movement should be one entry, got %d", len(entries))
	}
	if entries[0].CounterID != nil {
		t.Error("external-source entry must have no counter")
	}
	if entries[0].Quantity != 100 {
		t.Errorf("quantity = %d, want 100", entries[0].Quantity)
	}
	if got := balance(t, db, depot.ID, item.ID); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}
}

func TestTransferWritesLinkedZeroSumPair(t *testing.T) {
	svc, db := newTestService(t)
	src := testutil.CreateDepot(t, db, "Kingston MAIN", models.TierMain)
	dst := testutil.CreateDepot(t, db, "St. James SUB", models.TierSub)
	item := testutil.CreateItem(t, db, "Tarpaulin", "Shelter", 0)

	if _, err := svc.Append(context.Background(), Movement{
		ItemID: item.ID, Quantity: 50, DestDepotID: &src.ID, RecordedByID: 1,
	}); err != nil {
		t.Fatal(err)
	}

	pairID, err := svc.Append(context.Background(), Movement{
		ItemID:        item.ID,
		Quantity:      20,
		SourceDepotID: &src.ID,
		DestDepotID:   &dst.ID,
		RecordedByID:  1,
	})
	if err != nil {
		t.Fatalf("append transfer: %v", err)
	}

	var entries []models.Transaction
	if err := db.Where("pair_id = ?", pairID).Order("quantity ASC").Find(&entries).Error; err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("transfer should be two entries, got %d", len(entries))
	}
	if sum := entries[0].Quantity + entries[1].Quantity; sum != 0 {
		t.Errorf("pair sums to %d, want 0", sum)
	}
	if entries[0].CounterID == nil || *entries[0].CounterID != entries[1].ID {
		t.Error("source entry does not point at its counter")
	}
	if entries[1].CounterID == nil || *entries[1].CounterID != entries[0].ID {
		t.Error("destination entry does not point at its counter")
	}
	if got := balance(t, db, src.ID, item.ID); got != 30 {
		t.Errorf("source balance = %d, want 30", got)
	}
	if got := balance(t, db, dst.ID, item.ID); got != 20 {
		t.Errorf("destination balance = %d, want 20", got)
	}
}

func TestAppendRejectsOverdraw(t *testing.T) {
	svc, db := newTestService(t)
	src := testutil.CreateDepot(t, db, "Kingston MAIN", models.TierMain)
	dst := testutil.CreateDepot(t, db, "Clarendon SUB", models.TierSub)
	item := testutil.CreateItem(t, db, "Rice", "Food", 0)

	if _, err := svc.Append(context.Background(), Movement{
		ItemID: item.ID, Quantity: 10, DestDepotID: &src.ID, RecordedByID: 1,
	}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Append(context.Background(), Movement{
		ItemID: item.ID, Quantity: 11, SourceDepotID: &src.ID, DestDepotID: &dst.ID, RecordedByID: 1,
	})
	if !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	var ise *apperr.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatal("expected a typed InsufficientStockError")
	}
	if ise.Available != 10 || ise.Requested != 11 {
		t.Errorf("error carries available=%d requested=%d, want 10/11", ise.Available, ise.Requested)
	}
	if got := balance(t, db, src.ID, item.ID); got != 10 {
		t.Errorf("failed write must not change the balance, got %d", got)
	}
}

func TestAppendValidation(t *testing.T) {
	svc, db := newTestService(t)
	depot := testutil.CreateDepot(t, db, "Kingston MAIN", models.TierMain)
	item := testutil.CreateItem(t, db, "Blankets", "Shelter", 0)

	_, err := svc.Append(context.Background(), Movement{ItemID: item.ID, Quantity: 0, DestDepotID: &depot.ID})
	if !errors.Is(err, apperr.ErrInvalidQuantity) {
		t.Errorf("zero quantity: expected ErrInvalidQuantity, got %v", err)
	}

	_, err = svc.Append(context.Background(), Movement{ItemID: item.ID, Quantity: 5})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("no accounts: expected ErrValidation, got %v", err)
	}

	_, err = svc.Append(context.Background(), Movement{
		ItemID: item.ID, Quantity: 5, SourceDepotID: &depot.ID, DestDepotID: &depot.ID,
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("same depot both sides: expected ErrValidation, got %v", err)
	}
}

func TestBatchIsAtomic(t *testing.T) {
	svc, db := newTestService(t)
	src := testutil.CreateDepot(t, db, "Kingston MAIN", models.TierMain)
	dst := testutil.CreateDepot(t, db, "St. James SUB", models.TierSub)
	item := testutil.CreateItem(t, db, "Canned Beans", "Food", 0)

	if _, err := svc.Append(context.Background(), Movement{
		ItemID: item.ID, Quantity: 10, DestDepotID: &src.ID, RecordedByID: 1,
	}); err != nil {
		t.Fatal(err)
	}

	// first movement fits, second overdraws: nothing may land
	_, err := svc.Commit(context.Background(), Batch{Movements: []Movement{
		{ItemID: item.ID, Quantity: 6, SourceDepotID: &src.ID, DestDepotID: &dst.ID, RecordedByID: 1},
		{ItemID: item.ID, Quantity: 6, SourceDepotID: &src.ID, DestDepotID: &dst.ID, RecordedByID: 1},
	}})
	if !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := balance(t, db, src.ID, item.ID); got != 10 {
		t.Errorf("source balance = %d, want 10 after rollback", got)
	}
	if got := balance(t, db, dst.ID, item.ID); got != 0 {
		t.Errorf("destination balance = %d, want 0 after rollback", got)
	}
}

func TestBatchBeforeFailureRollsBack(t *testing.T) {
	svc, db := newTestService(t)
	src := testutil.CreateDepot(t, db, "Kingston MAIN", models.TierMain)
	dst := testutil.CreateDepot(t, db, "St. James SUB", models.TierSub)
	item := testutil.CreateItem(t, db, "Soap", "Hygiene", 0)

	if _, err := svc.Append(context.Background(), Movement{
		ItemID: item.ID, Quantity: 10, DestDepotID: &src.ID, RecordedByID: 1,
	}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("claim lost")
	_, err := svc.Commit(context.Background(), Batch{
		Movements: []Movement{{ItemID: item.ID, Quantity: 5, SourceDepotID: &src.ID, DestDepotID: &dst.ID, RecordedByID: 1}},
		Before:    func(tx *gorm.DB) error { return boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the Before error, got %v", err)
	}
	if got := balance(t, db, src.ID, item.ID); got != 10 {
		t.Errorf("balance = %d, want 10 after rollback", got)
	}
}

func TestVoidRestoresBalances(t *testing.T) {
	svc, db := newTestService(t)
	src := testutil.CreateDepot(t, db, "Kingston MAIN", models.TierMain)
	dst := testutil.CreateDepot(t, db, "St. James SUB", models.TierSub)
	item := testutil.CreateItem(t, db, "Water Purification Tablets", "Water", 0)
	ctx := context.Background()

	if _, err := svc.Append(ctx, Movement{ItemID: item.ID, Quantity: 50, DestDepotID: &src.ID, RecordedByID: 1}); err != nil {
		t.Fatal(err)
	}
	pairID, err := svc.Append(ctx, Movement{
		ItemID: item.ID, Quantity: 30, SourceDepotID: &src.ID, DestDepotID: &dst.ID, RecordedByID: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Void(ctx, pairID, "entered against the wrong depot", 2); err != nil {
		t.Fatalf("void: %v", err)
	}

	if got := balance(t, db, src.ID, item.ID); got != 50 {
		t.Errorf("source balance = %d, want 50 after void", got)
	}
	if got := balance(t, db, dst.ID, item.ID); got != 0 {
		t.Errorf("destination balance = %d, want 0 after void", got)
	}

	// originals stay on file, marked VOID
	var originals []models.Transaction
	if err := db.Where("pair_id = ?", pairID).Find(&originals).Error; err != nil {
		t.Fatal(err)
	}
	if len(originals) != 2 {
		t.Fatalf("original entries must survive, got %d", len(originals))
	}
	for _, e := range originals {
		if e.Status != models.TxnVoid {
			t.Errorf("original entry %d status = %s, want VOID", e.ID, e.Status)
		}
		if e.VoidReason == "" {
			t.Errorf("original entry %d missing void reason", e.ID)
		}
	}

	// a compensating pair exists as audit record and is excluded from folds
	var comp []models.Transaction
	if err := db.Where("pair_id <> ? AND note LIKE ?", pairID, "reversal of pair%").Find(&comp).Error; err != nil {
		t.Fatal(err)
	}
	if len(comp) != 2 {
		t.Fatalf("expected 2 compensating entries, got %d", len(comp))
	}
	for _, e := range comp {
		if e.Status != models.TxnVoid {
			t.Errorf("compensating entry status = %s, want VOID", e.Status)
		}
	}

	// voiding the same pair twice fails
	if err := svc.Void(ctx, pairID, "again", 2); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second void: expected ErrNotFound, got %v", err)
	}
}

func TestVoidRefusesWhenStockAlreadySpent(t *testing.T) {
	svc, db := newTestService(t)
	depot := testutil.CreateDepot(t, db, "Kingston MAIN", models.TierMain)
	item := testutil.CreateItem(t, db, "Hygiene Kits", "Hygiene", 0)
	ctx := context.Background()

	donation, err := svc.Append(ctx, Movement{ItemID: item.ID, Quantity: 40, DestDepotID: &depot.ID, RecordedByID: 1})
	if err != nil {
		t.Fatal(err)
	}
	// the whole donation goes out the door
	if _, err := svc.Append(ctx, Movement{ItemID: item.ID, Quantity: 40, SourceDepotID: &depot.ID, RecordedByID: 1}); err != nil {
		t.Fatal(err)
	}

	err = svc.Void(ctx, donation, "donor withdrew", 2)
	if !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// the failed void must leave the donation committed
	var entry models.Transaction
	if err := db.Where("pair_id = ?", donation).First(&entry).Error; err != nil {
		t.Fatal(err)
	}
	if entry.Status != models.TxnCommitted {
		t.Errorf("donation status = %s, want COMMITTED after failed void", entry.Status)
	}
	if got := balance(t, db, depot.ID, item.ID); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	svc, db := newTestService(t)
	src := testutil.CreateDepot(t, db, "Kingston MAIN", models.TierMain)
	dst := testutil.CreateDepot(t, db, "St. James SUB", models.TierSub)
	item := testutil.CreateItem(t, db, "Cots", "Shelter", 0)
	ctx := context.Background()

	const seed, workers = 10, 25
	if _, err := svc.Append(ctx, Movement{ItemID: item.ID, Quantity: seed, DestDepotID: &src.ID, RecordedByID: 1}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Append(ctx, Movement{
				ItemID: item.ID, Quantity: 1, SourceDepotID: &src.ID, DestDepotID: &dst.ID, RecordedByID: 1,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperr.ErrInsufficientStock):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != seed {
		t.Errorf("%d transfers succeeded, want exactly %d", succeeded, seed)
	}
	if got := balance(t, db, src.ID, item.ID); got != 0 {
		t.Errorf("source balance = %d, want 0", got)
	}
	if got := balance(t, db, dst.ID, item.ID); got != seed {
		t.Errorf("destination balance = %d, want %d", got, seed)
	}
}
