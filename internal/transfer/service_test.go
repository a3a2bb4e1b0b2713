package transfer

import (
	"context"
	"errors"
	"testing"

	"drims-backend/internal/apperr"
	"drims-backend/internal/auth"
	"drims-backend/internal/ledger"
	"drims-backend/internal/models"
	"drims-backend/internal/stock"
	"drims-backend/internal/testutil"

	"gorm.io/gorm"
)

type fixture struct {
	db  *gorm.DB
	svc *Service

	main, sub, agency *models.Depot
	item              *models.Item
	user              *models.User
	lgr               *ledger.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	lgr := ledger.New(db, testutil.Logger())
	f := &fixture{
		db:     db,
		svc:    NewService(db, lgr, testutil.Logger()),
		lgr:    lgr,
		main:   testutil.CreateDepot(t, db, "Kingston MAIN", models.TierMain),
		sub:    testutil.CreateDepot(t, db, "St. James SUB", models.TierSub),
		agency: testutil.CreateDepot(t, db, "Relief Agency Store", models.TierAgency),
		item:   testutil.CreateItem(t, db, "Tarpaulin", "Shelter", 0),
	}
	f.user = testutil.CreateUser(t, db, "tester", models.RoleWarehouseStaff, &f.sub.ID)
	return f
}

func (f *fixture) seed(t *testing.T, depotID uint, qty int64) {
	t.Helper()
	if _, err := f.lgr.Append(context.Background(), ledger.Movement{
		ItemID: f.item.ID, Quantity: qty, DestDepotID: &depotID, RecordedByID: 1,
	}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, depotID uint) int64 {
	t.Helper()
	bal, err := stock.BalanceTx(f.db, depotID, f.item.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	return bal
}

func principal(role models.UserRole, depotID uint) auth.Principal {
	return auth.Principal{UserID: 1, Role: role, DepotID: &depotID}
}

func TestMainInitiatedTransferExecutesImmediately(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.main.ID, 100)

	p := principal(models.RoleWarehouseStaff, f.main.ID)
	out, err := f.svc.Request(context.Background(), p, f.main.ID, f.sub.ID, f.item.ID, 30, "hurricane prep")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !out.Executed || out.PairID == "" {
		t.Fatalf("MAIN-initiated transfer must execute immediately, got %+v", out)
	}
	if out.Request != nil {
		t.Error("immediate execution must not persist a request")
	}

	var count int64
	f.db.Model(&models.TransferRequest{}).Count(&count)
	if count != 0 {
		t.Errorf("found %d persisted requests, want 0", count)
	}
	if got := f.balance(t, f.main.ID); got != 70 {
		t.Errorf("main balance = %d, want 70", got)
	}
	if got := f.balance(t, f.sub.ID); got != 30 {
		t.Errorf("sub balance = %d, want 30", got)
	}
}

func TestSubInitiatedTransferGoesPending(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.sub.ID, 50)

	p := principal(models.RoleWarehouseStaff, f.sub.ID)
	out, err := f.svc.Request(context.Background(), p, f.sub.ID, f.agency.ID, f.item.ID, 20, "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if out.Executed {
		t.Fatal("SUB-initiated transfer must not execute without approval")
	}
	if out.Request == nil || out.Request.Status != models.TransferPending {
		t.Fatalf("expected a PENDING request, got %+v", out.Request)
	}

	// no stock moved yet
	if got := f.balance(t, f.sub.ID); got != 50 {
		t.Errorf("sub balance = %d, want 50 while pending", got)
	}
}

func TestApprovalExecutesTransfer(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.sub.ID, 50)

	requester := principal(models.RoleWarehouseStaff, f.sub.ID)
	out, err := f.svc.Request(context.Background(), requester, f.sub.ID, f.agency.ID, f.item.ID, 20, "")
	if err != nil {
		t.Fatal(err)
	}

	approver := principal(models.RoleLogisticsManager, f.main.ID)
	req, err := f.svc.Decide(context.Background(), approver, out.Request.ID, true, "")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if req.Status != models.TransferExecuted {
		t.Errorf("status = %s, want EXECUTED", req.Status)
	}
	if req.PairID == "" {
		t.Error("executed request must record its ledger pair")
	}
	if got := f.balance(t, f.sub.ID); got != 30 {
		t.Errorf("sub balance = %d, want 30", got)
	}
	if got := f.balance(t, f.agency.ID); got != 20 {
		t.Errorf("agency balance = %d, want 20", got)
	}
}

func TestRejectLeavesStockAlone(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.sub.ID, 50)

	out, err := f.svc.Request(context.Background(), principal(models.RoleWarehouseStaff, f.sub.ID),
		f.sub.ID, f.agency.ID, f.item.ID, 20, "")
	if err != nil {
		t.Fatal(err)
	}

	req, err := f.svc.Decide(context.Background(), principal(models.RoleLogisticsManager, f.main.ID),
		out.Request.ID, false, "not a priority")
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != models.TransferRejected || req.RejectReason != "not a priority" {
		t.Errorf("request = %+v", req)
	}
	if got := f.balance(t, f.sub.ID); got != 50 {
		t.Errorf("sub balance = %d, want 50", got)
	}
}

func TestApprovalOnStaleStockRejectsWithReason(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.sub.ID, 30)
	ctx := context.Background()

	out, err := f.svc.Request(ctx, principal(models.RoleWarehouseStaff, f.sub.ID),
		f.sub.ID, f.agency.ID, f.item.ID, 30, "")
	if err != nil {
		t.Fatal(err)
	}

	// stock drains between request and decision
	if _, err := f.lgr.Append(ctx, ledger.Movement{
		ItemID: f.item.ID, Quantity: 25, SourceDepotID: &f.sub.ID, RecordedByID: 1,
	}); err != nil {
		t.Fatal(err)
	}

	req, err := f.svc.Decide(ctx, principal(models.RoleLogisticsManager, f.main.ID), out.Request.ID, true, "")
	if err != nil {
		t.Fatalf("stale approval must resolve, not error: %v", err)
	}
	if req.Status != models.TransferRejected {
		t.Errorf("status = %s, want REJECTED", req.Status)
	}
	if req.RejectReason != models.RejectReasonStaleStock {
		t.Errorf("reject reason = %q, want %q", req.RejectReason, models.RejectReasonStaleStock)
	}
	if got := f.balance(t, f.sub.ID); got != 5 {
		t.Errorf("sub balance = %d, want 5 (nothing transferred)", got)
	}
}

func TestDecisionGuards(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.sub.ID, 50)
	ctx := context.Background()

	out, err := f.svc.Request(ctx, principal(models.RoleWarehouseStaff, f.sub.ID),
		f.sub.ID, f.agency.ID, f.item.ID, 10, "")
	if err != nil {
		t.Fatal(err)
	}

	// a SUB-hub manager may not decide
	_, err = f.svc.Decide(ctx, principal(models.RoleLogisticsManager, f.sub.ID), out.Request.ID, true, "")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("SUB-hub decision: expected ErrForbidden, got %v", err)
	}

	// neither may MAIN-hub warehouse staff
	_, err = f.svc.Decide(ctx, principal(models.RoleWarehouseStaff, f.main.ID), out.Request.ID, true, "")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("warehouse decision: expected ErrForbidden, got %v", err)
	}

	// and an unrelated SUB depot may not raise the request in the first place
	other := testutil.CreateDepot(t, f.db, "Clarendon SUB", models.TierSub)
	_, err = f.svc.Request(ctx, principal(models.RoleWarehouseStaff, other.ID),
		f.sub.ID, f.agency.ID, f.item.ID, 10, "")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("foreign requester: expected ErrForbidden, got %v", err)
	}

	// SUB staff cannot pull from a MAIN source either; the immediate MAIN-source
	// path belongs to MAIN staff
	f.seed(t, f.main.ID, 50)
	_, err = f.svc.Request(ctx, principal(models.RoleWarehouseStaff, f.sub.ID),
		f.main.ID, f.sub.ID, f.item.ID, 10, "")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("SUB pulling from MAIN: expected ErrForbidden, got %v", err)
	}
}

func TestDoubleDecisionFails(t *testing.T) {
	f := newFixture(t)
	f.seed(t, f.sub.ID, 50)
	ctx := context.Background()

	out, err := f.svc.Request(ctx, principal(models.RoleWarehouseStaff, f.sub.ID),
		f.sub.ID, f.agency.ID, f.item.ID, 10, "")
	if err != nil {
		t.Fatal(err)
	}

	approver := principal(models.RoleLogisticsManager, f.main.ID)
	if _, err := f.svc.Decide(ctx, approver, out.Request.ID, true, ""); err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.Decide(ctx, approver, out.Request.ID, false, "changed my mind")
	var ise *apperr.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if ise.Current != string(models.TransferExecuted) {
		t.Errorf("error reports state %s, want EXECUTED", ise.Current)
	}

	// the executed transfer moved stock exactly once
	if got := f.balance(t, f.agency.ID); got != 10 {
		t.Errorf("agency balance = %d, want 10", got)
	}
}
