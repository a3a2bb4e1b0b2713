package topology

import (
	"errors"
	"testing"

	"drims-backend/internal/apperr"
	"drims-backend/internal/models"
)

func TestRouteFor(t *testing.T) {
	cases := []struct {
		source, dest models.HubTier
		want         TransferRoute
	}{
		{models.TierMain, models.TierMain, RouteImmediate},
		{models.TierMain, models.TierSub, RouteImmediate},
		{models.TierMain, models.TierAgency, RouteImmediate},
		{models.TierSub, models.TierMain, RouteRequiresMainApproval},
		{models.TierSub, models.TierSub, RouteRequiresMainApproval},
		{models.TierSub, models.TierAgency, RouteRequiresMainApproval},
		{models.TierAgency, models.TierMain, RouteRequiresMainApproval},
		{models.TierAgency, models.TierSub, RouteRequiresMainApproval},
		{models.TierAgency, models.TierAgency, RouteRequiresMainApproval},
	}
	for _, tc := range cases {
		got, err := RouteFor(tc.source, tc.dest)
		if err != nil {
			t.Fatalf("RouteFor(%s, %s): %v", tc.source, tc.dest, err)
		}
		if got != tc.want {
			t.Errorf("RouteFor(%s, %s) = %s, want %s", tc.source, tc.dest, got, tc.want)
		}
	}
}

func TestRouteForUnknownTier(t *testing.T) {
	if _, err := RouteFor("WAREHOUSE", models.TierMain); !errors.Is(err, apperr.ErrUnknownTier) {
		t.Errorf("expected ErrUnknownTier for bad source, got %v", err)
	}
	if _, err := RouteFor(models.TierMain, ""); !errors.Is(err, apperr.ErrUnknownTier) {
		t.Errorf("expected ErrUnknownTier for bad destination, got %v", err)
	}
}

func TestIsVisibleOverall(t *testing.T) {
	for tier, want := range map[models.HubTier]bool{
		models.TierMain:   true,
		models.TierSub:    true,
		models.TierAgency: false,
	} {
		got, err := IsVisibleOverall(tier)
		if err != nil {
			t.Fatalf("IsVisibleOverall(%s): %v", tier, err)
		}
		if got != want {
			t.Errorf("IsVisibleOverall(%s) = %v, want %v", tier, got, want)
		}
	}

	if _, err := IsVisibleOverall("REGIONAL"); !errors.Is(err, apperr.ErrUnknownTier) {
		t.Errorf("expected ErrUnknownTier, got %v", err)
	}
}
