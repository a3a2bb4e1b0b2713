// Package topology holds the hub-tier governance rules: how a transfer is
// routed and which tiers appear in organization-wide views. Both lookups are
// stateless policy functions.
package topology

import (
	"fmt"

	"drims-backend/internal/apperr"
	"drims-backend/internal/models"
)

type TransferRoute string

const (
	RouteImmediate            TransferRoute = "IMMEDIATE"
	RouteRequiresMainApproval TransferRoute = "REQUIRES_MAIN_APPROVAL"
)

// RouteFor decides how a source->destination movement is governed:
// MAIN-initiated transfers execute immediately, everything else goes through
// MAIN-hub approval.
func RouteFor(sourceTier, destTier models.HubTier) (TransferRoute, error) {
	if err := validTier(sourceTier); err != nil {
		return "", err
	}
	if err := validTier(destTier); err != nil {
		return "", err
	}
	if sourceTier == models.TierMain {
		return RouteImmediate, nil
	}
	return RouteRequiresMainApproval, nil
}

// IsVisibleOverall reports whether a tier's balances belong in
// organization-wide aggregates. Only AGENCY is excluded.
func IsVisibleOverall(tier models.HubTier) (bool, error) {
	if err := validTier(tier); err != nil {
		return false, err
	}
	return tier != models.TierAgency, nil
}

func validTier(tier models.HubTier) error {
	switch tier {
	case models.TierMain, models.TierSub, models.TierAgency:
		return nil
	default:
		return fmt.Errorf("%w: %q", apperr.ErrUnknownTier, tier)
	}
}
