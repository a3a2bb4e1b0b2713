package stock

import (
	"time"

	"drims-backend/internal/models"

	"gorm.io/gorm"
)

// BalanceTx folds the committed signed quantities for one (depot, item)
// account, optionally up to a point in time. It is the single authority for
// balances: the ledger calls it inside the same transaction as any write it
// validates, the read views call it with whatever db handle they hold.
func BalanceTx(tx *gorm.DB, depotID, itemID uint, asOf *time.Time) (int64, error) {
	q := tx.Model(&models.Transaction{}).
		Where("depot_id = ? AND item_id = ? AND status = ?", depotID, itemID, models.TxnCommitted)
	if asOf != nil {
		q = q.Where("occurred_at <= ?", *asOf)
	}

	var balance int64
	if err := q.Select("COALESCE(SUM(quantity), 0)").Scan(&balance).Error; err != nil {
		return 0, err
	}
	return balance, nil
}
