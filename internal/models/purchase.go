package models

import (
	"time"

	"github.com/google/uuid"
)

// Purchase is one immutable ledger entry. All entries created by a single
// checkout share a TransactionID. Product is joined at read time and may be
// nil if the listing was deleted after the purchase.
type Purchase struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"-"`
	ProductID     uuid.UUID `json:"product_id"`
	Quantity      int       `json:"quantity"`
	TransactionID string    `json:"transactionId"`
	PurchasedAt   time.Time `json:"purchasedAt"`
	Product       *Product  `json:"product,omitempty"`
}

// Transaction groups the ledger entries of one checkout. PurchasedAt is the
// timestamp of the group's first entry.
type Transaction struct {
	TransactionID string     `json:"transactionId"`
	Items         []Purchase `json:"items"`
	PurchasedAt   time.Time  `json:"purchasedAt"`
}

type CheckoutResponse struct {
	Message       string     `json:"message"`
	TransactionID string     `json:"transactionId"`
	Items         []Purchase `json:"items"`
}

type PurchaseHistoryResponse struct {
	Transactions []Transaction `json:"transactions"`
}
