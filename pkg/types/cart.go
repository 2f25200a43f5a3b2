package types

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartSnapshotItem is one purchasable line in a cart snapshot.
type CartSnapshotItem struct {
	ProductID    uuid.UUID          `json:"product_id"`
	Quantity     int                `json:"quantity"`
	UnitPrice    decimal.Decimal    `json:"price"`
	Attributes   AttributeSelection `json:"attributes,omitempty"`
	AttributeKey string             `json:"-"`
}

// CartSnapshot is the read model handed to the promotion evaluator and the
// checkout builder. It reflects only lines that still count toward totals.
type CartSnapshot struct {
	CartID   uuid.UUID          `json:"cart_id"`
	Subtotal decimal.Decimal    `json:"subtotal"`
	Items    []CartSnapshotItem `json:"cart_items"`
}

// Fingerprint returns a stable digest of the snapshot's pricing-relevant
// content. Two snapshots with the same lines in any order produce the same
// fingerprint; any quantity, price, or membership change produces a new one.
func (s CartSnapshot) Fingerprint() string {
	parts := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		var b strings.Builder
		b.WriteString(item.ProductID.String())
		b.WriteByte('|')
		b.WriteString(item.AttributeKey)
		b.WriteByte('|')
		b.WriteString(decimal.NewFromInt(int64(item.Quantity)).String())
		b.WriteByte('|')
		b.WriteString(item.UnitPrice.StringFixed(2))
		parts = append(parts, b.String())
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}

// IsEmpty reports whether the snapshot has no purchasable lines.
func (s CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}
