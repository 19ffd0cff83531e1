package models

import "time"

// Product is a catalog item owned by a seller.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	PriceCents  int64
	Stock       int
	SellerID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
