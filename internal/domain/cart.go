package domain

import "errors"

var ErrInvalidPrice = errors.New("finalPrice must not be negative and listPrice must not be below finalPrice")

// Book is the catalog entry a caller adds to the cart.
type Book struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	CoverImage string  `json:"coverImage"`
	FinalPrice float64 `json:"finalPrice"`
	ListPrice  float64 `json:"listPrice"`
}

// CartItem is one book in the cart. Prices are captured when the book is
// added and never refreshed afterwards.
type CartItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	CoverImage string  `json:"coverImage"`
	FinalPrice float64 `json:"finalPrice"`
	ListPrice  float64 `json:"listPrice"`
	Quantity   int     `json:"quantity"`
}

// NewCartItem snapshots b with quantity 1. A missing list price is taken to
// be the final price.
func NewCartItem(b Book) CartItem {
	if b.ListPrice == 0 {
		b.ListPrice = b.FinalPrice
	}
	return CartItem{
		ID:         b.ID,
		Title:      b.Title,
		Author:     b.Author,
		CoverImage: b.CoverImage,
		FinalPrice: b.FinalPrice,
		ListPrice:  b.ListPrice,
		Quantity:   1,
	}
}

// ValidatePrices reports whether the book's prices can go into a cart.
func (b Book) ValidatePrices() error {
	if b.FinalPrice < 0 {
		return ErrInvalidPrice
	}
	if b.ListPrice != 0 && b.ListPrice < b.FinalPrice {
		return ErrInvalidPrice
	}
	return nil
}

func (i CartItem) Subtotal() float64 {
	return i.FinalPrice * float64(i.Quantity)
}

func TotalItemCount(items []CartItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func TotalPrice(items []CartItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}
