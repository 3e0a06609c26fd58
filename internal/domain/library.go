package domain

import "time"

type LibraryBook struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Category   string `json:"category"`
	Format     string `json:"format"`
	CoverImage string `json:"coverImage"`
	EbookURL   string `json:"ebookUrl"`
}

// Purchase is one entry of the user's library as reported by the purchase service.
type Purchase struct {
	ID          string      `json:"id"`
	Book        LibraryBook `json:"book"`
	Amount      float64     `json:"amount"`
	PurchasedAt time.Time   `json:"purchasedAt"`
}
