package purchase

import (
	"encoding/json"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// The purchase API predates this service and speaks its own field names.

var methodTags = map[domain.PaymentMethod]string{
	domain.PaymentMethodCard:         "tarjeta",
	domain.PaymentMethodPayPal:       "paypal",
	domain.PaymentMethodBankTransfer: "transferencia",
}

type purchaseBody struct {
	BookID   string        `json:"libroId"`
	Method   string        `json:"metodoPago"`
	Card     *cardData     `json:"cardData,omitempty"`
	PayPal   *paypalData   `json:"paypalData,omitempty"`
	Transfer *transferData `json:"transferenciaData,omitempty"`
}

type cardData struct {
	Number string `json:"numero"`
	Expiry string `json:"expiracion"`
	CVV    string `json:"cvv"`
	Holder string `json:"nombre"`
}

type paypalData struct {
	Email string `json:"email"`
}

type transferData struct {
	Reference string `json:"referencia"`
}

func toPurchaseBody(req domain.PurchaseRequest) purchaseBody {
	body := purchaseBody{
		BookID: req.BookID,
		Method: methodTags[req.PaymentMethod],
	}
	if req.Card != nil {
		body.Card = &cardData{
			Number: req.Card.Number,
			Expiry: req.Card.Expiry,
			CVV:    req.Card.CVV,
			Holder: req.Card.HolderName,
		}
	}
	if req.PayPal != nil {
		body.PayPal = &paypalData{Email: req.PayPal.Email}
	}
	if req.BankTransfer != nil {
		body.Transfer = &transferData{Reference: req.BankTransfer.ReferenceCode}
	}
	return body
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type wireBook struct {
	ID       string `json:"_id"`
	Title    string `json:"titulo"`
	Author   string `json:"autor"`
	Category string `json:"categoria"`
	Format   string `json:"formato"`
	Cover    string `json:"portada"`
	Ebook    string `json:"ebook"`
}

type wirePurchase struct {
	ID          string    `json:"_id"`
	Book        wireBook  `json:"libro"`
	Amount      float64   `json:"precio"`
	PurchasedAt time.Time `json:"fechaCompra"`
}

func (p wirePurchase) toDomain() domain.Purchase {
	return domain.Purchase{
		ID: p.ID,
		Book: domain.LibraryBook{
			ID:         p.Book.ID,
			Title:      p.Book.Title,
			Author:     p.Book.Author,
			Category:   p.Book.Category,
			Format:     p.Book.Format,
			CoverImage: p.Book.Cover,
			EbookURL:   p.Book.Ebook,
		},
		Amount:      p.Amount,
		PurchasedAt: p.PurchasedAt,
	}
}
