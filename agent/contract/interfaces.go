package contract

import "context"

// Product is the catalog view tools work with.
type Product struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Availability string   `json:"availability"`
	Unit         string   `json:"unit"`
	Price        *float64 `json:"price,omitempty"`
}

const (
	AvailabilityConfirmed   = "CONFIRMED"
	AvailabilityOutOfStock  = "OUT_OF_STOCK"
	AvailabilityUnconfirmed = "UNCONFIRMED"
	AvailabilityRejected    = "REJECTED"
)

// Answers a business gives to an unconfirmed product.
const (
	DecisionConfirm = "SI"
	DecisionReject  = "NO"
)

type CartLine struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type CartSummary struct {
	Lines []CartLine `json:"lines"`
	Total float64    `json:"total"`
}

// Business is the tenant a conversation belongs to.
type Business struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	WhatsAppNumber string `json:"whatsapp_number"`
	BusinessType   string `json:"business_type"`
	Personality    string `json:"personality"`
}

// Directory resolves businesses. Unknown ids wrap ErrUnknownBusiness.
type Directory interface {
	LookupBusiness(ctx context.Context, id int64) (Business, error)
}

// Catalog finds products for one business. A nil product with a nil error
// means nothing matched.
type Catalog interface {
	FindProduct(ctx context.Context, businessID int64, query string) (*Product, error)
}

// Cart mutates the customer's pending order for one business.
type Cart interface {
	AddItem(ctx context.Context, businessID int64, customerPhone string, productID int64, quantity, unitPrice float64) (float64, error)
	RemoveItem(ctx context.Context, businessID int64, customerPhone string, productID int64) (float64, bool, error)
	SetQuantity(ctx context.Context, businessID int64, customerPhone string, productID int64, quantity float64) (float64, bool, error)
	View(ctx context.Context, businessID int64, customerPhone string) (CartSummary, error)
}

// Notifier escalates catalog entries that need a human decision.
type Notifier interface {
	NotifyUnconfirmed(ctx context.Context, businessID int64, customerPhone string, product Product) error
}
