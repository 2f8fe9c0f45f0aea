package store

import (
	"time"

	"github.com/uptrace/bun"
)

const orderStatusPending = "pending"

type Business struct {
	bun.BaseModel `bun:"table:businesses,alias:b"`

	ID                     int64  `bun:"id,pk,autoincrement"`
	Name                   string `bun:"name,notnull"`
	WhatsAppNumber         string `bun:"whatsapp_number,notnull,unique"`
	BusinessType           string `bun:"business_type,notnull"`
	PersonalityDescription string `bun:"personality_description"`
}

type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID                 int64    `bun:"id,pk,autoincrement"`
	BusinessID         int64    `bun:"business_id,notnull"`
	SKU                string   `bun:"sku,notnull"`
	Name               string   `bun:"name,notnull"`
	Description        string   `bun:"description"`
	Price              *float64 `bun:"price"`
	Stock              int      `bun:"stock"`
	AvailabilityStatus string   `bun:"availability_status,notnull"`
	Unit               string   `bun:"unit,notnull"`
}

type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID          int64  `bun:"id,pk,autoincrement"`
	PhoneNumber string `bun:"phone_number,notnull,unique"`
	Name        string `bun:"name"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID         int64     `bun:"id,pk,autoincrement"`
	CustomerID int64     `bun:"customer_id,notnull"`
	BusinessID int64     `bun:"business_id,notnull"`
	Status     string    `bun:"status,notnull"`
	TotalPrice float64   `bun:"total_price"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID              int64   `bun:"id,pk,autoincrement"`
	OrderID         int64   `bun:"order_id,notnull"`
	ProductID       int64   `bun:"product_id,notnull"`
	Quantity        float64 `bun:"quantity,notnull"`
	PriceAtPurchase float64 `bun:"price_at_purchase,notnull"`
}

type cartRow struct {
	ProductID   int64   `bun:"product_id"`
	ProductName string  `bun:"product_name"`
	Quantity    float64 `bun:"quantity"`
	UnitPrice   float64 `bun:"unit_price"`
}
