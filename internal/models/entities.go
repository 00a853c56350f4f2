package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/possync/internal/common"
)

type Product struct {
	Base
	Name       string `json:"name"`
	SKU        string `json:"sku,omitempty"`
	Barcode    string `json:"barcode,omitempty"`
	Category   string `json:"category,omitempty"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents,omitempty"`
	Stock      int64  `json:"stock"`
	ImageKey   string `json:"image_key,omitempty"`
	Active     bool   `json:"active"`
}

func (*Product) Table() Table { return TableProducts }

func (p *Product) IndexValue(column string) string {
	if v, ok := p.baseIndex(column); ok {
		return v
	}
	switch column {
	case "barcode":
		return p.Barcode
	case "sku":
		return p.SKU
	}
	return ""
}

func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", common.ErrValidation)
	}
	if p.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", common.ErrValidation)
	}
	return nil
}

type Customer struct {
	Base
	Name          string `json:"name"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Notes         string `json:"notes,omitempty"`
	LoyaltyPoints int64  `json:"loyalty_points,omitempty"`
}

func (*Customer) Table() Table { return TableCustomers }

func (c *Customer) IndexValue(column string) string {
	if v, ok := c.baseIndex(column); ok {
		return v
	}
	if column == "phone" {
		return c.Phone
	}
	return ""
}

func (c *Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Phone) == "" {
		return fmt.Errorf("%w: customer needs a name or a phone", common.ErrValidation)
	}
	return nil
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentMobile PaymentMethod = "mobile"
)

type SaleStatus string

const (
	SaleCompleted SaleStatus = "completed"
	SaleRefunded  SaleStatus = "refunded"
)

type Sale struct {
	Base
	CustomerID    string        `json:"customer_id,omitempty"`
	TotalCents    int64         `json:"total_cents"`
	DiscountCents int64         `json:"discount_cents,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Status        SaleStatus    `json:"status"`
	Note          string        `json:"note,omitempty"`
}

func (*Sale) Table() Table { return TableSales }

func (s *Sale) IndexValue(column string) string {
	if v, ok := s.baseIndex(column); ok {
		return v
	}
	if column == "customer_id" {
		return s.CustomerID
	}
	return ""
}

func (s *Sale) Validate() error {
	if s.TotalCents < 0 || s.DiscountCents < 0 {
		return fmt.Errorf("%w: sale amounts must not be negative", common.ErrValidation)
	}
	return nil
}

type SaleItem struct {
	Base
	SaleID         string `json:"sale_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name,omitempty"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

func (*SaleItem) Table() Table { return TableSaleItems }

func (i *SaleItem) IndexValue(column string) string {
	if v, ok := i.baseIndex(column); ok {
		return v
	}
	switch column {
	case "sale_id":
		return i.SaleID
	case "product_id":
		return i.ProductID
	}
	return ""
}

func (i *SaleItem) Validate() error {
	if i.SaleID == "" || i.ProductID == "" {
		return fmt.Errorf("%w: sale item needs sale_id and product_id", common.ErrValidation)
	}
	if i.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", common.ErrValidation)
	}
	return nil
}
