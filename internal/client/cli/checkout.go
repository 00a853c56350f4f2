package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/possync/internal/client/services"
	"github.com/dmitrijs2005/possync/internal/models"
)

func parsePaymentMethod(s string) (models.PaymentMethod, error) {
	switch m := models.PaymentMethod(strings.ToLower(s)); m {
	case "":
		return models.PaymentCash, nil
	case models.PaymentCash, models.PaymentCard, models.PaymentMobile:
		return m, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", s)
	}
}

// Checkout builds a cart by barcode and records the sale.
func (a *App) Checkout(ctx context.Context) error {
	customerID, err := a.pickCustomer(ctx)
	if err != nil {
		return err
	}

	var lines []services.CartLine
	for {
		barcode, err := GetSimpleText(a.reader, "Barcode (empty to finish)", a.out)
		if err != nil {
			return err
		}
		if barcode == "" {
			break
		}
		found, err := a.products.FindByBarcode(ctx, barcode)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			a.printf("No product with barcode %s.\n", barcode)
			continue
		}
		qty, err := GetInt(a.reader, "Quantity [1]", 1, a.out)
		if err != nil {
			return err
		}
		lines = append(lines, services.CartLine{Product: found[0], Quantity: qty})
		a.printf("+ %d x %s\n", qty, found[0].Name)
	}
	if len(lines) == 0 {
		a.println("Cart is empty, nothing to do.")
		return nil
	}

	answer, err := GetSimpleText(a.reader, "Payment method [cash/card/mobile]", a.out)
	if err != nil {
		return err
	}
	method, err := parsePaymentMethod(answer)
	if err != nil {
		return err
	}
	discount, err := GetCents(a.reader, "Discount (empty for none)", a.out)
	if err != nil {
		return err
	}

	sale, items, err := a.sales.Checkout(ctx, customerID, method, discount, lines)
	if err != nil {
		return err
	}
	a.printf("Sale %s: %d lines, total %s.\n", sale.ID, len(items), formatCents(sale.TotalCents))
	return nil
}

func (a *App) pickCustomer(ctx context.Context) (string, error) {
	phone, err := GetSimpleText(a.reader, "Customer phone (empty for walk-in)", a.out)
	if err != nil || phone == "" {
		return "", err
	}
	found, err := a.customers.FindByPhone(ctx, phone)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		a.println("No customer with that phone, continuing as walk-in.")
		return "", nil
	}
	a.printf("Customer: %s\n", found[0].Name)
	return found[0].ID, nil
}
