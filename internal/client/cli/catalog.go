package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/dmitrijs2005/possync/internal/models"
)

func (a *App) printProducts(list []*models.Product) {
	if len(list) == 0 {
		a.println("No products.")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBARCODE\tPRICE\tSTOCK")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Barcode, formatCents(p.PriceCents), p.Stock)
	}
	w.Flush()
}

func (a *App) ListProducts(ctx context.Context) error {
	list, err := a.products.List(ctx)
	if err != nil {
		return err
	}
	a.printProducts(list)
	return nil
}

func (a *App) FindProduct(ctx context.Context, barcode string) error {
	list, err := a.products.FindByBarcode(ctx, barcode)
	if err != nil {
		return err
	}
	a.printProducts(list)
	return nil
}

func (a *App) AddProduct(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Name", a.out)
	if err != nil {
		return err
	}
	barcode, err := GetSimpleText(a.reader, "Barcode (optional)", a.out)
	if err != nil {
		return err
	}
	price, err := GetCents(a.reader, "Price, e.g. 2.50", a.out)
	if err != nil {
		return err
	}
	stock, err := GetInt(a.reader, "Stock", 0, a.out)
	if err != nil {
		return err
	}

	p, err := a.products.Create(ctx, &models.Product{
		Name:       name,
		Barcode:    barcode,
		PriceCents: price,
		Stock:      stock,
		Active:     true,
	})
	if err != nil {
		return err
	}
	a.printf("Product %s saved.\n", p.ID)
	return nil
}

// AttachImage uploads a picture for a product. It needs the server.
func (a *App) AttachImage(ctx context.Context, productID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p, err := a.products.AttachImage(ctx, productID, http.DetectContentType(data), data)
	if err != nil {
		return err
	}
	a.printf("Image stored as %s.\n", p.ImageKey)
	return nil
}

func (a *App) ListCustomers(ctx context.Context) error {
	list, err := a.customers.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.println("No customers.")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPHONE\tPOINTS")
	for _, c := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.ID, c.Name, c.Phone, c.LoyaltyPoints)
	}
	w.Flush()
	return nil
}

func (a *App) AddCustomer(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Name", a.out)
	if err != nil {
		return err
	}
	phone, err := GetSimpleText(a.reader, "Phone", a.out)
	if err != nil {
		return err
	}
	c, err := a.customers.Create(ctx, &models.Customer{Name: name, Phone: phone})
	if err != nil {
		return err
	}
	a.printf("Customer %s saved.\n", c.ID)
	return nil
}

// Delete removes a product, customer or sale by id.
func (a *App) Delete(ctx context.Context, kind, id string) error {
	var err error
	switch kind {
	case "product":
		err = a.products.Delete(ctx, id)
	case "customer":
		err = a.customers.Delete(ctx, id)
	case "sale":
		err = a.sales.Delete(ctx, id)
	default:
		a.println("Usage: delete <product|customer|sale> <id>")
		return nil
	}
	if err != nil {
		return err
	}
	a.println("Deleted.")
	return nil
}
