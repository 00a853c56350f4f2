package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/possync/internal/client/remote"
	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/dmitrijs2005/possync/internal/netx"
)

type Products struct {
	*Repository[models.Product, *models.Product]
	images remote.Images
	http   *http.Client
}

func NewProducts(deps Deps, images remote.Images, httpClient *http.Client) *Products {
	return &Products{
		Repository: NewRepository[models.Product](deps),
		images:     images,
		http:       httpClient,
	}
}

func (p *Products) FindByBarcode(ctx context.Context, barcode string) ([]*models.Product, error) {
	return p.FindByAlternateKey(ctx, "barcode", barcode)
}

// AttachImage uploads data to object storage and stores the object key on
// the product. Uploads need the server, so there is no offline path.
func (p *Products) AttachImage(ctx context.Context, id, contentType string, data []byte) (*models.Product, error) {
	key, url, err := p.images.PresignImageUpload(ctx, id, contentType)
	if err != nil {
		return nil, err
	}
	if err := netx.UploadToPresignedURL(ctx, p.http, url, contentType, data); err != nil {
		return nil, fmt.Errorf("%w: upload image: %w", common.ErrRemoteUnreachable, err)
	}
	return p.Update(ctx, id, map[string]any{"image_key": key})
}

// Image downloads the product picture.
func (p *Products) Image(ctx context.Context, prod *models.Product) ([]byte, error) {
	if prod.ImageKey == "" {
		return nil, fmt.Errorf("product %s has no image: %w", prod.ID, common.ErrNotFound)
	}
	url, err := p.images.PresignImageDownload(ctx, prod.ImageKey)
	if err != nil {
		return nil, err
	}
	return netx.DownloadFromPresignedURL(ctx, p.http, url)
}

type Customers struct {
	*Repository[models.Customer, *models.Customer]
}

func NewCustomers(deps Deps) *Customers {
	return &Customers{Repository: NewRepository[models.Customer](deps)}
}

func (c *Customers) FindByPhone(ctx context.Context, phone string) ([]*models.Customer, error) {
	return c.FindByAlternateKey(ctx, "phone", phone)
}

type SaleItems struct {
	*Repository[models.SaleItem, *models.SaleItem]
}

func NewSaleItems(deps Deps) *SaleItems {
	return &SaleItems{Repository: NewRepository[models.SaleItem](deps)}
}

func (s *SaleItems) ForSale(ctx context.Context, saleID string) ([]*models.SaleItem, error) {
	return s.FindByAlternateKey(ctx, "sale_id", saleID)
}

// CartLine is one product line at checkout.
type CartLine struct {
	Product  *models.Product
	Quantity int64
}

type Sales struct {
	*Repository[models.Sale, *models.Sale]
	items *SaleItems
}

func NewSales(deps Deps, items *SaleItems) *Sales {
	return &Sales{Repository: NewRepository[models.Sale](deps), items: items}
}

// Checkout records a completed sale and its line items. The sale is written
// first so that queued items never precede it. Each write falls back to the
// local store on its own.
func (s *Sales) Checkout(ctx context.Context, customerID string, method models.PaymentMethod, discountCents int64, lines []CartLine) (*models.Sale, []*models.SaleItem, error) {
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("%w: empty cart", common.ErrValidation)
	}

	var total int64
	for _, l := range lines {
		if l.Product == nil || l.Quantity <= 0 {
			return nil, nil, fmt.Errorf("%w: bad cart line", common.ErrValidation)
		}
		total += l.Product.PriceCents * l.Quantity
	}
	if discountCents > total {
		discountCents = total
	}

	sale, err := s.Create(ctx, &models.Sale{
		CustomerID:    customerID,
		TotalCents:    total - discountCents,
		DiscountCents: discountCents,
		PaymentMethod: method,
		Status:        models.SaleCompleted,
	})
	if err != nil {
		return nil, nil, err
	}

	items := make([]*models.SaleItem, 0, len(lines))
	for _, l := range lines {
		item, err := s.items.Create(ctx, &models.SaleItem{
			SaleID:         sale.ID,
			ProductID:      l.Product.ID,
			ProductName:    l.Product.Name,
			Quantity:       l.Quantity,
			UnitPriceCents: l.Product.PriceCents,
			LineTotalCents: l.Product.PriceCents * l.Quantity,
		})
		if err != nil {
			return sale, items, fmt.Errorf("sale %s: %w", sale.ID, err)
		}
		items = append(items, item)
	}
	return sale, items, nil
}
