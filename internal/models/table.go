// Package models holds the records synchronized between the POS terminal and
// the server, and the closed registry of tables they live in.
package models

import (
	"fmt"
	"slices"

	"github.com/dmitrijs2005/possync/internal/common"
)

// Table names a partition of records. The set of tables is fixed by the
// registry below.
type Table string

const (
	TableProducts  Table = "products"
	TableCustomers Table = "customers"
	TableSales     Table = "sales"
	TableSaleItems Table = "sale_items"
)

// ColumnOwnerID is indexed on every table.
const ColumnOwnerID = "owner_id"

// Schema describes one table: its secondary index columns and how to
// allocate an empty record for decoding.
type Schema struct {
	Table Table
	// Indexes are non-unique lookup columns besides owner_id.
	Indexes []string
	newFn   func() Record
}

// New returns an empty record of the table's type.
func (s Schema) New() Record { return s.newFn() }

// HasIndex reports whether column can be used for index lookups.
func (s Schema) HasIndex(column string) bool {
	return column == ColumnOwnerID || slices.Contains(s.Indexes, column)
}

var registry = []Schema{
	{Table: TableProducts, Indexes: []string{"barcode", "sku"}, newFn: func() Record { return &Product{} }},
	{Table: TableCustomers, Indexes: []string{"phone"}, newFn: func() Record { return &Customer{} }},
	{Table: TableSales, Indexes: []string{"customer_id"}, newFn: func() Record { return &Sale{} }},
	{Table: TableSaleItems, Indexes: []string{"sale_id", "product_id"}, newFn: func() Record { return &SaleItem{} }},
}

// Tracked returns every synchronized table in download order.
func Tracked() []Schema {
	return slices.Clone(registry)
}

// Lookup returns the schema of t.
func Lookup(t Table) (Schema, error) {
	for _, s := range registry {
		if s.Table == t {
			return s, nil
		}
	}
	return Schema{}, fmt.Errorf("%w: %q", common.ErrUnknownTable, string(t))
}

// ParseTable validates a table name coming from the wire or the database.
func ParseTable(name string) (Table, error) {
	s, err := Lookup(Table(name))
	if err != nil {
		return "", err
	}
	return s.Table, nil
}
