// Package stats aggregates sales figures from placed orders.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	topProductsLimit = 5
	salesWindowDays  = 7
)

// ProductSales is the sold volume of one product.
type ProductSales struct {
	ProductID string
	Name      string
	Quantity  int
	Revenue   decimal.Decimal
}

// DaySales is the order volume of one calendar day (UTC).
type DaySales struct {
	Date   time.Time
	Orders int
	Sales  decimal.Decimal
}

// Summary is the sales overview shown to administrators.
type Summary struct {
	Orders          int
	TotalRevenue    decimal.Decimal
	AvgOrderValue   decimal.Decimal
	UniqueCustomers int
	// DeliveryRate is the percentage of orders in the delivered state.
	DeliveryRate decimal.Decimal
	ByStatus     map[order.Status]int
	TopProducts  []ProductSales
	// LastDays covers the seven days ending today, oldest first.
	LastDays []DaySales
}

var hundred = decimal.NewFromInt(100)

// Compute aggregates orders as of now. Product revenue is taken from the
// line item price snapshots.
func Compute(orders []order.Order, now time.Time) Summary {
	s := Summary{
		TotalRevenue:  decimal.Zero,
		AvgOrderValue: decimal.Zero,
		DeliveryRate:  decimal.Zero,
		ByStatus:      make(map[order.Status]int, 4),
	}

	today := now.UTC().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -(salesWindowDays - 1))
	s.LastDays = make([]DaySales, salesWindowDays)
	for i := range s.LastDays {
		s.LastDays[i] = DaySales{Date: first.AddDate(0, 0, i), Sales: decimal.Zero}
	}

	phones := make(map[string]struct{})
	products := make(map[string]*ProductSales)
	delivered := 0

	for _, o := range orders {
		s.Orders++
		s.TotalRevenue = s.TotalRevenue.Add(o.Total)
		s.ByStatus[o.Status]++
		phones[o.Customer.Phone] = struct{}{}
		if o.Status == order.StatusDelivered {
			delivered++
		}

		day := o.CreatedAt.UTC().Truncate(24 * time.Hour)
		if idx := int(day.Sub(first) / (24 * time.Hour)); !day.Before(first) && idx < salesWindowDays {
			s.LastDays[idx].Orders++
			s.LastDays[idx].Sales = s.LastDays[idx].Sales.Add(o.Total)
		}

		for _, li := range o.Items {
			ps, ok := products[li.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: li.ProductID, Name: li.Name, Revenue: decimal.Zero}
				products[li.ProductID] = ps
			}
			ps.Quantity += li.Quantity
			ps.Revenue = ps.Revenue.Add(li.Total())
		}
	}
	s.UniqueCustomers = len(phones)

	if s.Orders > 0 {
		n := decimal.NewFromInt(int64(s.Orders))
		s.AvgOrderValue = s.TotalRevenue.Div(n)
		s.DeliveryRate = decimal.NewFromInt(int64(delivered)).Mul(hundred).Div(n)
	}

	s.TopProducts = make([]ProductSales, 0, len(products))
	for _, ps := range products {
		s.TopProducts = append(s.TopProducts, *ps)
	}
	sort.Slice(s.TopProducts, func(i, j int) bool {
		a, b := s.TopProducts[i], s.TopProducts[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.ProductID < b.ProductID
	})
	if len(s.TopProducts) > topProductsLimit {
		s.TopProducts = s.TopProducts[:topProductsLimit]
	}

	return s
}

// OrderLister is the part of order.Repository the stats service reads.
type OrderLister interface {
	List(ctx context.Context, f order.Filter) ([]order.Order, error)
}

// Service computes summaries from the order store.
type Service struct {
	orders OrderLister
	now    func() time.Time
}

// NewService creates a stats Service.
func NewService(orders OrderLister) *Service {
	return &Service{orders: orders, now: time.Now}
}

// Summary reads every order and aggregates it.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	orders, err := s.orders.List(ctx, order.Filter{})
	if err != nil {
		return Summary{}, errors.Wrap(err, "list orders")
	}
	return Compute(orders, s.now()), nil
}
