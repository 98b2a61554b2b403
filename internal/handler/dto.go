package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stats"
)

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       Money     `json:"price"`
	Stock       int       `json:"stock"`
	InStock     bool      `json:"in_stock"`
	Category    string    `json:"category"`
	Images      []string  `json:"images"`
	Featured    bool      `json:"featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type productRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Category    string          `json:"category" validate:"max=100"`
	Images      []string        `json:"images" validate:"max=20,dive,required"`
	Featured    bool            `json:"featured"`
}

func (r productRequest) input() product.Input {
	return product.Input{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Category:    r.Category,
		Images:      r.Images,
		Featured:    r.Featured,
	}
}

type couponResponse struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	Kind          string     `json:"kind"`
	Value         Money      `json:"value"`
	MinOrder      Money      `json:"min_order"`
	MaxUses       *int       `json:"max_uses"`
	UsedCount     int        `json:"used_count"`
	RemainingUses *int       `json:"remaining_uses"`
	Active        bool       `json:"active"`
	ExpiresAt     *time.Time `json:"expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// appliedCoupon is the customer-facing view of a coupon.
type appliedCoupon struct {
	Code  string `json:"code"`
	Kind  string `json:"kind"`
	Value Money  `json:"value"`
}

type couponRequest struct {
	Code      string          `json:"code" validate:"required,max=32"`
	Kind      string          `json:"kind" validate:"required,oneof=percentage fixed"`
	Value     decimal.Decimal `json:"value"`
	MinOrder  decimal.Decimal `json:"min_order"`
	MaxUses   *int            `json:"max_uses" validate:"omitempty,gte=0"`
	Active    *bool           `json:"active"`
	ExpiresAt *time.Time      `json:"expires_at"`
}

func (r couponRequest) input() coupon.Input {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return coupon.Input{
		Code:      r.Code,
		Kind:      coupon.Kind(r.Kind),
		Value:     r.Value,
		MinOrder:  r.MinOrder,
		MaxUses:   r.MaxUses,
		Active:    active,
		ExpiresAt: r.ExpiresAt,
	}
}

type validateCouponRequest struct {
	Code     string          `json:"code" validate:"required,max=64"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type validateCouponResponse struct {
	Valid    bool           `json:"valid"`
	Discount *Money         `json:"discount,omitempty"`
	Coupon   *appliedCoupon `json:"coupon,omitempty"`
	Error    string         `json:"error,omitempty"`
	Message  string         `json:"message,omitempty"`
	Minimum  *Money         `json:"minimum,omitempty"`
}

type cartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
}

type customerRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Phone     string `json:"phone" validate:"required,max=32"`
	Email     string `json:"email" validate:"omitempty,email"`
	Region    string `json:"region" validate:"required"`
	SubRegion string `json:"sub_region" validate:"required"`
	Address   string `json:"address" validate:"max=500"`
}

type checkoutRequest struct {
	Items        []cartItemRequest `json:"items" validate:"max=100,dive"`
	Customer     customerRequest   `json:"customer"`
	DeliveryMode string            `json:"delivery_mode" validate:"required"`
	CouponCode   string            `json:"coupon_code" validate:"max=64"`
	Notes        string            `json:"notes" validate:"max=1000"`
}

// quoteRequest is checkoutRequest without the fields only an order needs.
type quoteRequest struct {
	Items        []cartItemRequest `json:"items" validate:"max=100,dive"`
	Region       string            `json:"region" validate:"required"`
	DeliveryMode string            `json:"delivery_mode" validate:"required"`
	CouponCode   string            `json:"coupon_code" validate:"max=64"`
}

func cartItems(in []cartItemRequest) []order.CartItem {
	out := make([]order.CartItem, len(in))
	for i, it := range in {
		out[i] = order.CartItem{ProductID: strings.TrimSpace(it.ProductID), Quantity: it.Quantity}
	}
	return out
}

func (r checkoutRequest) checkout() (order.Checkout, error) {
	mode, err := delivery.ParseMode(r.DeliveryMode)
	if err != nil {
		return order.Checkout{}, err
	}
	c := r.Customer
	return order.Checkout{
		Items: cartItems(r.Items),
		Customer: order.Customer{
			Name:      strings.TrimSpace(c.Name),
			Phone:     strings.TrimSpace(c.Phone),
			Email:     strings.TrimSpace(c.Email),
			Region:    strings.TrimSpace(c.Region),
			SubRegion: strings.TrimSpace(c.SubRegion),
			Address:   strings.TrimSpace(c.Address),
		},
		DeliveryMode: mode,
		CouponCode:   r.CouponCode,
		Notes:        r.Notes,
	}, nil
}

func (r quoteRequest) checkout() (order.Checkout, error) {
	mode, err := delivery.ParseMode(r.DeliveryMode)
	if err != nil {
		return order.Checkout{}, err
	}
	return order.Checkout{
		Items:        cartItems(r.Items),
		Customer:     order.Customer{Region: strings.TrimSpace(r.Region)},
		DeliveryMode: mode,
		CouponCode:   r.CouponCode,
	}, nil
}

type lineItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unit_price"`
	Total     Money  `json:"total"`
	Image     string `json:"image,omitempty"`
}

type totalsResponse struct {
	Subtotal Money `json:"subtotal"`
	Discount Money `json:"discount"`
	Shipping Money `json:"shipping"`
	Total    Money `json:"total"`
}

func totals(t order.Totals) totalsResponse {
	return totalsResponse{
		Subtotal: money(t.Subtotal),
		Discount: money(t.Discount),
		Shipping: money(t.Shipping),
		Total:    money(t.Total),
	}
}

type quoteResponse struct {
	Items  []lineItemResponse `json:"items"`
	Coupon *appliedCoupon     `json:"coupon,omitempty"`
	totalsResponse
}

type customerResponse struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	Region    string `json:"region"`
	SubRegion string `json:"sub_region"`
	Address   string `json:"address,omitempty"`
}

type orderResponse struct {
	ID           string             `json:"id"`
	TrackingCode string             `json:"tracking_code"`
	Status       string             `json:"status"`
	Customer     customerResponse   `json:"customer"`
	Items        []lineItemResponse `json:"items"`
	totalsResponse
	CouponCode   *string   `json:"coupon_code"`
	DeliveryMode string    `json:"delivery_mode"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// trackResponse is the public view of an order. Contact details are left
// out because anyone holding the tracking code can read it.
type trackResponse struct {
	TrackingCode string             `json:"tracking_code"`
	Status       string             `json:"status"`
	Items        []lineItemResponse `json:"items"`
	totalsResponse
	DeliveryMode string    `json:"delivery_mode"`
	Region       string    `json:"region"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type correctionRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"required,max=500"`
}

type regionResponse struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	NameAr     string              `json:"name_ar,omitempty"`
	Home       Money               `json:"home"`
	Desk       Money               `json:"desk"`
	SubRegions []subRegionResponse `json:"sub_regions"`
}

type subRegionResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	NameAr string `json:"name_ar,omitempty"`
}

type priceResponse struct {
	Region string `json:"region"`
	Mode   string `json:"mode"`
	Price  Money  `json:"price"`
}

type productSalesResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Revenue   Money  `json:"revenue"`
}

type daySalesResponse struct {
	Date   string `json:"date"`
	Orders int    `json:"orders"`
	Sales  Money  `json:"sales"`
}

type statsResponse struct {
	Orders          int                    `json:"orders"`
	TotalRevenue    Money                  `json:"total_revenue"`
	AvgOrderValue   Money                  `json:"avg_order_value"`
	UniqueCustomers int                    `json:"unique_customers"`
	DeliveryRate    Money                  `json:"delivery_rate"`
	ByStatus        map[string]int         `json:"by_status"`
	TopProducts     []productSalesResponse `json:"top_products"`
	LastDays        []daySalesResponse     `json:"last_days"`
}

func (h *Handler) productResponse(p *product.Product) productResponse {
	images := make([]string, len(p.Images))
	for i, ref := range p.Images {
		images[i] = h.imageURL(ref)
	}
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
		Stock:       p.Stock,
		InStock:     p.Stock > 0,
		Category:    p.Category,
		Images:      images,
		Featured:    p.Featured,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (h *Handler) lineItems(items []order.LineItem) []lineItemResponse {
	out := make([]lineItemResponse, len(items))
	for i, li := range items {
		out[i] = lineItemResponse{
			ProductID: li.ProductID,
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: money(li.UnitPrice),
			Total:     money(li.Total()),
			Image:     h.imageURL(li.Image),
		}
	}
	return out
}

func (h *Handler) orderResponse(o *order.Order) orderResponse {
	c := o.Customer
	return orderResponse{
		ID:           o.ID,
		TrackingCode: o.TrackingCode,
		Status:       string(o.Status),
		Customer: customerResponse{
			Name:      c.Name,
			Phone:     c.Phone,
			Email:     c.Email,
			Region:    c.Region,
			SubRegion: c.SubRegion,
			Address:   c.Address,
		},
		Items:          h.lineItems(o.Items),
		totalsResponse: totals(o.Totals()),
		CouponCode:     o.CouponCode,
		DeliveryMode:   string(o.DeliveryMode),
		Notes:          o.Notes,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func (h *Handler) trackResponse(o *order.Order) trackResponse {
	return trackResponse{
		TrackingCode:   o.TrackingCode,
		Status:         string(o.Status),
		Items:          h.lineItems(o.Items),
		totalsResponse: totals(o.Totals()),
		DeliveryMode:   string(o.DeliveryMode),
		Region:         o.Customer.Region,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func couponResponseOf(c *coupon.Coupon) couponResponse {
	resp := couponResponse{
		ID:        c.ID,
		Code:      c.Code,
		Kind:      string(c.Kind),
		Value:     money(c.Value),
		MinOrder:  money(c.MinOrder),
		MaxUses:   c.MaxUses,
		UsedCount: c.UsedCount,
		Active:    c.Active,
		ExpiresAt: c.ExpiresAt,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if !c.Unlimited() {
		remaining := c.RemainingUses()
		resp.RemainingUses = &remaining
	}
	return resp
}

func appliedCouponOf(c *coupon.Coupon) *appliedCoupon {
	return &appliedCoupon{Code: c.Code, Kind: string(c.Kind), Value: money(c.Value)}
}

func regionResponseOf(r delivery.Region) regionResponse {
	subs := make([]subRegionResponse, len(r.SubRegions))
	for i, s := range r.SubRegions {
		subs[i] = subRegionResponse{ID: s.ID, Name: s.Name, NameAr: s.NameAr}
	}
	return regionResponse{
		ID:         r.ID,
		Name:       r.Name,
		NameAr:     r.NameAr,
		Home:       money(r.Rate.Home),
		Desk:       money(r.Rate.Desk),
		SubRegions: subs,
	}
}

func statsResponseOf(s stats.Summary) statsResponse {
	resp := statsResponse{
		Orders:          s.Orders,
		TotalRevenue:    money(s.TotalRevenue),
		AvgOrderValue:   money(s.AvgOrderValue),
		UniqueCustomers: s.UniqueCustomers,
		DeliveryRate:    money(s.DeliveryRate),
		ByStatus:        make(map[string]int, len(s.ByStatus)),
		TopProducts:     make([]productSalesResponse, len(s.TopProducts)),
		LastDays:        make([]daySalesResponse, len(s.LastDays)),
	}
	for st, n := range s.ByStatus {
		resp.ByStatus[string(st)] = n
	}
	for i, p := range s.TopProducts {
		resp.TopProducts[i] = productSalesResponse{ProductID: p.ProductID, Name: p.Name, Quantity: p.Quantity, Revenue: money(p.Revenue)}
	}
	for i, d := range s.LastDays {
		resp.LastDays[i] = daySalesResponse{Date: d.Date.Format(time.DateOnly), Orders: d.Orders, Sales: money(d.Sales)}
	}
	return resp
}
