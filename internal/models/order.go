package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/utils"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Price is a decimal amount. Clients send it either as a JSON number or a numeric string.
type Price float64

func (p *Price) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*p = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid price %q", s)
	}
	*p = Price(v)
	return nil
}

// UnmarshalBSONValue reads doubles, integers, decimals and numeric strings,
// so documents written by other clients still decode.
func (p *Price) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Double:
		*p = Price(rv.Double())
	case bsontype.Int32:
		*p = Price(rv.Int32())
	case bsontype.Int64:
		*p = Price(rv.Int64())
	case bsontype.Decimal128:
		v, err := strconv.ParseFloat(rv.Decimal128().String(), 64)
		if err != nil {
			return fmt.Errorf("invalid price %s", rv.Decimal128())
		}
		*p = Price(v)
	case bsontype.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(rv.StringValue()), 64)
		if err != nil {
			return fmt.Errorf("invalid price %q", rv.StringValue())
		}
		*p = Price(v)
	case bsontype.Null, bsontype.Undefined:
		*p = 0
	default:
		return fmt.Errorf("cannot decode %s into a price", t)
	}
	return nil
}

type LineItem struct {
	SKU       string `bson:"sku,omitempty" json:"sku,omitempty"`
	Name      string `bson:"name" json:"name" validate:"required_without=SKU"`
	UnitPrice Price  `bson:"unitPrice" json:"unitPrice" validate:"gte=0"`
	Price     Price  `bson:"price,omitempty" json:"price,omitempty" validate:"gte=0"`
	Quantity  int    `bson:"quantity" json:"quantity" validate:"gte=1"`
}

type Order struct {
	ID           primitive.ObjectID     `bson:"_id,omitempty" json:"_id"`
	Cart         []LineItem             `bson:"cart" json:"cart" validate:"required,min=1,dive"`
	CustomerInfo map[string]interface{} `bson:"customerInfo" json:"customerInfo" validate:"required"`
	Status       OrderStatus            `bson:"status" json:"status"`
	Total        Price                  `bson:"total" json:"total" validate:"gte=0"`
	CreatedAt    time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// Validate validates the Order
func (o *Order) Validate() error {
	err := utils.GetValidator().Struct(o)
	if err != nil {
		errs := utils.ParseErrors(err)
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs, " // "))
	}
	return nil
}

// OrderPatch is what a client may change on an existing order. Nil fields
// are left untouched.
type OrderPatch struct {
	Cart         *[]LineItem            `json:"cart" validate:"omitempty,min=1,dive"`
	CustomerInfo map[string]interface{} `json:"customerInfo"`
	Status       *OrderStatus           `json:"status"`
	Total        *Price                 `json:"total" validate:"omitempty,gte=0"`
}

// Validate checks field values and the status name.
func (p *OrderPatch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *p.Status)
	}
	if err := utils.GetValidator().Struct(p); err != nil {
		errs := utils.ParseErrors(err)
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs, " // "))
	}
	return nil
}

// Set builds the $set document. A new cart without a total gets its total
// recomputed so the two never disagree.
func (p *OrderPatch) Set() bson.M {
	set := bson.M{}
	if p.Status != nil {
		set["status"] = string(*p.Status)
	}
	if p.CustomerInfo != nil {
		set["customerInfo"] = p.CustomerInfo
	}
	if p.Cart != nil {
		cart := append([]LineItem(nil), (*p.Cart)...)
		fillLinePrices(cart)
		set["cart"] = cart
		if p.Total == nil {
			set["total"] = float64((&Order{Cart: cart}).ComputeTotal())
		}
	}
	if p.Total != nil {
		set["total"] = float64(*p.Total)
	}
	return set
}

// fillLinePrices sets each line's price to unitPrice * quantity when the client left it out.
func fillLinePrices(cart []LineItem) {
	for i := range cart {
		if cart[i].Price == 0 {
			cart[i].Price = cart[i].UnitPrice * Price(cart[i].Quantity)
		}
	}
}

// FillLinePrices is fillLinePrices for a whole order.
func (o *Order) FillLinePrices() {
	fillLinePrices(o.Cart)
}

// ComputeTotal sums unitPrice * quantity, rounded to cents.
func (o *Order) ComputeTotal() Price {
	var sum float64
	for _, item := range o.Cart {
		sum += float64(item.UnitPrice) * float64(item.Quantity)
	}
	return Price(math.Round(sum*100) / 100)
}

// OrderFilter narrows an order listing. Zero values mean "no constraint".
type OrderFilter struct {
	Status        OrderStatus
	CustomerEmail string
	From          *time.Time
	To            *time.Time
}

type OrderPage struct {
	Total      int64   `json:"total"`
	Page       int64   `json:"page"`
	TotalPages int64   `json:"totalPages"`
	Data       []Order `json:"data"`
}

type OrderStats struct {
	TotalOrders  int64   `json:"totalOrders"`
	TotalRevenue float64 `json:"totalRevenue"`
}

// MarshalJSON keeps Price a plain JSON number.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(p))
}
