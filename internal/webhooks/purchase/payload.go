package purchase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event is the normalized view of an inbound purchase webhook. Upstream
// platforms disagree on payload shape, so extraction tolerates flat fields,
// a "data" envelope, and a nested purchase object, in that order.
type Event struct {
	EventType     string
	TransactionID string
	Synthesized   bool
	BuyerName     string
	BuyerEmail    string
	BuyerPhone    string
	ProductName   string
	Price         decimal.Decimal
	Platform      string
}

type wirePayload struct {
	Event       string        `json:"event"`
	Platform    string        `json:"platform"`
	Transaction stringish     `json:"transaction"`
	Buyer       *wireBuyer    `json:"buyer"`
	Product     *wireProduct  `json:"product"`
	Purchase    *wirePurchase `json:"purchase"`
	Data        *wireEnvelope `json:"data"`
}

type wireEnvelope struct {
	Buyer    *wireBuyer    `json:"buyer"`
	Product  *wireProduct  `json:"product"`
	Purchase *wirePurchase `json:"purchase"`
}

type wireBuyer struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Cellphone     string `json:"cellphone"`
	CheckoutPhone string `json:"checkout_phone"`
}

type wireProduct struct {
	Name string `json:"name"`
}

type wirePurchase struct {
	Transaction stringish  `json:"transaction"`
	Price       *wirePrice `json:"price"`
}

type wirePrice struct {
	Value json.Number `json:"value"`
}

// stringish accepts both string and numeric transaction ids.
type stringish string

func (s *stringish) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = stringish(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = stringish(num.String())
		return nil
	}
	return fmt.Errorf("transaction id is neither string nor number")
}

// ParseEvent extracts the purchase event from a raw webhook body. A missing
// transaction id is synthesized from the current time, which makes the event
// effectively non-deduplicatable; callers can see that via Synthesized.
func ParseEvent(raw []byte, now time.Time) (*Event, error) {
	var wire wirePayload
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decoding webhook payload: %w", err)
	}

	flatBuyer, nestedBuyer := wire.Buyer, envelopeBuyer(wire)
	product := firstProduct(wire)
	purchase := firstPurchase(wire)

	evt := &Event{
		EventType: wire.Event,
		Platform:  wire.Platform,
	}
	if evt.EventType == "" {
		evt.EventType = "PURCHASE_APPROVED"
	}
	if evt.Platform == "" {
		evt.Platform = "webhook"
	}

	evt.TransactionID = string(wire.Transaction)
	if evt.TransactionID == "" && purchase != nil {
		evt.TransactionID = string(purchase.Transaction)
	}
	if evt.TransactionID == "" {
		evt.TransactionID = fmt.Sprintf("TX_%d", now.UnixMilli())
		evt.Synthesized = true
	}

	// prefer the flat field, fall back to the envelope field by field
	for _, buyer := range []*wireBuyer{flatBuyer, nestedBuyer} {
		if buyer == nil {
			continue
		}
		evt.BuyerName = firstNonEmpty(evt.BuyerName, buyer.Name)
		evt.BuyerEmail = firstNonEmpty(evt.BuyerEmail, buyer.Email)
		evt.BuyerPhone = firstNonEmpty(evt.BuyerPhone, buyer.Phone, buyer.Cellphone, buyer.CheckoutPhone)
	}
	if evt.BuyerName == "" {
		evt.BuyerName = "Desconhecido"
	}

	if product != nil && product.Name != "" {
		evt.ProductName = product.Name
	} else {
		evt.ProductName = "Produto"
	}

	if purchase != nil && purchase.Price != nil {
		if price, err := decimal.NewFromString(purchase.Price.Value.String()); err == nil {
			evt.Price = price
		}
	}

	return evt, nil
}

func envelopeBuyer(wire wirePayload) *wireBuyer {
	if wire.Data != nil {
		return wire.Data.Buyer
	}
	return nil
}

func firstProduct(wire wirePayload) *wireProduct {
	if wire.Product != nil {
		return wire.Product
	}
	if wire.Data != nil {
		return wire.Data.Product
	}
	return nil
}

func firstPurchase(wire wirePayload) *wirePurchase {
	if wire.Purchase != nil {
		return wire.Purchase
	}
	if wire.Data != nil {
		return wire.Data.Purchase
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
