package domain

import "github.com/shopspring/decimal"

type ShippingMethod struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

var shippingMethods = []ShippingMethod{
	{ID: "standard", Name: "Envío Estándar", Description: "5-7 días hábiles", Price: decimal.NewFromInt(5)},
	{ID: "express", Name: "Envío Express", Description: "2-3 días hábiles", Price: decimal.NewFromInt(10)},
	{ID: "pickup", Name: "Recoger en Tienda", Description: "Disponible inmediatamente", Price: decimal.Zero},
}

func ShippingMethodByID(id string) (ShippingMethod, bool) {
	for _, m := range shippingMethods {
		if m.ID == id {
			return m, true
		}
	}

	return ShippingMethod{}, false
}

func ShippingMethods() []ShippingMethod {
	out := make([]ShippingMethod, len(shippingMethods))
	copy(out, shippingMethods)

	return out
}
