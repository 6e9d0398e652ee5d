package domain

import "github.com/shopspring/decimal"

// Режимы ожидаемого ввода в CRM-боте.
const (
	PendingNote    = "note"
	PendingRemind  = "remind"
	PendingProfile = "profile"
)

// PendingInput — что должно означать следующее текстовое сообщение админа.
type PendingInput struct {
	Mode   string `json:"mode"`
	LeadID string `json:"lead_id"`
	Field  string `json:"field,omitempty"`
}

// Шаги диалога магазина.
const (
	StepEnterQty       = "enter_qty"
	StepEnterAddress   = "enter_address"
	StepEnterPayment   = "enter_payment"
	StepAwaitPriceFile = "await_price_file"

	StepProductCode  = "product_code"
	StepProductName  = "product_name"
	StepProductPrice = "product_price"
	StepProductUnit  = "product_unit"
	StepProductDesc  = "product_desc"
)

// ShopSession — состояние пользователя в боте магазина: корзина,
// текущий шаг и временные значения.
type ShopSession struct {
	Step           string                     `json:"step,omitempty"`
	Cart           map[string]decimal.Decimal `json:"cart,omitempty"`
	CartOrder      []string                   `json:"cart_order,omitempty"`
	PendingProduct string                     `json:"pending_product,omitempty"`
	PendingOrder   string                     `json:"pending_order,omitempty"`
	Draft          *Product                   `json:"draft,omitempty"`
}

// AddToCart adds qty of code, keeping first-added order for display.
func (s *ShopSession) AddToCart(code string, qty decimal.Decimal) {
	if s.Cart == nil {
		s.Cart = map[string]decimal.Decimal{}
	}
	if _, ok := s.Cart[code]; !ok {
		s.CartOrder = append(s.CartOrder, code)
	}
	s.Cart[code] = s.Cart[code].Add(qty)
}

// ClearCart empties the cart.
func (s *ShopSession) ClearCart() {
	s.Cart = nil
	s.CartOrder = nil
}

// Reset drops the step and every temporary value, keeping the cart.
func (s *ShopSession) Reset() {
	s.Step = ""
	s.PendingProduct = ""
	s.PendingOrder = ""
	s.Draft = nil
}
