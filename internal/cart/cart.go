// Package cart is the order-mutation core: it owns every line-item change
// inside a single order and the recomputation of subtotals and the order total.
// All arithmetic is decimal; float money does not enter this package.
package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/models"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrItemNotFound    = errors.New("item not found in order")
	ErrOrderClosed     = errors.New("order is completed or cancelled")
)

// AddItem puts quantity units of a product into the order. While the order is
// still PENDING an existing line for the same product is coalesced (quantities
// summed, unit price refreshed from the snapshot); once the kitchen has the
// order, repeat adds become separate lines so the new round is visible.
func AddItem(order *models.Order, product models.Product, quantity int, notes string) (*models.OrderItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if order.Status.Terminal() {
		return nil, ErrOrderClosed
	}

	if order.Status == models.OrderPending {
		for i := range order.Items {
			item := &order.Items[i]
			if item.ProductID == product.ID {
				item.Quantity += quantity
				item.UnitPrice = product.Price
				recomputeItem(item)
				recomputeTotal(order)
				return item, nil
			}
		}
	}

	return appendLine(order, product, quantity, notes), nil
}

// AppendItem is the explicit-add editing path: it always creates a new line,
// even when another line references the same product. The two entries are
// intentional on this path, so they are never merged.
func AppendItem(order *models.Order, product models.Product, quantity int, notes string) (*models.OrderItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if order.Status.Terminal() {
		return nil, ErrOrderClosed
	}
	return appendLine(order, product, quantity, notes), nil
}

func appendLine(order *models.Order, product models.Product, quantity int, notes string) *models.OrderItem {
	item := models.OrderItem{
		OrderID:     order.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   product.Price,
		Notes:       notes,
	}
	recomputeItem(&item)
	order.Items = append(order.Items, item)
	recomputeTotal(order)
	return &order.Items[len(order.Items)-1]
}

func IncrementItem(order *models.Order, itemID int64) error {
	if order.Status.Terminal() {
		return ErrOrderClosed
	}
	item := order.Item(itemID)
	if item == nil {
		return ErrItemNotFound
	}
	item.Quantity++
	recomputeItem(item)
	recomputeTotal(order)
	return nil
}

// DecrementItem lowers the quantity by one; an item that would drop to zero is
// removed rather than retained with quantity 0.
func DecrementItem(order *models.Order, itemID int64) error {
	if order.Status.Terminal() {
		return ErrOrderClosed
	}
	item := order.Item(itemID)
	if item == nil {
		return ErrItemNotFound
	}
	if item.Quantity <= 1 {
		return RemoveItem(order, itemID)
	}
	item.Quantity--
	recomputeItem(item)
	recomputeTotal(order)
	return nil
}

func RemoveItem(order *models.Order, itemID int64) error {
	if order.Status.Terminal() {
		return ErrOrderClosed
	}
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			order.Items = append(order.Items[:i], order.Items[i+1:]...)
			recomputeTotal(order)
			return nil
		}
	}
	return ErrItemNotFound
}

// ItemPatch carries the editable fields of a line item; nil means "unchanged".
type ItemPatch struct {
	Quantity *int
	Notes    *string
}

// EditItem replaces the given fields of one specific line. Unlike AddItem it
// never coalesces: the user is editing this entry, not adding to the cart.
func EditItem(order *models.Order, itemID int64, patch ItemPatch) error {
	if order.Status.Terminal() {
		return ErrOrderClosed
	}
	item := order.Item(itemID)
	if item == nil {
		return ErrItemNotFound
	}
	if patch.Quantity != nil {
		if *patch.Quantity < 1 {
			return ErrInvalidQuantity
		}
		item.Quantity = *patch.Quantity
	}
	if patch.Notes != nil {
		item.Notes = *patch.Notes
	}
	recomputeItem(item)
	recomputeTotal(order)
	return nil
}

// Total is the sum of the item subtotals. It is pure; Recompute applies it to
// the order's total field, the only legitimate way that field is written.
func Total(order *models.Order) decimal.Decimal {
	total := decimal.Zero
	for i := range order.Items {
		total = total.Add(order.Items[i].Subtotal)
	}
	return total
}

// Recompute refreshes every subtotal and the order total. Callers that mutate
// items outside this package (e.g. a full PUT replacement) run it before
// persisting so the derived fields can never drift.
func Recompute(order *models.Order) {
	for i := range order.Items {
		recomputeItem(&order.Items[i])
	}
	recomputeTotal(order)
}

func recomputeItem(item *models.OrderItem) {
	item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

func recomputeTotal(order *models.Order) {
	order.TotalAmount = Total(order)
}
