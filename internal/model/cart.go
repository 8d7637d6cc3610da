package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/gophermarket/internal/apperror"
)

// CartItem описывает строку корзины. Цена и остаток берутся из текущей карточки товара.
type CartItem struct {
	ID            int64
	ProductID     int64
	SellerID      int64
	ProductName   string
	UnitPrice     decimal.Decimal
	StockQuantity int
	Quantity      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Subtotal возвращает стоимость строки.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart описывает корзину пользователя.
type Cart struct {
	ID          int64
	UserID      int64
	Items       []CartItem
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Recalculate пересчитывает итог корзины по текущим строкам.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	c.TotalAmount = total
}

// IsEmpty сообщает, пуста ли корзина.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// AddItem добавляет товар в корзину. Повторное добавление того же товара
// увеличивает количество в существующей строке.
func (c *Cart) AddItem(p Product, qty int) error {
	if qty <= 0 {
		return apperror.Validation("quantity must be positive")
	}

	idx := c.indexOfProduct(p.ID)
	newQty := qty
	if idx >= 0 {
		newQty += c.Items[idx].Quantity
	}
	if newQty > p.StockQuantity {
		return apperror.New(apperror.CodeInsufficientStock,
			fmt.Sprintf("not enough stock for product %d: requested %d, available %d", p.ID, newQty, p.StockQuantity))
	}

	if idx >= 0 {
		c.Items[idx].Quantity = newQty
		c.Items[idx].UnitPrice = p.Price
		c.Items[idx].StockQuantity = p.StockQuantity
	} else {
		c.Items = append(c.Items, CartItem{
			ProductID:     p.ID,
			SellerID:      p.SellerID,
			ProductName:   p.Name,
			UnitPrice:     p.Price,
			StockQuantity: p.StockQuantity,
			Quantity:      qty,
		})
	}

	c.Recalculate()
	return nil
}

// SetQuantity устанавливает количество в строке itemID. Количество <= 0 удаляет строку.
func (c *Cart) SetQuantity(itemID int64, qty int) error {
	idx := c.indexOfItem(itemID)
	if idx < 0 {
		return apperror.NotFound(fmt.Sprintf("cart item %d not found", itemID))
	}

	if qty <= 0 {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		c.Recalculate()
		return nil
	}

	item := c.Items[idx]
	if qty > item.StockQuantity {
		return apperror.New(apperror.CodeInsufficientStock,
			fmt.Sprintf("not enough stock for product %d: requested %d, available %d", item.ProductID, qty, item.StockQuantity))
	}
	c.Items[idx].Quantity = qty

	c.Recalculate()
	return nil
}

// RemoveItem удаляет строку itemID из корзины.
func (c *Cart) RemoveItem(itemID int64) error {
	idx := c.indexOfItem(itemID)
	if idx < 0 {
		return apperror.NotFound(fmt.Sprintf("cart item %d not found", itemID))
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.Recalculate()
	return nil
}

// Clear очищает корзину, не удаляя её саму.
func (c *Cart) Clear() {
	c.Items = nil
	c.TotalAmount = decimal.Zero
}

func (c *Cart) indexOfProduct(productID int64) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) indexOfItem(itemID int64) int {
	if itemID == 0 {
		return -1
	}
	for i, item := range c.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}
