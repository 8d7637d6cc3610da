package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/events"
	"github.com/mmeshcher/gophermarket/internal/model"
	"github.com/mmeshcher/gophermarket/internal/settlement"
)

// Checkout оформляет заказ из корзины пользователя: списывает остатки,
// фиксирует снимки товаров и очищает корзину. Всё выполняется в одной транзакции.
func (s *Service) Checkout(ctx context.Context, userID int64, req model.CheckoutRequest) (*model.Order, error) {
	if !req.PaymentMethod.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}

	var order *model.Order
	err := s.repo.InTx(ctx, func(tx Tx) error {
		cart, err := tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if cart.IsEmpty() {
			return apperror.ErrEmptyCart
		}

		products, err := lockProducts(ctx, tx, cartProductIDs(cart))
		if err != nil {
			return err
		}

		details := make([]model.OrderDetail, 0, len(cart.Items))
		for i := range cart.Items {
			item := &cart.Items[i]
			p := products[item.ProductID]
			if err := p.ReduceStock(item.Quantity); err != nil {
				return err
			}
			item.UnitPrice = p.Price
			details = append(details, model.SnapshotDetail(*p, item.Quantity))
		}

		for _, id := range sortedIDs(products) {
			if err := tx.UpdateProductStock(ctx, products[id]); err != nil {
				return fmt.Errorf("update stock of product %d: %w", id, err)
			}
		}

		o, err := model.NewOrder(cart, req, details)
		if err != nil {
			return err
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		cart.Clear()
		if err := tx.SaveCart(ctx, cart); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		order = o
		return nil
	})
	if err != nil {
		s.metrics.IncCheckout(string(apperror.CodeOf(err)))
		return nil, err
	}

	s.metrics.IncCheckout("ok")
	s.logger.Info("order created",
		zap.Int64("orderID", order.ID),
		zap.Int64("userID", userID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)

	lines := make([]events.OrderLine, 0, len(order.Details))
	for _, d := range order.Details {
		lines = append(lines, events.OrderLine{
			ProductID: d.ProductID,
			SellerID:  d.SellerID,
			Quantity:  d.Quantity,
			UnitPrice: d.UnitPrice,
		})
	}
	s.publish(ctx, events.EventOrderCreated, events.OrderKey(order.ID), events.OrderCreatedPayload{
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentMethod: string(order.PaymentMethod),
		TotalAmount:   order.TotalAmount,
		Lines:         lines,
	})

	return order, nil
}

// GetOrder возвращает заказ владельцу или администратору.
func (s *Service) GetOrder(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(o.UserID) {
		return nil, apperror.New(apperror.CodeUnauthorized, fmt.Sprintf("order %d belongs to another user", orderID))
	}
	return o, nil
}

// ListMyOrders возвращает заказы пользователя, новые первыми.
func (s *Service) ListMyOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.ListOrders(ctx, model.OrderFilter{UserID: userID})
}

// ListOrders возвращает заказы по фильтру.
func (s *Service) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown order status %q", filter.Status))
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, apperror.Validation("'to' must not be before 'from'")
	}
	return s.repo.ListOrders(ctx, filter)
}

// CancelOrder отменяет заказ в статусе PENDING или PROCESSING и возвращает
// товар на склад.
func (s *Service) CancelOrder(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	var (
		order *model.Order
		from  model.OrderStatus
	)
	err := s.repo.InTx(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.CanAccess(o.UserID) {
			return apperror.New(apperror.CodeUnauthorized, fmt.Sprintf("order %d belongs to another user", orderID))
		}

		from = o.Status
		if err := o.Cancel(); err != nil {
			return err
		}

		ids := make([]int64, 0, len(o.Details))
		qty := make(map[int64]int, len(o.Details))
		for _, d := range o.Details {
			if _, ok := qty[d.ProductID]; !ok {
				ids = append(ids, d.ProductID)
			}
			qty[d.ProductID] += d.Quantity
		}

		products, err := lockProducts(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, id := range sortedIDs(products) {
			p := products[id]
			p.IncreaseStock(qty[id])
			if err := tx.UpdateProductStock(ctx, p); err != nil {
				return fmt.Errorf("restock product %d: %w", id, err)
			}
		}

		if err := tx.UpdateOrderStatus(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncStatusTransition(string(order.Status))
	s.logger.Info("order cancelled", zap.Int64("orderID", order.ID), zap.Int64("actorID", actor.UserID))
	s.publish(ctx, events.EventOrderStatusChanged, events.OrderKey(order.ID), events.OrderStatusChangedPayload{
		OrderID:       order.ID,
		From:          string(from),
		To:            string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Restocked:     true,
	})
	return order, nil
}

// UpdateOrderStatus выполняет административную смену статуса. Первый переход
// в DELIVERED проводит расчёт с продавцами в той же транзакции.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) (*model.Order, error) {
	var (
		order  *model.Order
		change model.StatusChange
		result *settlement.Result
	)
	err := s.repo.InTx(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		change, err = o.ApplyStatus(status, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		if change.Settle {
			result, err = s.settler.Settle(ctx, tx, o)
			if err != nil {
				return fmt.Errorf("settle order %d: %w", o.ID, err)
			}
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncStatusTransition(string(order.Status))
	s.logger.Info("order status changed",
		zap.Int64("orderID", order.ID),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)),
	)
	s.publish(ctx, events.EventOrderStatusChanged, events.OrderKey(order.ID), events.OrderStatusChangedPayload{
		OrderID:       order.ID,
		From:          string(change.From),
		To:            string(change.To),
		PaymentStatus: string(order.PaymentStatus),
	})

	if result != nil {
		s.metrics.ObserveSettlement(len(result.Lines), result.SellerTotal, result.PlatformTotal)
		lines := make([]events.SettlementLine, 0, len(result.Lines))
		for _, l := range result.Lines {
			lines = append(lines, events.SettlementLine{
				ProductID:     l.ProductID,
				SellerID:      l.SellerID,
				SellerShare:   l.SellerShare,
				PlatformShare: l.PlatformShare,
			})
		}
		s.publish(ctx, events.EventOrderSettled, events.OrderKey(order.ID), events.OrderSettledPayload{
			OrderID:       order.ID,
			SellerTotal:   result.SellerTotal,
			PlatformTotal: result.PlatformTotal,
			Lines:         lines,
		})
	}

	return order, nil
}

// DeleteOrder безвозвратно удаляет заказ. Остатки и кошельки не корректируются.
func (s *Service) DeleteOrder(ctx context.Context, orderID int64) error {
	err := s.repo.InTx(ctx, func(tx Tx) error {
		return tx.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("order deleted", zap.Int64("orderID", orderID))
	return nil
}

func cartProductIDs(cart *model.Cart) []int64 {
	ids := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// lockProducts блокирует товары строго по возрастанию id.
func lockProducts(ctx context.Context, tx Tx, ids []int64) (map[int64]*model.Product, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	products := make(map[int64]*model.Product, len(sorted))
	for _, id := range sorted {
		if _, ok := products[id]; ok {
			continue
		}
		p, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock product %d: %w", id, err)
		}
		products[id] = p
	}
	return products, nil
}

func sortedIDs(products map[int64]*model.Product) []int64 {
	ids := make([]int64, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
