package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/model"
	"github.com/mmeshcher/gophermarket/internal/validation"
)

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

// ListCarts возвращает все корзины.
func (h *Handler) ListCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := h.service.ListCarts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]cartResponse, 0, len(carts))
	for i := range carts {
		resp = append(resp, toCartResponse(&carts[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetUserCart возвращает корзину указанного пользователя.
func (h *Handler) GetUserCart(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// ListOrders возвращает заказы с фильтрами status, from, to (RFC3339).
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOrderFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func parseOrderFilter(r *http.Request) (model.OrderFilter, error) {
	q := r.URL.Query()
	filter := model.OrderFilter{
		Status: model.OrderStatus(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
	}

	for key, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return model.OrderFilter{}, apperror.Validation("query parameter " + key + " must be RFC3339")
		}
		*dst = t
	}

	return filter, nil
}

// UpdateOrderStatus меняет статус заказа. Первый переход в DELIVERED запускает расчёт.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updateStatusRequest
	if err := validation.DecodeJSONBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), id, model.OrderStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// DeleteOrder удаляет заказ вместе со строками.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListWallets возвращает все кошельки с логинами владельцев.
func (h *Handler) ListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.service.ListWallets(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]walletResponse, 0, len(wallets))
	for _, wi := range wallets {
		resp = append(resp, walletResponse{
			UserID:    wi.UserID,
			Login:     wi.Login,
			Balance:   money(wi.Balance),
			UpdatedAt: timestamp(wi.UpdatedAt),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ListRevenue возвращает страницу журнала доходов площадки.
func (h *Handler) ListRevenue(w http.ResponseWriter, r *http.Request) {
	limit, err := validation.ParseQueryInt(r, "limit", 50, 1, 500)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := validation.ParseQueryInt(r, "offset", 0, 0, 1<<30)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rows, err := h.service.ListRevenue(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]revenueResponse, 0, len(rows))
	for _, rev := range rows {
		resp = append(resp, revenueResponse{
			ID:          rev.ID,
			OrderID:     rev.OrderID,
			ProductID:   rev.ProductID,
			SellerID:    rev.SellerID,
			Amount:      money(rev.Amount),
			Description: rev.Description,
			CreatedAt:   timestamp(rev.CreatedAt),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type revenueTotalResponse struct {
	Total string `json:"total"`
}

// TotalRevenue возвращает суммарный доход площадки.
func (h *Handler) TotalRevenue(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TotalRevenue(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, revenueTotalResponse{Total: money(total)})
}
