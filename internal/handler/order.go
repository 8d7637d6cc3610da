package handler

import (
	"net/http"

	"github.com/mmeshcher/gophermarket/internal/model"
	"github.com/mmeshcher/gophermarket/internal/validation"
)

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required,max=500"`
	ContactPhone    string `json:"contact_phone" validate:"required,phone"`
	PaymentMethod   string `json:"payment_method" validate:"required,payment_method"`
}

// Checkout оформляет заказ из корзины текущего пользователя.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := validation.DecodeJSONBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.service.Checkout(r.Context(), actor.UserID, model.CheckoutRequest{
		ShippingAddress: req.ShippingAddress,
		ContactPhone:    req.ContactPhone,
		PaymentMethod:   model.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetMyOrders возвращает заказы текущего пользователя, новые первыми.
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListMyOrders(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// GetOrder возвращает заказ владельцу или администратору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.service.GetOrder(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder отменяет заказ и возвращает товар на склад.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.service.CancelOrder(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}
