package handler

import (
	"net/http"

	"github.com/mmeshcher/gophermarket/internal/validation"
)

type addItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// GetCart возвращает корзину текущего пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	cart, err := h.service.GetCart(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// AddCartItem добавляет товар в корзину.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := validation.DecodeJSONBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	cart, err := h.service.AddToCart(r.Context(), actor.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// UpdateCartItem меняет количество в строке корзины. Ноль и меньше удаляют строку.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	itemID, err := pathID(r, "itemID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updateItemRequest
	if err := validation.DecodeJSONBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	cart, err := h.service.UpdateCartItem(r.Context(), actor.UserID, itemID, *req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// RemoveCartItem удаляет строку из корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	itemID, err := pathID(r, "itemID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cart, err := h.service.RemoveCartItem(r.Context(), actor.UserID, itemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// ClearCart очищает корзину.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	cart, err := h.service.ClearCart(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toCartResponse(cart))
}
