package handler

import (
	"net"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/gateway"
	"github.com/mmeshcher/gophermarket/internal/model"
	"github.com/mmeshcher/gophermarket/internal/service"
	"github.com/mmeshcher/gophermarket/internal/validation"
)

type withdrawRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	BankCode string          `json:"bank_code" validate:"omitempty,bankcode"`
}

type withdrawResponse struct {
	TransactionCode string `json:"transaction_code"`
	PaymentURL      string `json:"payment_url"`
}

// GetWallet возвращает кошелёк текущего пользователя.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, walletResponse{
		UserID:    wallet.UserID,
		Balance:   money(wallet.Balance),
		UpdatedAt: timestamp(wallet.UpdatedAt),
	})
}

// Withdraw создаёт заявку на вывод и возвращает ссылку на платёжный шлюз.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if err := validation.DecodeJSONBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := model.ValidateWithdrawalAmount(req.Amount); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.service.CreateWithdrawalRequest(r.Context(), service.WithdrawalRequest{
		UserID:   actor.UserID,
		Amount:   req.Amount,
		BankCode: req.BankCode,
		ClientIP: clientIP(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, withdrawResponse{
		TransactionCode: res.Transaction.TransactionCode,
		PaymentURL:      res.PaymentURL,
	})
}

// GetWithdrawals возвращает заявки на вывод текущего пользователя.
func (h *Handler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListWithdrawals(r.Context(), actor.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]withdrawalResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toWithdrawalResponse(&list[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GatewayCallback принимает возврат от шлюза и перенаправляет пользователя
// на страницу заявки в клиентском приложении.
func (h *Handler) GatewayCallback(w http.ResponseWriter, r *http.Request) {
	cb := gateway.ParseCallback(r.URL.Query())

	t, err := h.service.ProcessWithdrawalCallback(r.Context(), cb)
	if err != nil {
		code := apperror.CodeOf(err)
		h.logger.Warn("gateway callback rejected",
			zap.String("txnRef", cb.TxnRef),
			zap.String("code", string(code)),
			zap.Error(err),
		)
		status := apperror.HTTPStatus(code)
		http.Error(w, http.StatusText(status), status)
		return
	}

	q := url.Values{}
	q.Set(gateway.ParamResponseCode, cb.ResponseCode)
	q.Set(gateway.ParamTxnRef, cb.TxnRef)
	target := h.opts.FrontendURL + "/wallet/withdrawals/" + url.PathEscape(t.TransactionCode) + "?" + q.Encode()

	http.Redirect(w, r, target, http.StatusFound)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
