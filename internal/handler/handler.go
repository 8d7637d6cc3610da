// Package handler содержит HTTP-обработчики API сервиса gophermarket.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/gateway"
	"github.com/mmeshcher/gophermarket/internal/metrics"
	"github.com/mmeshcher/gophermarket/internal/middleware"
	"github.com/mmeshcher/gophermarket/internal/model"
	"github.com/mmeshcher/gophermarket/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (model.Actor, error)
	AuthenticateUser(ctx context.Context, login, password string) (model.Actor, error)

	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)

	GetCart(ctx context.Context, userID int64) (*model.Cart, error)
	ListCarts(ctx context.Context) ([]model.Cart, error)
	AddToCart(ctx context.Context, userID, productID int64, qty int) (*model.Cart, error)
	UpdateCartItem(ctx context.Context, userID, itemID int64, qty int) (*model.Cart, error)
	RemoveCartItem(ctx context.Context, userID, itemID int64) (*model.Cart, error)
	ClearCart(ctx context.Context, userID int64) (*model.Cart, error)

	Checkout(ctx context.Context, userID int64, req model.CheckoutRequest) (*model.Order, error)
	GetOrder(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error)
	ListMyOrders(ctx context.Context, userID int64) ([]model.Order, error)
	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	CancelOrder(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) (*model.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error

	GetWallet(ctx context.Context, userID int64) (*model.Wallet, error)
	ListWallets(ctx context.Context) ([]model.WalletInfo, error)
	ListWithdrawals(ctx context.Context, userID int64) ([]model.WithdrawalTransaction, error)
	CreateWithdrawalRequest(ctx context.Context, req service.WithdrawalRequest) (*service.WithdrawalResult, error)
	ProcessWithdrawalCallback(ctx context.Context, cb gateway.Callback) (*model.WithdrawalTransaction, error)

	ListRevenue(ctx context.Context, limit, offset int) ([]model.WebsiteRevenue, error)
	TotalRevenue(ctx context.Context) (decimal.Decimal, error)
}

// Options содержит необязательные параметры обработчика.
type Options struct {
	// FrontendURL задаёт адрес клиентского приложения для возврата после шлюза.
	FrontendURL string
	// Metrics снимает метрики HTTP-запросов.
	Metrics *metrics.Metrics
	// MetricsHandler отдаёт метрики по /metrics. Nil отключает маршрут.
	MetricsHandler http.Handler
}

// Handler реализует HTTP-обработчики API сервиса gophermarket.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	opts           Options
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, opts Options) *Handler {
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		opts:           opts,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response error", zap.Error(err))
	}
}

// writeError отображает ошибку в ответ {"code","message"}. Внутренние ошибки
// пишутся в журнал, клиент получает только общий текст.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrInvalidCredentials) {
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{
			Code:    string(apperror.CodeUnauthorized),
			Message: err.Error(),
		})
		return
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) || appErr.Code() == apperror.CodeInternal {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    string(apperror.CodeInternal),
			Message: "internal error",
		})
		return
	}

	h.logger.Info("request rejected",
		zap.String("path", r.URL.Path),
		zap.String("code", string(appErr.Code())),
		zap.String("message", appErr.Message()),
	)
	h.writeJSON(w, apperror.HTTPStatus(appErr.Code()), errorResponse{
		Code:    string(appErr.Code()),
		Message: appErr.Message(),
	})
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return model.Actor{}, false
	}
	return actor, true
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.Validation("invalid " + name)
	}
	return id, nil
}
