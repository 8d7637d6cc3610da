// Package service реализует бизнес-логику маркетплейса: корзину, оформление
// и жизненный цикл заказов, расчёты с продавцами и вывод средств.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/events"
	"github.com/mmeshcher/gophermarket/internal/gateway"
	"github.com/mmeshcher/gophermarket/internal/metrics"
	"github.com/mmeshcher/gophermarket/internal/model"
	"github.com/mmeshcher/gophermarket/internal/settlement"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	// InTx выполняет fn в одной транзакции. Ошибка fn откатывает все изменения.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)

	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)

	ListCarts(ctx context.Context) ([]model.Cart, error)

	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)

	ListWallets(ctx context.Context) ([]model.WalletInfo, error)
	GetWithdrawalByCode(ctx context.Context, code string) (*model.WithdrawalTransaction, error)
	ListWithdrawals(ctx context.Context, userID int64) ([]model.WithdrawalTransaction, error)

	ListRevenue(ctx context.Context, limit, offset int) ([]model.WebsiteRevenue, error)
	TotalRevenue(ctx context.Context) (decimal.Decimal, error)
}

// Tx описывает операции внутри транзакции. Методы *ForUpdate блокируют строку до конца транзакции.
type Tx interface {
	settlement.Ledger

	GetOrCreateCart(ctx context.Context, userID int64) (*model.Cart, error)
	SaveCart(ctx context.Context, cart *model.Cart) error

	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetProductForUpdate(ctx context.Context, id int64) (*model.Product, error)
	UpdateProductStock(ctx context.Context, p *model.Product) error

	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrderForUpdate(ctx context.Context, id int64) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, o *model.Order) error
	DeleteOrder(ctx context.Context, id int64) error

	CreateWithdrawal(ctx context.Context, t *model.WithdrawalTransaction) error
	GetWithdrawalForUpdate(ctx context.Context, code string) (*model.WithdrawalTransaction, error)
	UpdateWithdrawal(ctx context.Context, t *model.WithdrawalTransaction) error
}

// PaymentGateway строит ссылки на оплату и проверяет обратные вызовы шлюза.
type PaymentGateway interface {
	BuildPaymentURL(req gateway.PaymentRequest) (string, error)
	Verify(cb gateway.Callback) error
}

// CallbackGuard отсекает одновременную обработку одного и того же обратного вызова.
type CallbackGuard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// Deps содержит необязательные зависимости сервиса. Нулевые поля заменяются заглушками.
type Deps struct {
	Gateway    PaymentGateway
	Settlement *settlement.Engine
	Guard      CallbackGuard
	Events     events.Publisher
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	repo    Repository
	gateway PaymentGateway
	settler *settlement.Engine
	guard   CallbackGuard
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService создаёт сервис с указанным репозиторием и зависимостями.
func NewService(repo Repository, deps Deps) *Service {
	s := &Service{
		repo:    repo,
		gateway: deps.Gateway,
		settler: deps.Settlement,
		guard:   deps.Guard,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
	if s.settler == nil {
		s.settler = settlement.NewEngine(settlement.DefaultPolicy())
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя с ролью USER.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (model.Actor, error) {
	return s.createUser(ctx, login, password, model.RoleUser)
}

// EnsureAdmin создаёт администратора, если пользователя с таким логином ещё нет.
func (s *Service) EnsureAdmin(ctx context.Context, login, password string) error {
	if login == "" || password == "" {
		return nil
	}
	_, err := s.createUser(ctx, login, password, model.RoleAdmin)
	if errors.Is(err, apperror.ErrConflict) {
		return nil
	}
	return err
}

func (s *Service) createUser(ctx context.Context, login, password string, role model.Role) (model.Actor, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return model.Actor{}, apperror.Validation("login and password are required")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.Actor{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, login, hashed, role)
	if err != nil {
		return model.Actor{}, err
	}
	return model.Actor{UserID: id, Role: role}, nil
}

// AuthenticateUser проверяет логин и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (model.Actor, error) {
	u, err := s.repo.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return model.Actor{}, ErrInvalidCredentials
		}
		return model.Actor{}, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return model.Actor{}, ErrInvalidCredentials
	}

	return model.Actor{UserID: u.ID, Role: u.Role}, nil
}

// newTransactionCode возвращает уникальный код заявки: 32 шестнадцатеричных символа.
func newTransactionCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Service) publish(ctx context.Context, eventType, key string, payload any) {
	env, err := events.NewEnvelope(eventType, key, payload)
	if err != nil {
		s.logger.Error("build event failed", zap.String("event", eventType), zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, env); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event", eventType),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
