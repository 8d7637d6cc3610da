package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/model"
)

type memCartItem struct {
	ID        int64
	ProductID int64
	Quantity  int
}

type memCart struct {
	ID     int64
	UserID int64
	Items  []memCartItem
	Total  decimal.Decimal
}

type memState struct {
	seq         int64
	users       map[int64]model.User
	products    map[int64]model.Product
	carts       map[int64]memCart
	orders      map[int64]model.Order
	wallets     map[int64]model.Wallet
	withdrawals map[string]model.WithdrawalTransaction
	revenue     []model.WebsiteRevenue
}

func (s *memState) clone() *memState {
	c := &memState{
		seq:         s.seq,
		users:       make(map[int64]model.User, len(s.users)),
		products:    make(map[int64]model.Product, len(s.products)),
		carts:       make(map[int64]memCart, len(s.carts)),
		orders:      make(map[int64]model.Order, len(s.orders)),
		wallets:     make(map[int64]model.Wallet, len(s.wallets)),
		withdrawals: make(map[string]model.WithdrawalTransaction, len(s.withdrawals)),
		revenue:     append([]model.WebsiteRevenue(nil), s.revenue...),
	}
	for k, v := range s.users {
		v.PasswordHash = append([]byte(nil), v.PasswordHash...)
		c.users[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		v.Items = append([]memCartItem(nil), v.Items...)
		c.carts[k] = v
	}
	for k, v := range s.orders {
		v.Details = append([]model.OrderDetail(nil), v.Details...)
		c.orders[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	return c
}

// memRepo реализует Repository в памяти с транзакциями для тестов.
// InTx работает со снимком состояния и откатывает его при ошибке.
type memRepo struct {
	mu    sync.Mutex
	state *memState

	failCreateRevenue error
	txCount           int
}

func newMemRepo() *memRepo {
	return &memRepo{state: &memState{
		users:       make(map[int64]model.User),
		products:    make(map[int64]model.Product),
		carts:       make(map[int64]memCart),
		orders:      make(map[int64]model.Order),
		wallets:     make(map[int64]model.Wallet),
		withdrawals: make(map[string]model.WithdrawalTransaction),
	}}
}

func (r *memRepo) next() int64 {
	r.state.seq++
	return r.state.seq
}

func (r *memRepo) addProduct(sellerID int64, name, price string, stock int) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next()
	r.state.products[id] = model.Product{
		ID:            id,
		SellerID:      sellerID,
		Name:          name,
		Description:   name + " description",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	return id
}

func (r *memRepo) stock(productID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.products[productID].StockQuantity
}

func (r *memRepo) balance(userID int64) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.state.wallets[userID]
	if !ok {
		return decimal.Zero
	}
	return w.Balance
}

func (r *memRepo) setBalance(userID int64, amount string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.state.wallets[userID]
	if !ok {
		w = model.Wallet{ID: r.next(), UserID: userID}
	}
	w.Balance = decimal.RequireFromString(amount)
	r.state.wallets[userID] = w
}

func (r *memRepo) revenueRows() []model.WebsiteRevenue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.WebsiteRevenue(nil), r.state.revenue...)
}

func (r *memRepo) withdrawal(code string) model.WithdrawalTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.withdrawals[code]
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.txCount++
	snapshot := r.state.clone()
	if err := fn(&memTx{r: r}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *memRepo) CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.state.users {
		if u.Login == login {
			return 0, apperror.New(apperror.CodeConflict, fmt.Sprintf("user %s already exists", login))
		}
	}
	id := r.next()
	r.state.users[id] = model.User{ID: id, Login: login, PasswordHash: passwordHash, Role: role, CreatedAt: time.Now()}
	return id, nil
}

func (r *memRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.state.users {
		if u.Login == login {
			cp := u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user not found")
}

func (r *memRepo) CreateProduct(ctx context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.next()
	r.state.products[p.ID] = *p
	return nil
}

func (r *memRepo) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memTx{r: r}).GetProduct(ctx, id)
}

func (r *memRepo) ListCarts(ctx context.Context) ([]model.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memTx{r: r}
	var res []model.Cart
	for _, c := range r.state.carts {
		res = append(res, *tx.materialize(c))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *memRepo) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memTx{r: r}).GetOrderForUpdate(ctx, id)
}

func (r *memRepo) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Order
	for _, o := range r.state.orders {
		if filter.UserID != 0 && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && o.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && o.CreatedAt.After(filter.To) {
			continue
		}
		o.Details = append([]model.OrderDetail(nil), o.Details...)
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}

func (r *memRepo) ListWallets(ctx context.Context) ([]model.WalletInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.WalletInfo
	for _, w := range r.state.wallets {
		res = append(res, model.WalletInfo{Wallet: w, Login: r.state.users[w.UserID].Login})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *memRepo) GetWithdrawalByCode(ctx context.Context, code string) (*model.WithdrawalTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memTx{r: r}).GetWithdrawalForUpdate(ctx, code)
}

func (r *memRepo) ListWithdrawals(ctx context.Context, userID int64) ([]model.WithdrawalTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.WithdrawalTransaction
	for _, t := range r.state.withdrawals {
		if t.UserID == userID {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}

func (r *memRepo) ListRevenue(ctx context.Context, limit, offset int) ([]model.WebsiteRevenue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.state.revenue
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return append([]model.WebsiteRevenue(nil), rows[offset:end]...), nil
}

func (r *memRepo) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, rev := range r.state.revenue {
		total = total.Add(rev.Amount)
	}
	return total, nil
}

// memTx работает с состоянием memRepo под уже захваченным мьютексом.
type memTx struct {
	r *memRepo
}

func (t *memTx) materialize(c memCart) *model.Cart {
	cart := &model.Cart{ID: c.ID, UserID: c.UserID, TotalAmount: c.Total}
	for _, it := range c.Items {
		p := t.r.state.products[it.ProductID]
		cart.Items = append(cart.Items, model.CartItem{
			ID:            it.ID,
			ProductID:     it.ProductID,
			SellerID:      p.SellerID,
			ProductName:   p.Name,
			UnitPrice:     p.Price,
			StockQuantity: p.StockQuantity,
			Quantity:      it.Quantity,
		})
	}
	return cart
}

func (t *memTx) GetOrCreateCart(ctx context.Context, userID int64) (*model.Cart, error) {
	c, ok := t.r.state.carts[userID]
	if !ok {
		c = memCart{ID: t.r.next(), UserID: userID, Total: decimal.Zero}
		t.r.state.carts[userID] = c
	}
	return t.materialize(c), nil
}

func (t *memTx) SaveCart(ctx context.Context, cart *model.Cart) error {
	c, ok := t.r.state.carts[cart.UserID]
	if !ok {
		return apperror.NotFound("cart not found")
	}
	c.Items = c.Items[:0:0]
	for i := range cart.Items {
		if cart.Items[i].ID == 0 {
			cart.Items[i].ID = t.r.next()
		}
		c.Items = append(c.Items, memCartItem{
			ID:        cart.Items[i].ID,
			ProductID: cart.Items[i].ProductID,
			Quantity:  cart.Items[i].Quantity,
		})
	}
	c.Total = cart.TotalAmount
	t.r.state.carts[cart.UserID] = c
	return nil
}

func (t *memTx) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, ok := t.r.state.products[id]
	if !ok {
		return nil, apperror.NotFound(fmt.Sprintf("product %d not found", id))
	}
	return &p, nil
}

func (t *memTx) GetProductForUpdate(ctx context.Context, id int64) (*model.Product, error) {
	return t.GetProduct(ctx, id)
}

func (t *memTx) UpdateProductStock(ctx context.Context, p *model.Product) error {
	stored, ok := t.r.state.products[p.ID]
	if !ok {
		return apperror.NotFound(fmt.Sprintf("product %d not found", p.ID))
	}
	if p.StockQuantity < 0 {
		return fmt.Errorf("stock of product %d would become negative", p.ID)
	}
	stored.StockQuantity = p.StockQuantity
	t.r.state.products[p.ID] = stored
	return nil
}

func (t *memTx) CreateOrder(ctx context.Context, o *model.Order) error {
	o.ID = t.r.next()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Details {
		o.Details[i].ID = t.r.next()
		o.Details[i].OrderID = o.ID
	}
	stored := *o
	stored.Details = append([]model.OrderDetail(nil), o.Details...)
	t.r.state.orders[o.ID] = stored
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, id int64) (*model.Order, error) {
	o, ok := t.r.state.orders[id]
	if !ok {
		return nil, apperror.NotFound(fmt.Sprintf("order %d not found", id))
	}
	o.Details = append([]model.OrderDetail(nil), o.Details...)
	return &o, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, o *model.Order) error {
	stored, ok := t.r.state.orders[o.ID]
	if !ok {
		return apperror.NotFound(fmt.Sprintf("order %d not found", o.ID))
	}
	stored.Status = o.Status
	stored.PaymentStatus = o.PaymentStatus
	if stored.SettledAt.IsZero() {
		stored.SettledAt = o.SettledAt
	}
	stored.UpdatedAt = time.Now()
	t.r.state.orders[o.ID] = stored
	return nil
}

func (t *memTx) DeleteOrder(ctx context.Context, id int64) error {
	if _, ok := t.r.state.orders[id]; !ok {
		return apperror.NotFound(fmt.Sprintf("order %d not found", id))
	}
	delete(t.r.state.orders, id)
	return nil
}

func (t *memTx) EnsureWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	w, ok := t.r.state.wallets[userID]
	if !ok {
		w = model.Wallet{ID: t.r.next(), UserID: userID, Balance: decimal.Zero}
		t.r.state.wallets[userID] = w
	}
	return &w, nil
}

func (t *memTx) SaveWalletBalance(ctx context.Context, w *model.Wallet) error {
	if w.Balance.IsNegative() {
		return fmt.Errorf("wallet of user %d would become negative", w.UserID)
	}
	stored := t.r.state.wallets[w.UserID]
	stored.Balance = w.Balance
	t.r.state.wallets[w.UserID] = stored
	return nil
}

func (t *memTx) CreateRevenue(ctx context.Context, rev *model.WebsiteRevenue) error {
	if t.r.failCreateRevenue != nil {
		return t.r.failCreateRevenue
	}
	rev.ID = t.r.next()
	t.r.state.revenue = append(t.r.state.revenue, *rev)
	return nil
}

func (t *memTx) CreateWithdrawal(ctx context.Context, w *model.WithdrawalTransaction) error {
	if _, ok := t.r.state.withdrawals[w.TransactionCode]; ok {
		return apperror.New(apperror.CodeConflict, "duplicate transaction code")
	}
	w.ID = t.r.next()
	t.r.state.withdrawals[w.TransactionCode] = *w
	return nil
}

func (t *memTx) GetWithdrawalForUpdate(ctx context.Context, code string) (*model.WithdrawalTransaction, error) {
	w, ok := t.r.state.withdrawals[code]
	if !ok {
		return nil, apperror.NotFound(fmt.Sprintf("transaction %s not found", code))
	}
	return &w, nil
}

func (t *memTx) UpdateWithdrawal(ctx context.Context, w *model.WithdrawalTransaction) error {
	if _, ok := t.r.state.withdrawals[w.TransactionCode]; !ok {
		return apperror.NotFound(fmt.Sprintf("transaction %s not found", w.TransactionCode))
	}
	t.r.state.withdrawals[w.TransactionCode] = *w
	return nil
}
