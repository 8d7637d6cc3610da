package service

import (
	"context"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/gophermarket/internal/gateway"
	"github.com/mmeshcher/gophermarket/internal/model"
)

const testHashSecret = "TESTSECRET"

func newTestGateway() *gateway.VNPay {
	return gateway.NewVNPay(gateway.Config{
		TmnCode:    "TMN",
		HashSecret: testHashSecret,
		PayURL:     "https://pay.example/vpcpay.html",
		ReturnURL:  "https://shop.example/api/gateway/vnpay/callback",
	})
}

func newTestService(repo *memRepo) *Service {
	return NewService(repo, Deps{Gateway: newTestGateway()})
}

func signedCallback(txnRef, responseCode string) gateway.Callback {
	q := url.Values{}
	q.Set("vnp_TxnRef", txnRef)
	q.Set("vnp_ResponseCode", responseCode)
	q.Set("vnp_TmnCode", "TMN")
	q.Set(gateway.ParamSecureHash, newTestGateway().Sign(q))
	return gateway.ParseCallback(q)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustEqualMoney(t *testing.T, what string, want string, got decimal.Decimal) {
	t.Helper()
	if !money(want).Equal(got) {
		t.Fatalf("%s = %s, want %s", what, got.StringFixed(2), want)
	}
}

func checkoutRequest() model.CheckoutRequest {
	return model.CheckoutRequest{
		ShippingAddress: "12 Nguyen Hue, District 1",
		ContactPhone:    "+84901234567",
		PaymentMethod:   model.PaymentMethodCashOnDelivery,
	}
}

// placeOrder кладёт товары в корзину пользователя и оформляет заказ.
func placeOrder(t *testing.T, svc *Service, userID int64, lines map[int64]int) *model.Order {
	t.Helper()
	ctx := context.Background()
	for productID, qty := range lines {
		if _, err := svc.AddToCart(ctx, userID, productID, qty); err != nil {
			t.Fatalf("AddToCart(%d, %d): %v", productID, qty, err)
		}
	}
	o, err := svc.Checkout(ctx, userID, checkoutRequest())
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	return o
}
