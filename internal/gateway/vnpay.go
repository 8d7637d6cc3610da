// Package gateway формирует подписанные ссылки платёжного шлюза VNPay
// и проверяет подписи входящих обратных вызовов.
package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/gophermarket/internal/apperror"
)

// Параметры протокола VNPay.
const (
	Version             = "2.1.0"
	CommandPay          = "pay"
	CurrencyVND         = "VND"
	OrderTypeWithdrawal = "250000"
	LocaleVN            = "vn"
	DefaultIPAddr       = "127.0.0.1"

	// ResponseCodeSuccess означает успешную операцию в обратном вызове.
	ResponseCodeSuccess = "00"

	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
	ParamTxnRef         = "vnp_TxnRef"
	ParamResponseCode   = "vnp_ResponseCode"

	createDateLayout = "20060102150405"
	paramPrefix      = "vnp_"
)

// DefaultPayURL указывает на тестовую среду VNPay.
const DefaultPayURL = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"

// Часовой пояс шлюза (GMT+7).
var vnTime = time.FixedZone("GMT+7", 7*60*60)

// Config содержит реквизиты мерчанта.
type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

// PaymentRequest описывает исходящий платёж.
type PaymentRequest struct {
	TxnRef    string
	Amount    decimal.Decimal
	BankCode  string
	OrderInfo string
	IPAddr    string
}

// Callback содержит разобранный обратный вызов шлюза.
type Callback struct {
	TxnRef       string
	ResponseCode string
	SecureHash   string
	Fields       url.Values
}

// Succeeded сообщает, подтвердил ли шлюз операцию.
func (c Callback) Succeeded() bool {
	return c.ResponseCode == ResponseCodeSuccess
}

// ParseCallback извлекает поля обратного вызова из query-параметров.
func ParseCallback(q url.Values) Callback {
	fields := make(url.Values)
	for k, v := range q {
		if strings.HasPrefix(k, paramPrefix) {
			fields[k] = append([]string(nil), v...)
		}
	}
	return Callback{
		TxnRef:       q.Get(ParamTxnRef),
		ResponseCode: q.Get(ParamResponseCode),
		SecureHash:   q.Get(ParamSecureHash),
		Fields:       fields,
	}
}

// VNPay реализует адаптер платёжного шлюза.
type VNPay struct {
	cfg Config
	now func() time.Time
}

// NewVNPay создаёт адаптер. Пустой PayURL заменяется адресом песочницы.
func NewVNPay(cfg Config) *VNPay {
	if cfg.PayURL == "" {
		cfg.PayURL = DefaultPayURL
	}
	return &VNPay{cfg: cfg, now: time.Now}
}

// BuildPaymentURL возвращает подписанную ссылку на оплату.
func (v *VNPay) BuildPaymentURL(req PaymentRequest) (string, error) {
	if req.TxnRef == "" {
		return "", apperror.Validation("transaction reference is required")
	}
	if !req.Amount.IsPositive() {
		return "", apperror.Validation("amount must be positive")
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return "", apperror.Validation("amount must have at most 2 decimal places")
	}

	ip := req.IPAddr
	if ip == "" {
		ip = DefaultIPAddr
	}
	info := req.OrderInfo
	if info == "" {
		info = "Withdraw from wallet - " + req.TxnRef
	}

	params := url.Values{}
	params.Set("vnp_Version", Version)
	params.Set("vnp_Command", CommandPay)
	params.Set("vnp_TmnCode", v.cfg.TmnCode)
	params.Set("vnp_Amount", req.Amount.Shift(2).Truncate(0).String())
	params.Set("vnp_CurrCode", CurrencyVND)
	params.Set("vnp_BankCode", req.BankCode)
	params.Set(ParamTxnRef, req.TxnRef)
	params.Set("vnp_OrderInfo", info)
	params.Set("vnp_OrderType", OrderTypeWithdrawal)
	params.Set("vnp_Locale", LocaleVN)
	params.Set("vnp_ReturnUrl", v.cfg.ReturnURL)
	params.Set("vnp_IpAddr", ip)
	params.Set("vnp_CreateDate", v.now().In(vnTime).Format(createDateLayout))

	hashData, query := canonicalize(params)
	signature := v.sign(hashData)

	return v.cfg.PayURL + "?" + query + "&" + ParamSecureHash + "=" + signature, nil
}

// Verify проверяет подпись обратного вызова. Подписываются все поля vnp_*,
// кроме самой подписи и её типа.
func (v *VNPay) Verify(cb Callback) error {
	if cb.SecureHash == "" {
		return apperror.New(apperror.CodeInvalidSignature, "missing secure hash")
	}
	got, err := hex.DecodeString(cb.SecureHash)
	if err != nil {
		return apperror.Wrap(apperror.CodeInvalidSignature, err, "malformed secure hash")
	}

	signed := make(url.Values, len(cb.Fields))
	for k, vals := range cb.Fields {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		signed[k] = vals
	}

	hashData, _ := canonicalize(signed)
	if !hmac.Equal(got, v.mac(hashData)) {
		return apperror.New(apperror.CodeInvalidSignature, fmt.Sprintf("signature mismatch for transaction %s", cb.TxnRef))
	}
	return nil
}

// Sign подписывает набор параметров так же, как BuildPaymentURL.
func (v *VNPay) Sign(params url.Values) string {
	hashData, _ := canonicalize(params)
	return v.sign(hashData)
}

func (v *VNPay) sign(hashData string) string {
	return hex.EncodeToString(v.mac(hashData))
}

func (v *VNPay) mac(hashData string) []byte {
	h := hmac.New(sha512.New, []byte(v.cfg.HashSecret))
	h.Write([]byte(hashData))
	return h.Sum(nil)
}

// canonicalize сортирует ключи и пропускает пустые значения. Возвращает
// строку для подписи (key=escape(value)) и строку запроса (escape(key)=escape(value)).
func canonicalize(params url.Values) (hashData, query string) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if params.Get(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var hb, qb strings.Builder
	for i, k := range keys {
		if i > 0 {
			hb.WriteByte('&')
			qb.WriteByte('&')
		}
		val := url.QueryEscape(params.Get(k))
		hb.WriteString(k)
		hb.WriteByte('=')
		hb.WriteString(val)
		qb.WriteString(url.QueryEscape(k))
		qb.WriteByte('=')
		qb.WriteString(val)
	}
	return hb.String(), qb.String()
}
