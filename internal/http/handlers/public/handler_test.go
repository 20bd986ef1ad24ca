package public

import (
	"crypto"
	cryptorand "crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ZeoXel/SUNSTUDIO/internal/config"
	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
	"github.com/ZeoXel/SUNSTUDIO/internal/models"
	"github.com/ZeoXel/SUNSTUDIO/internal/payment/alipay"
	"github.com/ZeoXel/SUNSTUDIO/internal/provider"
	"github.com/ZeoXel/SUNSTUDIO/internal/repository"
	"github.com/ZeoXel/SUNSTUDIO/internal/service"
)

type handlerFixture struct {
	h           *Handler
	db          *gorm.DB
	orderRepo   *repository.GormPaymentOrderRepository
	userRepo    *repository.GormUserRepository
	platformKey *rsa.PrivateKey
}

func setupHandlerTest(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:public_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&models.User{}, &models.PaymentOrder{}, &models.BalanceLedgerEntry{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	orderRepo := repository.NewPaymentOrderRepository(db)
	ledgerRepo := repository.NewBalanceLedgerRepository(db)
	userRepo := repository.NewUserRepository(db)

	cfg := &config.Config{}
	cfg.JWT.SecretKey = "handler-test-secret"
	cfg.JWT.ExpireHours = 1
	cfg.Payment.ExpireMinutes = constants.OrderExpireMinutes
	cfg.Payment.ResultURL = "https://shop.example.com/pay-result"

	alipayCfg, platformKey := buildHandlerAlipayConfig(t)
	alipayClient, err := alipay.NewClient(alipayCfg)
	if err != nil {
		t.Fatalf("new alipay client failed: %v", err)
	}

	paymentSvc := service.NewPaymentService(cfg, orderRepo, ledgerRepo, userRepo, alipayClient, nil, nil)
	authSvc := service.NewAuthService(cfg, userRepo)

	container := &provider.Container{
		Config:            cfg,
		UserRepo:          userRepo,
		PaymentOrderRepo:  orderRepo,
		BalanceLedgerRepo: ledgerRepo,
		AlipayClient:      alipayClient,
		AuthService:       authSvc,
		PaymentService:    paymentSvc,
	}
	return &handlerFixture{
		h:           New(container),
		db:          db,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		platformKey: platformKey,
	}
}

// buildHandlerAlipayConfig 私钥同时扮演商户侧与平台侧，回调可用返回的 key 签名。
func buildHandlerAlipayConfig(t *testing.T) (alipay.Config, *rsa.PrivateKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(cryptorand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key failed: %v", err)
	}
	privateKeyDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		t.Fatalf("marshal private key failed: %v", err)
	}
	publicKeyDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key failed: %v", err)
	}
	return alipay.Config{
		AppID:           "2026000000000000",
		PrivateKey:      string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateKeyDER})),
		AlipayPublicKey: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKeyDER})),
		GatewayURL:      "https://openapi.alipay.com/gateway.do",
		NotifyURL:       "https://shop.example.com/api/payment/alipay/notify",
		ReturnURL:       "https://shop.example.com/api/payment/alipay/notify",
		SignType:        "RSA2",
	}, privateKey
}

func (f *handlerFixture) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("test-password-1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password failed: %v", err)
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hashed),
		DisplayName:  "tester",
		Status:       constants.UserStatusActive,
	}
	if err := f.userRepo.Create(user); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func (f *handlerFixture) createPendingOrder(t *testing.T, userID uint, orderNo string, amountCents int64) *models.PaymentOrder {
	t.Helper()
	order := &models.PaymentOrder{
		OrderNo:       orderNo,
		UserID:        userID,
		Amount:        amountCents,
		Points:        service.CalculatePoints(amountCents),
		PaymentMethod: constants.PaymentMethodAlipay,
		Status:        constants.OrderStatusPending,
		Description:   "账户充值",
	}
	if err := f.orderRepo.Create(order); err != nil {
		t.Fatalf("create pending order failed: %v", err)
	}
	return order
}

// signHandlerAlipayForm 模拟平台侧对回调表单签名（sign/sign_type 不参与）
func signHandlerAlipayForm(t *testing.T, key *rsa.PrivateKey, form url.Values) {
	t.Helper()
	keys := make([]string, 0, len(form))
	for k := range form {
		if strings.EqualFold(k, "sign") || strings.EqualFold(k, "sign_type") {
			continue
		}
		if form.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+form.Get(k))
	}
	digest := sha256.Sum256([]byte(strings.Join(parts, "&")))
	sign, err := rsa.SignPKCS1v15(cryptorand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign notify form failed: %v", err)
	}
	form.Set("sign", base64.StdEncoding.EncodeToString(sign))
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v (body: %s)", err, w.Body.String())
	}
	return resp
}

// withUser 模拟鉴权中间件注入的上下文
func withUser(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}
