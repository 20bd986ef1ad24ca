package service

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
	"github.com/ZeoXel/SUNSTUDIO/internal/models"
)

// alipayQueryGateway 查单网关桩，signKey 在夹具建好后由用例回填
type alipayQueryGateway struct {
	*httptest.Server
	signKey *rsa.PrivateKey
}

// newAlipayQueryGateway 返回固定 trade_status 的查单网关
func newAlipayQueryGateway(t *testing.T, tradeStatus string) *alipayQueryGateway {
	t.Helper()
	gw := &alipayQueryGateway{}
	gw.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form failed: %v", err)
			return
		}
		if gw.signKey == nil {
			t.Errorf("gateway sign key not set")
			return
		}
		var bizContent map[string]string
		_ = json.Unmarshal([]byte(r.Form.Get("biz_content")), &bizContent)
		node, err := json.Marshal(map[string]interface{}{
			"code":         "10000",
			"msg":          "Success",
			"out_trade_no": bizContent["out_trade_no"],
			"trade_no":     "20260829000999",
			"trade_status": tradeStatus,
			"total_amount": "100.00",
		})
		if err != nil {
			t.Errorf("marshal response node failed: %v", err)
			return
		}
		digest := sha256.Sum256(node)
		signBytes, err := rsa.SignPKCS1v15(rand.Reader, gw.signKey, crypto.SHA256, digest[:])
		if err != nil {
			t.Errorf("sign response node failed: %v", err)
			return
		}
		sign := base64.StdEncoding.EncodeToString(signBytes)
		_, _ = w.Write([]byte(`{"alipay_trade_query_response":` + string(node) + `,"sign":"` + sign + `"}`))
	}))
	return gw
}

func TestGetOrderStatusOwnership(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "")
	owner := fixture.createUser(t, "owner@example.com")
	other := fixture.createUser(t, "other@example.com")
	order := fixture.createPendingOrder(t, owner.ID, "PAY1700000000020QRY001", 10000)

	_, err := fixture.svc.GetOrderStatus(context.Background(), other.ID, order.OrderNo)
	if !errors.Is(err, ErrOrderAccessDenied) {
		t.Fatalf("expected access denied, got: %v", err)
	}

	_, err = fixture.svc.GetOrderStatus(context.Background(), owner.ID, "PAY1700000000020MISSIN")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got: %v", err)
	}
}

func TestGetOrderStatusReturnsPaidData(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "")
	user := fixture.createUser(t, "paidquery@example.com")
	order := fixture.createPendingOrder(t, user.ID, "PAY1700000000021QRY002", 10000)
	if _, err := fixture.svc.CompletePayment(order.OrderNo, "tx-query", time.Now()); err != nil {
		t.Fatalf("complete payment failed: %v", err)
	}

	data, err := fixture.svc.GetOrderStatus(context.Background(), user.ID, order.OrderNo)
	if err != nil {
		t.Fatalf("get order status failed: %v", err)
	}
	if data.Status != constants.OrderStatusPaid {
		t.Fatalf("expected paid status, got %s", data.Status)
	}
	if data.Amount != 10000 || data.AmountYuan != "100.00" || data.Points != 1200 {
		t.Fatalf("unexpected status data: %+v", data)
	}
	if data.TransactionID != "tx-query" || data.PaidAt == nil {
		t.Fatalf("expected transaction detail, got: %+v", data)
	}
}

func TestGetOrderStatusReconcilesPendingViaGateway(t *testing.T) {
	server := newAlipayQueryGateway(t, "TRADE_SUCCESS")
	defer server.Close()

	fixture := setupPaymentServiceTest(t, server.URL)
	server.signKey = fixture.userKey
	user := fixture.createUser(t, "reconcile@example.com")
	order := fixture.createPendingOrder(t, user.ID, "PAY1700000000022QRY003", 10000)

	// 异步通知丢失，轮询查询触发主动对账并入账
	data, err := fixture.svc.GetOrderStatus(context.Background(), user.ID, order.OrderNo)
	if err != nil {
		t.Fatalf("get order status failed: %v", err)
	}
	if data.Status != constants.OrderStatusPaid {
		t.Fatalf("expected reconciled paid status, got %s", data.Status)
	}
	updated, _ := fixture.userRepo.GetByID(user.ID)
	if updated.Balance != 10000 || updated.Points != 1200 {
		t.Fatalf("expected reconcile to credit, got balance %d points %d", updated.Balance, updated.Points)
	}
}

func TestGetOrderStatusReconcilesClosedTrade(t *testing.T) {
	server := newAlipayQueryGateway(t, "TRADE_CLOSED")
	defer server.Close()

	fixture := setupPaymentServiceTest(t, server.URL)
	server.signKey = fixture.userKey
	user := fixture.createUser(t, "closedtrade@example.com")
	order := fixture.createPendingOrder(t, user.ID, "PAY1700000000023QRY004", 5000)

	data, err := fixture.svc.GetOrderStatus(context.Background(), user.ID, order.OrderNo)
	if err != nil {
		t.Fatalf("get order status failed: %v", err)
	}
	if data.Status != constants.OrderStatusFailed {
		t.Fatalf("expected failed status after gateway close, got %s", data.Status)
	}
	updated, _ := fixture.userRepo.GetByID(user.ID)
	if updated.Balance != 0 {
		t.Fatalf("closed trade must not credit")
	}
}

func TestGetOrderStatusExpiresOverduePending(t *testing.T) {
	server := newAlipayQueryGateway(t, "WAIT_BUYER_PAY")
	defer server.Close()

	fixture := setupPaymentServiceTest(t, server.URL)
	server.signKey = fixture.userKey
	user := fixture.createUser(t, "overdue@example.com")
	order := fixture.createPendingOrder(t, user.ID, "PAY1700000000024QRY005", 5000)

	oldTime := time.Now().Add(-time.Duration(constants.OrderExpireMinutes+1) * time.Minute)
	if err := fixture.db.Model(&models.PaymentOrder{}).
		Where("order_no = ?", order.OrderNo).
		Update("created_at", oldTime).Error; err != nil {
		t.Fatalf("backdate order failed: %v", err)
	}

	data, err := fixture.svc.GetOrderStatus(context.Background(), user.ID, order.OrderNo)
	if err != nil {
		t.Fatalf("get order status failed: %v", err)
	}
	if data.Status != constants.OrderStatusFailed {
		t.Fatalf("expected overdue order closed, got %s", data.Status)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	fixture := setupPaymentServiceTest(t, "")
	user := fixture.createUser(t, "list@example.com")
	for i := 0; i < 3; i++ {
		fixture.createPendingOrder(t, user.ID, GenerateOrderNo(), 1000*(int64(i)+1))
	}

	result, err := fixture.svc.ListOrders(user.ID, 2, 0)
	if err != nil {
		t.Fatalf("list orders failed: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("expected total 3, got %d", result.Total)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	if result.Items[0].Amount != 3000 {
		t.Fatalf("expected newest order first, got amount %d", result.Items[0].Amount)
	}
}
