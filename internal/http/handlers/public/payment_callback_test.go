package public

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
)

func newCallbackRouter(f *handlerFixture) *gin.Engine {
	r := gin.New()
	r.POST("/payment/alipay/notify", f.h.HandleAlipayNotify)
	r.GET("/payment/alipay/notify", f.h.HandleAlipayReturn)
	r.POST("/payment/wechat/notify", f.h.HandleWechatNotify)
	return r
}

func buildNotifyForm(orderNo, tradeNo, tradeStatus, totalAmount string) url.Values {
	return url.Values{
		"notify_id":    {"notify-handler-1"},
		"notify_type":  {"trade_status_sync"},
		"out_trade_no": {orderNo},
		"trade_no":     {tradeNo},
		"trade_status": {tradeStatus},
		"total_amount": {totalAmount},
		"sign_type":    {"RSA2"},
	}
}

func postAlipayNotify(r *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payment/alipay/notify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func TestAlipayNotifyAcksSuccessAndCredits(t *testing.T) {
	f := setupHandlerTest(t)
	user := f.createUser(t, "notify-handler@example.com")
	order := f.createPendingOrder(t, user.ID, "PAY1700000000100HDL001", 10000)

	form := buildNotifyForm(order.OrderNo, "2026082922001400900", "TRADE_SUCCESS", "100.00")
	signHandlerAlipayForm(t, f.platformKey, form)
	w := postAlipayNotify(newCallbackRouter(f), form)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != constants.AlipayCallbackSuccess {
		t.Fatalf("ack want %q got %q", constants.AlipayCallbackSuccess, got)
	}

	updated, err := f.orderRepo.GetByOrderNo(order.OrderNo)
	if err != nil || updated == nil {
		t.Fatalf("load order failed: %v", err)
	}
	if updated.Status != constants.OrderStatusPaid {
		t.Fatalf("order status want paid got %s", updated.Status)
	}
	loaded, err := f.userRepo.GetByID(user.ID)
	if err != nil || loaded == nil {
		t.Fatalf("load user failed: %v", err)
	}
	if loaded.Points != 1200 {
		t.Fatalf("points want 1200 got %d", loaded.Points)
	}
}

func TestAlipayNotifyDuplicateStillAcksSuccess(t *testing.T) {
	f := setupHandlerTest(t)
	user := f.createUser(t, "dup-handler@example.com")
	order := f.createPendingOrder(t, user.ID, "PAY1700000000101HDL002", 10000)
	r := newCallbackRouter(f)

	form := buildNotifyForm(order.OrderNo, "2026082922001400901", "TRADE_SUCCESS", "100.00")
	signHandlerAlipayForm(t, f.platformKey, form)
	for i := 0; i < 2; i++ {
		w := postAlipayNotify(r, form)
		if got := strings.TrimSpace(w.Body.String()); got != constants.AlipayCallbackSuccess {
			t.Fatalf("round %d ack want success got %q", i, got)
		}
	}

	loaded, err := f.userRepo.GetByID(user.ID)
	if err != nil || loaded == nil {
		t.Fatalf("load user failed: %v", err)
	}
	if loaded.Points != 1200 {
		t.Fatalf("duplicate notify must not credit twice, points %d", loaded.Points)
	}
}

func TestAlipayNotifyAcksFailOnBadSignature(t *testing.T) {
	f := setupHandlerTest(t)
	user := f.createUser(t, "badsign-handler@example.com")
	order := f.createPendingOrder(t, user.ID, "PAY1700000000102HDL003", 10000)

	form := buildNotifyForm(order.OrderNo, "2026082922001400902", "TRADE_SUCCESS", "100.00")
	form.Set("sign", "aW52YWxpZA==")
	w := postAlipayNotify(newCallbackRouter(f), form)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != constants.AlipayCallbackFail {
		t.Fatalf("ack want %q got %q", constants.AlipayCallbackFail, got)
	}

	updated, _ := f.orderRepo.GetByOrderNo(order.OrderNo)
	if updated.Status != constants.OrderStatusPending {
		t.Fatalf("order must stay pending, got %s", updated.Status)
	}
}

func TestAlipayNotifyAcksFailOnUnknownOrder(t *testing.T) {
	f := setupHandlerTest(t)

	form := buildNotifyForm("PAY1700000000103HDL404", "2026082922001400903", "TRADE_SUCCESS", "100.00")
	signHandlerAlipayForm(t, f.platformKey, form)
	w := postAlipayNotify(newCallbackRouter(f), form)

	if got := strings.TrimSpace(w.Body.String()); got != constants.AlipayCallbackFail {
		t.Fatalf("ack want %q got %q", constants.AlipayCallbackFail, got)
	}
}

func TestAlipayReturnRedirectsToResultPage(t *testing.T) {
	f := setupHandlerTest(t)
	user := f.createUser(t, "return-handler@example.com")
	order := f.createPendingOrder(t, user.ID, "PAY1700000000104HDL005", 10000)
	r := newCallbackRouter(f)

	form := buildNotifyForm(order.OrderNo, "2026082922001400904", "TRADE_SUCCESS", "100.00")
	signHandlerAlipayForm(t, f.platformKey, form)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/payment/alipay/notify?"+form.Encode(), nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status want 302 got %d", w.Code)
	}
	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, "https://shop.example.com/pay-result?orderNo=") {
		t.Fatalf("unexpected redirect location: %s", location)
	}
	if !strings.Contains(location, order.OrderNo) {
		t.Fatalf("redirect should carry order no, got %s", location)
	}
}

func TestWechatNotifyChannelNotConfigured(t *testing.T) {
	f := setupHandlerTest(t)
	r := newCallbackRouter(f)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payment/wechat/notify", strings.NewReader(`{"id":"evt-1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status want 400 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), constants.WechatCallbackCodeFail) {
		t.Fatalf("body should carry FAIL code, got %s", w.Body.String())
	}
}

func TestRespondWechatNotifyShapes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondWechatNotify(c, true)
	if w.Code != http.StatusOK {
		t.Fatalf("success ack status want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), constants.WechatCallbackCodeSuccess) {
		t.Fatalf("success ack body should carry SUCCESS, got %s", w.Body.String())
	}

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	respondWechatNotify(c2, false)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("fail ack status want 400 got %d", w2.Code)
	}
	if !strings.Contains(w2.Body.String(), constants.WechatCallbackCodeFail) {
		t.Fatalf("fail ack body should carry FAIL, got %s", w2.Body.String())
	}
}
