package alipay

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	ErrConfigInvalid    = errors.New("alipay config invalid")
	ErrSignGenerate     = errors.New("alipay sign generate failed")
	ErrRequestFailed    = errors.New("alipay request failed")
	ErrResponseInvalid  = errors.New("alipay response invalid")
	ErrSignatureInvalid = errors.New("alipay signature invalid")
)

const (
	defaultTimeout    = 12 * time.Second
	defaultGatewayURL = "https://openapi.alipay.com/gateway.do"

	methodPagePay    = "alipay.trade.page.pay"
	methodTradeQuery = "alipay.trade.query"
)

// 交易状态常量（支付宝 trade_status）
const (
	TradeStatusWaitBuyerPay = "WAIT_BUYER_PAY"
	TradeStatusSuccess      = "TRADE_SUCCESS"
	TradeStatusFinished     = "TRADE_FINISHED"
	TradeStatusClosed       = "TRADE_CLOSED"
)

// Config 支付宝官方配置。
type Config struct {
	AppID           string
	PrivateKey      string
	AlipayPublicKey string
	GatewayURL      string
	NotifyURL       string
	ReturnURL       string
	SignType        string
}

// Client 支付宝网关客户端。构造时解析密钥，配置错误在启动期暴露。
type Client struct {
	cfg        Config
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	httpClient *http.Client
}

// CreateInput 支付宝下单输入。
type CreateInput struct {
	OrderNo        string
	Amount         string // 元，2 位小数
	Subject        string
	TimeoutExpress string
}

// PagePayment 电脑网站支付下单结果。
type PagePayment struct {
	FormHTML   string // 自动提交的 HTML 表单
	PayURL     string // 带签名的网关跳转链接
	OutTradeNo string
}

// QueryResult 订单主动查询结果。
type QueryResult struct {
	OutTradeNo  string
	TradeNo     string
	TradeStatus string
	TotalAmount string
	Raw         map[string]interface{}
}

// NewClient 创建客户端并校验配置，密钥解析失败立即返回错误。
func NewClient(cfg Config) (*Client, error) {
	cfg.normalize()
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	privateKey, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	publicKey, err := parsePublicKey(cfg.AlipayPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return &Client{
		cfg:        cfg,
		privateKey: privateKey,
		publicKey:  publicKey,
		httpClient: http.DefaultClient,
	}, nil
}

// NotifyURL 返回配置的异步通知地址。
func (c *Client) NotifyURL() string {
	return c.cfg.NotifyURL
}

// CreatePagePayment 发起电脑网站支付（alipay.trade.page.pay），返回自动提交表单。
func (c *Client) CreatePagePayment(ctx context.Context, input CreateInput) (*PagePayment, error) {
	_ = ctx
	input.OrderNo = strings.TrimSpace(input.OrderNo)
	input.Amount = strings.TrimSpace(input.Amount)
	if input.OrderNo == "" || input.Amount == "" {
		return nil, fmt.Errorf("%w: order_no/amount is required", ErrConfigInvalid)
	}
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		subject = input.OrderNo
	}

	bizContent := map[string]interface{}{
		"out_trade_no": input.OrderNo,
		"total_amount": input.Amount,
		"subject":      subject,
		"product_code": "FAST_INSTANT_TRADE_PAY",
	}
	if strings.TrimSpace(input.TimeoutExpress) != "" {
		bizContent["timeout_express"] = strings.TrimSpace(input.TimeoutExpress)
	}
	bizContentBytes, err := json.Marshal(bizContent)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal biz_content failed", ErrConfigInvalid)
	}

	params := c.publicParams(methodPagePay)
	params["notify_url"] = c.cfg.NotifyURL
	if c.cfg.ReturnURL != "" {
		params["return_url"] = c.cfg.ReturnURL
	}
	params["biz_content"] = string(bizContentBytes)

	sign, err := c.signContent(buildSignContent(params))
	if err != nil {
		return nil, err
	}
	params["sign"] = sign

	return &PagePayment{
		FormHTML:   buildAutoSubmitForm(c.cfg.GatewayURL, params),
		PayURL:     buildGatewayPayURL(c.cfg.GatewayURL, params),
		OutTradeNo: input.OrderNo,
	}, nil
}

// QueryTrade 主动查询订单（alipay.trade.query）。
func (c *Client) QueryTrade(ctx context.Context, outTradeNo string) (*QueryResult, error) {
	outTradeNo = strings.TrimSpace(outTradeNo)
	if outTradeNo == "" {
		return nil, fmt.Errorf("%w: out_trade_no is required", ErrConfigInvalid)
	}
	bizContentBytes, err := json.Marshal(map[string]interface{}{
		"out_trade_no": outTradeNo,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal biz_content failed", ErrConfigInvalid)
	}

	params := c.publicParams(methodTradeQuery)
	params["biz_content"] = string(bizContentBytes)
	sign, err := c.signContent(buildSignContent(params))
	if err != nil {
		return nil, err
	}
	params["sign"] = sign

	responseBody, err := c.postGateway(ctx, params)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(responseBody, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	responseKey := strings.ReplaceAll(methodTradeQuery, ".", "_") + "_response"
	responseNode, ok := raw[responseKey].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", ErrResponseInvalid, responseKey)
	}

	code := strings.TrimSpace(readString(responseNode, "code"))
	if code != "10000" {
		errMsg := strings.TrimSpace(readString(responseNode, "sub_msg"))
		if errMsg == "" {
			errMsg = strings.TrimSpace(readString(responseNode, "msg"))
		}
		if errMsg == "" {
			errMsg = "code=" + code
		}
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, errMsg)
	}

	// 查单结果会驱动入账，响应验签不通过的结果一律不采信
	if err := c.verifyResponseSignature(responseBody, responseKey, readString(raw, "sign")); err != nil {
		return nil, err
	}

	result := &QueryResult{
		OutTradeNo:  strings.TrimSpace(readString(responseNode, "out_trade_no")),
		TradeNo:     strings.TrimSpace(readString(responseNode, "trade_no")),
		TradeStatus: strings.TrimSpace(readString(responseNode, "trade_status")),
		TotalAmount: strings.TrimSpace(readString(responseNode, "total_amount")),
		Raw:         raw,
	}
	if result.OutTradeNo == "" {
		result.OutTradeNo = outTradeNo
	}
	return result, nil
}

// VerifyNotification 校验支付宝异步/同步回调签名，签名不合法必须整体拒绝。
func (c *Client) VerifyNotification(form url.Values) error {
	if len(form) == 0 {
		return fmt.Errorf("%w: callback form is empty", ErrSignatureInvalid)
	}
	sign := strings.TrimSpace(form.Get("sign"))
	if sign == "" {
		return fmt.Errorf("%w: sign is required", ErrSignatureInvalid)
	}
	signType := strings.ToUpper(strings.TrimSpace(form.Get("sign_type")))
	if signType == "" {
		signType = c.cfg.SignType
	}
	if signType != "RSA2" && signType != "RSA" {
		return fmt.Errorf("%w: sign_type is invalid", ErrSignatureInvalid)
	}
	content := buildSignContentFromForm(form)
	if content == "" {
		return fmt.Errorf("%w: sign content is empty", ErrSignatureInvalid)
	}
	signBytes, err := base64.StdEncoding.DecodeString(sign)
	if err != nil {
		return fmt.Errorf("%w: decode sign failed", ErrSignatureInvalid)
	}
	digest, hashType := hashContent(content, signType)
	if err := rsa.VerifyPKCS1v15(c.publicKey, hashType, digest, signBytes); err != nil {
		return fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}
	return nil
}

// verifyResponseSignature 校验网关响应签名。签名内容是响应节点的原始 JSON 子串，
// 必须按字节提取，重新序列化会破坏签名。
func (c *Client) verifyResponseSignature(body []byte, responseKey, sign string) error {
	sign = strings.TrimSpace(sign)
	if sign == "" {
		return fmt.Errorf("%w: response sign is required", ErrSignatureInvalid)
	}
	content, ok := extractResponseContent(body, responseKey)
	if !ok {
		return fmt.Errorf("%w: response node not found", ErrSignatureInvalid)
	}
	signBytes, err := base64.StdEncoding.DecodeString(sign)
	if err != nil {
		return fmt.Errorf("%w: decode response sign failed", ErrSignatureInvalid)
	}
	digest, hashType := hashContent(content, c.cfg.SignType)
	if err := rsa.VerifyPKCS1v15(c.publicKey, hashType, digest, signBytes); err != nil {
		return fmt.Errorf("%w: response verify failed", ErrSignatureInvalid)
	}
	return nil
}

// extractResponseContent 提取响应节点在原始报文中的 JSON 子串（含首尾花括号）。
func extractResponseContent(body []byte, responseKey string) (string, bool) {
	text := string(body)
	idx := strings.Index(text, `"`+responseKey+`"`)
	if idx < 0 {
		return "", false
	}
	rest := text[idx:]
	braceIdx := strings.IndexByte(rest, '{')
	if braceIdx < 0 {
		return "", false
	}
	rest = rest[braceIdx:]

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(rest); i++ {
		ch := rest[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return rest[:i+1], true
			}
		}
	}
	return "", false
}

// IsTradeSuccess 判断 trade_status 是否为支付成功终态。
func IsTradeSuccess(tradeStatus string) bool {
	switch strings.ToUpper(strings.TrimSpace(tradeStatus)) {
	case TradeStatusSuccess, TradeStatusFinished:
		return true
	default:
		return false
	}
}

// IsTradeClosed 判断 trade_status 是否为交易关闭。
func IsTradeClosed(tradeStatus string) bool {
	return strings.ToUpper(strings.TrimSpace(tradeStatus)) == TradeStatusClosed
}

func (c *Client) publicParams(method string) map[string]string {
	return map[string]string{
		"app_id":    c.cfg.AppID,
		"method":    method,
		"format":    "JSON",
		"charset":   "utf-8",
		"sign_type": c.cfg.SignType,
		"timestamp": time.Now().Format("2006-01-02 15:04:05"),
		"version":   "1.0",
	}
}

func (c *Client) signContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: empty sign content", ErrSignGenerate)
	}
	digest, hashType := hashContent(content, c.cfg.SignType)
	signBytes, err := rsa.SignPKCS1v15(rand.Reader, c.privateKey, hashType, digest)
	if err != nil {
		return "", fmt.Errorf("%w: sign failed", ErrSignGenerate)
	}
	return base64.StdEncoding.EncodeToString(signBytes), nil
}

func (c *Client) postGateway(ctx context.Context, params map[string]string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	form := url.Values{}
	for key, value := range params {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		form.Set(key, value)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GatewayURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request failed", ErrRequestFailed)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrRequestFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrResponseInvalid, resp.StatusCode)
	}
	return body, nil
}

func hashContent(content, signType string) ([]byte, crypto.Hash) {
	if strings.ToUpper(strings.TrimSpace(signType)) == "RSA" {
		sum := sha1.Sum([]byte(content))
		return sum[:], crypto.SHA1
	}
	sum := sha256.Sum256([]byte(content))
	return sum[:], crypto.SHA256
}

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.AppID) == "" {
		return fmt.Errorf("%w: app_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return fmt.Errorf("%w: private_key is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.AlipayPublicKey) == "" {
		return fmt.Errorf("%w: alipay_public_key is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.NotifyURL) == "" {
		return fmt.Errorf("%w: notify_url is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.GatewayURL); err != nil {
		return fmt.Errorf("%w: gateway_url is invalid", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.NotifyURL); err != nil {
		return fmt.Errorf("%w: notify_url is invalid", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.ReturnURL) != "" {
		if _, err := url.ParseRequestURI(cfg.ReturnURL); err != nil {
			return fmt.Errorf("%w: return_url is invalid", ErrConfigInvalid)
		}
	}
	if cfg.SignType != "RSA2" && cfg.SignType != "RSA" {
		return fmt.Errorf("%w: sign_type is invalid", ErrConfigInvalid)
	}
	return nil
}

func buildSignContent(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		key = strings.TrimSpace(key)
		if key == "" || key == "sign" {
			continue
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+params[key])
	}
	return strings.Join(parts, "&")
}

func buildSignContentFromForm(form url.Values) string {
	params := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		normalizedKey := strings.TrimSpace(key)
		if normalizedKey == "" {
			continue
		}
		if strings.EqualFold(normalizedKey, "sign") || strings.EqualFold(normalizedKey, "sign_type") {
			continue
		}
		value := values[0]
		if value == "" {
			continue
		}
		params[normalizedKey] = value
	}
	return buildSignContent(params)
}

func buildGatewayPayURL(gatewayURL string, params map[string]string) string {
	form := url.Values{}
	for key, value := range params {
		key = strings.TrimSpace(key)
		if key == "" || value == "" {
			continue
		}
		form.Set(key, value)
	}
	parsed, err := url.Parse(gatewayURL)
	if err != nil {
		if strings.Contains(gatewayURL, "?") {
			return gatewayURL + "&" + form.Encode()
		}
		return gatewayURL + "?" + form.Encode()
	}
	parsed.RawQuery = form.Encode()
	return parsed.String()
}

// buildAutoSubmitForm 生成自动提交到网关的 HTML 表单。
func buildAutoSubmitForm(gatewayURL string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(`<form id="alipay_submit" name="alipay_submit" action="`)
	b.WriteString(html.EscapeString(gatewayURL + "?charset=utf-8"))
	b.WriteString(`" method="POST">`)

	keys := make([]string, 0, len(params))
	for key, value := range params {
		if strings.TrimSpace(key) == "" || value == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteString(`<input type="hidden" name="`)
		b.WriteString(html.EscapeString(key))
		b.WriteString(`" value="`)
		b.WriteString(html.EscapeString(params[key]))
		b.WriteString(`"/>`)
	}
	b.WriteString(`</form><script>document.forms["alipay_submit"].submit();</script>`)
	return b.String()
}

func parsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	normalized := normalizePEM(raw, "PRIVATE KEY")
	if normalized == "" {
		return nil, errors.New("private key is empty")
	}
	block, _ := pem.Decode([]byte(normalized))
	if block == nil {
		return nil, errors.New("private key pem decode failed")
	}
	parsedPKCS8, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		if privateKey, ok := parsedPKCS8.(*rsa.PrivateKey); ok {
			return privateKey, nil
		}
		return nil, errors.New("private key type is not rsa")
	}
	privateKey, parseErr := x509.ParsePKCS1PrivateKey(block.Bytes)
	if parseErr == nil {
		return privateKey, nil
	}
	return nil, errors.New("parse private key failed")
}

func parsePublicKey(raw string) (*rsa.PublicKey, error) {
	normalized := normalizePEM(raw, "PUBLIC KEY")
	if normalized == "" {
		return nil, errors.New("public key is empty")
	}
	block, _ := pem.Decode([]byte(normalized))
	if block == nil {
		return nil, errors.New("public key pem decode failed")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err == nil {
		if publicKey, ok := parsed.(*rsa.PublicKey); ok {
			return publicKey, nil
		}
		return nil, errors.New("public key type is not rsa")
	}
	publicKey, parseErr := x509.ParsePKCS1PublicKey(block.Bytes)
	if parseErr == nil {
		return publicKey, nil
	}
	return nil, errors.New("parse public key failed")
}

// normalizePEM 兼容单行 base64 密钥，缺失头尾时补全 PEM 包裹。
func normalizePEM(raw, blockType string) string {
	normalized := strings.TrimSpace(strings.ReplaceAll(raw, "\\n", "\n"))
	if normalized == "" {
		return ""
	}
	if !strings.Contains(normalized, "BEGIN") {
		normalized = "-----BEGIN " + blockType + "-----\n" + normalized + "\n-----END " + blockType + "-----"
	}
	return normalized
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil {
		return ""
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	if str, ok := value.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", value)
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultTimeout)
}

func (c *Config) normalize() {
	c.AppID = strings.TrimSpace(c.AppID)
	c.PrivateKey = strings.TrimSpace(c.PrivateKey)
	c.AlipayPublicKey = strings.TrimSpace(c.AlipayPublicKey)
	c.GatewayURL = strings.TrimSpace(c.GatewayURL)
	c.NotifyURL = strings.TrimSpace(c.NotifyURL)
	c.ReturnURL = strings.TrimSpace(c.ReturnURL)
	c.SignType = strings.ToUpper(strings.TrimSpace(c.SignType))
	if c.SignType == "" {
		c.SignType = "RSA2"
	}
	if c.GatewayURL == "" {
		c.GatewayURL = defaultGatewayURL
	}
}
