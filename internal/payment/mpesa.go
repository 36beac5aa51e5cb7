package payment

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-marketplace-pos/pkg/config"

	"github.com/gofiber/fiber/v2"
)

const mpesaTimestampLayout = "20060102150405"

// MpesaClient drives the Daraja STK push flow.
type MpesaClient struct {
	cfg config.MPesaConfig
	now func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewMpesaClient(cfg config.MPesaConfig) *MpesaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MpesaClient{cfg: cfg, now: time.Now}
}

type mpesaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

func (c *MpesaClient) configured() bool {
	return c.cfg.ConsumerKey != "" && c.cfg.ConsumerSecret != "" && c.cfg.ShortCode != "" && c.cfg.PassKey != ""
}

// Initiate sends an STK push. The CheckoutRequestID becomes the payment reference.
func (c *MpesaClient) Initiate(ctx context.Context, req Request) (*Result, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	phone, err := NormalizeMSISDN(req.Phone)
	if err != nil {
		return nil, err
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := c.now().Format(mpesaTimestampLayout)
	body := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountReference(req.OrderID.String()),
		TransactionDesc:   describe(req.Description),
	}

	var out stkPushResponse
	code, raw, errs := fiber.Post(c.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest").
		Timeout(c.cfg.Timeout).
		Set(fiber.HeaderAuthorization, "Bearer "+token).
		JSON(body).
		Struct(&out)
	if len(errs) > 0 {
		return nil, fmt.Errorf("mpesa stk push: %w", errs[0])
	}
	if code != fiber.StatusOK || out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		msg := out.ErrorMessage
		if msg == "" {
			msg = out.ResponseDescription
		}
		if msg == "" {
			msg = string(raw)
		}
		return nil, fmt.Errorf("%w: mpesa status %d: %s", ErrRejected, code, msg)
	}

	return &Result{Reference: out.CheckoutRequestID, Message: out.CustomerMessage}, nil
}

func (c *MpesaClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var out mpesaTokenResponse
	code, _, errs := fiber.Get(c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials").
		Timeout(c.cfg.Timeout).
		BasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret).
		Struct(&out)
	if len(errs) > 0 {
		return "", fmt.Errorf("mpesa oauth: %w", errs[0])
	}
	if code != fiber.StatusOK || out.AccessToken == "" {
		return "", fmt.Errorf("%w: mpesa oauth status %d", ErrRejected, code)
	}

	ttl := 3599 * time.Second
	if secs, err := time.ParseDuration(out.ExpiresIn + "s"); err == nil && secs > 0 {
		ttl = secs
	}
	c.token = out.AccessToken
	// refresh a minute early
	c.tokenExpiry = c.now().Add(ttl - time.Minute)
	return c.token, nil
}

func (c *MpesaClient) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.PassKey + timestamp))
}

// NormalizeMSISDN converts 07XXXXXXXX, 01XXXXXXXX and +254 forms to 254XXXXXXXXX.
func NormalizeMSISDN(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.NewReplacer(" ", "", "-", "").Replace(p)
	p = strings.TrimPrefix(p, "+")
	switch {
	case strings.HasPrefix(p, "0") && len(p) == 10:
		p = "254" + p[1:]
	case strings.HasPrefix(p, "254") && len(p) == 12:
	default:
		return "", fmt.Errorf("invalid phone number %q", phone)
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid phone number %q", phone)
		}
	}
	return p, nil
}

// Daraja caps AccountReference at 12 characters.
func accountReference(orderID string) string {
	ref := strings.ToUpper(strings.ReplaceAll(orderID, "-", ""))
	if len(ref) > 12 {
		ref = ref[:12]
	}
	return ref
}

func describe(desc string) string {
	if desc == "" {
		return "Order payment"
	}
	if len(desc) > 13 {
		return desc[:13]
	}
	return desc
}
