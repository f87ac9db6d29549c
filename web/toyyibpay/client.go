// Client for the toyyibpay bill API. Bills are created against a billing
// category, paid on a hosted page, and confirmed either by callback or by
// polling getBillTransactions.

package toyyibpay

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	productionBaseURL = "https://toyyibpay.com"
	sandboxBaseURL    = "https://dev.toyyibpay.com"

	// gateway-imposed field limits
	MaxBillNameLen = 30
	MaxBillDescLen = 100
)

// Payment channel restriction values accepted by createBill.
const (
	ChannelFPX  = "0"
	ChannelCard = "1"
	ChannelAll  = "2"
)

type Config struct {
	SecretKey    string
	CategoryCode string // preset billing category; created on demand when empty
	BaseURL      string // override, mainly for tests
	Sandbox      bool
}

type Client struct {
	cfg  Config
	http *http.Client

	mu              sync.Mutex
	generalCategory string // category created by GetOrCreateCategory
}

func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError carries a machine-readable code for gateway failures.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("toyyibpay: %s (%s)", e.Message, e.Code)
}

func (c *Client) IsConfigured() bool {
	return c.cfg.SecretKey != ""
}

func (c *Client) Environment() string {
	if c.cfg.Sandbox {
		return "sandbox"
	}
	return "production"
}

func (c *Client) baseURL() string {
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL
	}
	if c.cfg.Sandbox {
		return sandboxBaseURL
	}
	return productionBaseURL
}

type BillParams struct {
	CategoryCode      string
	Name              string // truncated to MaxBillNameLen
	Description       string // truncated to MaxBillDescLen
	AmountCents       int64
	ReturnURL         string
	CallbackURL       string
	ExternalReference string // correlates callbacks back to the donation
	PayerName         string
	PayerEmail        string
	PayerPhone        string
	PaymentChannel    string // defaults to ChannelAll
}

// CreateBill registers a bill with the gateway and returns its bill code.
func (c *Client) CreateBill(p BillParams) (string, error) {
	channel := p.PaymentChannel
	if channel == "" {
		channel = ChannelAll
	}

	form := url.Values{}
	form.Set("userSecretKey", c.cfg.SecretKey)
	form.Set("categoryCode", p.CategoryCode)
	form.Set("billName", truncate(p.Name, MaxBillNameLen))
	form.Set("billDescription", truncate(p.Description, MaxBillDescLen))
	form.Set("billPriceSetting", "1")
	form.Set("billPayorInfo", "1")
	form.Set("billAmount", strconv.FormatInt(p.AmountCents, 10))
	form.Set("billReturnUrl", p.ReturnURL)
	form.Set("billCallbackUrl", p.CallbackURL)
	form.Set("billExternalReferenceNo", p.ExternalReference)
	form.Set("billTo", p.PayerName)
	form.Set("billEmail", p.PayerEmail)
	form.Set("billPhone", p.PayerPhone)
	form.Set("billSplitPayment", "0")
	form.Set("billPaymentChannel", channel)
	form.Set("billChargeToCustomer", "1")

	body, err := c.postForm("/index.php/api/createBill", form)
	if err != nil {
		return "", err
	}

	var out []struct {
		BillCode string `json:"BillCode"`
	}
	if err := json.Unmarshal(body, &out); err != nil || len(out) == 0 || out[0].BillCode == "" {
		// error responses come back as a bare message string, eg. [KEY-DID-NOT-EXIST]
		return "", &APIError{Code: "CREATE_BILL_REJECTED", Message: strings.TrimSpace(string(body))}
	}
	return out[0].BillCode, nil
}

type BillTransaction struct {
	BillName                string `json:"billName"`
	BillPaymentStatus       string `json:"billpaymentStatus"` // gateway-native code, see MapPaymentStatus
	BillPaymentChannel      string `json:"billpaymentChannel"`
	BillPaymentInvoiceNo    string `json:"billpaymentInvoiceNo"`
	BillPaymentAmount       string `json:"billpaymentAmount"`
	BillPaymentDate         string `json:"billPaymentDate"`
	BillExternalReferenceNo string `json:"billExternalReferenceNo"`
}

// GetBillTransactions returns the bill's transactions, most recent first.
// A bill nobody has paid yet yields an empty list, not an error.
func (c *Client) GetBillTransactions(billCode string) ([]BillTransaction, error) {
	form := url.Values{}
	form.Set("userSecretKey", c.cfg.SecretKey)
	form.Set("billCode", billCode)

	body, err := c.postForm("/index.php/api/getBillTransactions", form)
	if err != nil {
		return nil, err
	}

	var txs []BillTransaction
	if err := json.Unmarshal(body, &txs); err != nil {
		// the gateway answers with a bare message string while the bill has
		// no payments yet; that is the normal still-pending case
		return nil, nil
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].BillPaymentDate > txs[j].BillPaymentDate
	})
	return txs, nil
}

// GetOrCreateCategory returns the configured billing category, creating a
// "General Fund" category on first use when none is configured.
func (c *Client) GetOrCreateCategory() (string, error) {
	if c.cfg.CategoryCode != "" {
		return c.cfg.CategoryCode, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generalCategory != "" {
		return c.generalCategory, nil
	}

	form := url.Values{}
	form.Set("userSecretKey", c.cfg.SecretKey)
	form.Set("catname", "General Fund")
	form.Set("catdescription", "General donations")

	body, err := c.postForm("/index.php/api/createCategory", form)
	if err != nil {
		return "", err
	}

	var out []struct {
		CategoryCode string `json:"CategoryCode"`
	}
	if err := json.Unmarshal(body, &out); err != nil || len(out) == 0 || out[0].CategoryCode == "" {
		return "", &APIError{Code: "CREATE_CATEGORY_REJECTED", Message: strings.TrimSpace(string(body))}
	}

	c.generalCategory = out[0].CategoryCode
	return c.generalCategory, nil
}

// PaymentURL is the hosted payment page the donor is redirected to.
func (c *Client) PaymentURL(billCode string) string {
	return c.baseURL() + "/" + billCode
}

func (c *Client) postForm(path string, form url.Values) ([]byte, error) {
	resp, err := c.http.PostForm(c.baseURL()+path, form)
	if err != nil {
		return nil, &APIError{Code: "GATEWAY_UNREACHABLE", Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Code: "GATEWAY_READ_FAILED", Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Code:    "GATEWAY_HTTP_" + strconv.Itoa(resp.StatusCode),
			Message: strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
