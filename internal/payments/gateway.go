package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Gateway posts session requests to the hosted payment page provider and
// checks callback validation ids against its validation API.
type Gateway struct {
	URL           string
	ValidationURL string
	StoreID       string
	StorePasswd   string
	Client        *http.Client
}

func NewGateway(endpoint, validationURL, storeID, storePasswd string) *Gateway {
	return &Gateway{
		URL:           endpoint,
		ValidationURL: validationURL,
		StoreID:       storeID,
		StorePasswd:   storePasswd,
		Client:        &http.Client{Timeout: 20 * time.Second},
	}
}

// Session is the gateway reply. Raw is returned to the caller unchanged.
type Session struct {
	Raw        json.RawMessage
	SessionKey string
}

// Init sends one form encoded POST carrying the store credentials and fields.
func (g *Gateway) Init(ctx context.Context, fields url.Values) (*Session, error) {
	form := url.Values{}
	form.Set("store_id", g.StoreID)
	form.Set("store_passwd", g.StorePasswd)
	for k, vs := range fields {
		for _, v := range vs {
			form.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, fmt.Errorf("gateway returned status %d with a non JSON body", resp.StatusCode)
	}

	var probe struct {
		SessionKey string `json:"sessionkey"`
	}
	_ = json.Unmarshal(body, &probe)
	return &Session{Raw: json.RawMessage(body), SessionKey: probe.SessionKey}, nil
}

// Validation is the gateway's verdict on a val_id.
type Validation struct {
	Status   string `json:"status"`
	TranID   string `json:"tran_id"`
	ValID    string `json:"val_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Valid reports whether the gateway accepted the transaction. VALIDATED means
// the same val_id was already checked once.
func (v *Validation) Valid() bool {
	return v.Status == "VALID" || v.Status == "VALIDATED"
}

// Validate asks the gateway whether valID belongs to a completed transaction.
func (g *Gateway) Validate(ctx context.Context, valID string) (*Validation, error) {
	query := url.Values{}
	query.Set("val_id", valID)
	query.Set("store_id", g.StoreID)
	query.Set("store_passwd", g.StorePasswd)
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.ValidationURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway validation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway validation returned status %d", resp.StatusCode)
	}
	var v Validation
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode gateway validation: %w", err)
	}
	return &v, nil
}
