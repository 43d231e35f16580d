// Package sheets appends rows to and clears Google Sheets through the v4
// REST API, authenticating as a service account: a short-lived RS256 JWT
// assertion is exchanged for a bearer token, which is cached until expiry.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/agent"
)

const sheetsScope = "https://www.googleapis.com/auth/spreadsheets"

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// SpreadsheetID extracts the document id from a share URL.
func SpreadsheetID(sheetURL string) (string, error) {
	if strings.TrimSpace(sheetURL) == "" {
		return "", errors.New("sheet url is empty")
	}
	if m := spreadsheetIDPattern.FindStringSubmatch(sheetURL); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("no spreadsheet id in url %q", sheetURL)
}

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// Client is a minimal Sheets v4 client. BaseURL is swappable for tests.
type Client struct {
	cfg     config.SheetsConfig
	BaseURL string
	http    *http.Client
	logger  *log.Logger

	mu      sync.Mutex
	token   string
	expires time.Time
}

func New(cfg config.SheetsConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		BaseURL: "https://sheets.googleapis.com",
		http:    &http.Client{Timeout: timeout},
		logger:  log.New(log.Writer(), "[SHEETS] ", log.LstdFlags),
	}
}

// Append adds one row after the sheet's last table row, RAW (no formula
// parsing). Returns the 1-based row index the values landed on.
func (c *Client) Append(ctx context.Context, sheetURL string, row []string) (int, error) {
	id, err := SpreadsheetID(sheetURL)
	if err != nil {
		return 0, err
	}
	title, err := c.firstSheetTitle(ctx, id)
	if err != nil {
		return 0, err
	}
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}
	payload := map[string]any{"values": []any{values}}
	var out struct {
		Updates struct {
			UpdatedRange string `json:"updatedRange"`
			UpdatedRows  int    `json:"updatedRows"`
		} `json:"updates"`
	}
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s:append?valueInputOption=RAW&insertDataOption=INSERT_ROWS",
		id, url.PathEscape(title))
	if err := c.post(ctx, path, payload, &out); err != nil {
		return 0, err
	}
	rowIndex := rowFromRange(out.Updates.UpdatedRange)
	c.logger.Printf("append done sheet=%s row=%d", title, rowIndex)
	return rowIndex, nil
}

// Clear wipes every value on the first sheet.
func (c *Client) Clear(ctx context.Context, sheetURL string) error {
	id, err := SpreadsheetID(sheetURL)
	if err != nil {
		return err
	}
	title, err := c.firstSheetTitle(ctx, id)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s:clear", id, url.PathEscape(title))
	if err := c.post(ctx, path, map[string]any{}, nil); err != nil {
		return err
	}
	c.logger.Printf("cleared sheet=%s", title)
	return nil
}

// firstSheetTitle resolves the first worksheet's tab name, the equivalent of
// "sheet1" addressing.
func (c *Client) firstSheetTitle(ctx context.Context, spreadsheetID string) (string, error) {
	var out struct {
		Sheets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	path := "/v4/spreadsheets/" + spreadsheetID + "?fields=sheets.properties.title"
	if err := c.get(ctx, path, &out); err != nil {
		return "", err
	}
	if len(out.Sheets) == 0 {
		return "", fmt.Errorf("spreadsheet %s has no sheets", spreadsheetID)
	}
	return out.Sheets[0].Properties.Title, nil
}

func rowFromRange(updatedRange string) int {
	// "Sheet1!A5:A5" -> 5
	idx := strings.LastIndex(updatedRange, "!")
	if idx < 0 {
		return 0
	}
	cell := updatedRange[idx+1:]
	if c := strings.Index(cell, ":"); c >= 0 {
		cell = cell[:c]
	}
	digits := strings.TrimLeft(cell, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, _ := strconv.Atoi(digits)
	return n
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(ctx, req, out)
}

func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sheets request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sheets response: %w", err)
	}
	return nil
}

// accessToken returns a cached bearer token, minting a new one when less than
// a minute of validity remains.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Until(c.expires) > time.Minute {
		return c.token, nil
	}

	sa, err := c.loadServiceAccount()
	if err != nil {
		return "", err
	}
	assertion, err := signAssertion(sa)
	if err != nil {
		return "", err
	}

	tokenURL := c.cfg.TokenURL
	if tokenURL == "" {
		tokenURL = sa.TokenURI
	}
	if tokenURL == "" {
		tokenURL = "https://oauth2.googleapis.com/token"
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &agent.AuthError{Provider: "sheets", Reason: fmt.Sprintf("token exchange failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))}
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", &agent.AuthError{Provider: "sheets", Reason: "empty access token"}
	}
	c.token = tok.AccessToken
	c.expires = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *Client) loadServiceAccount() (serviceAccount, error) {
	if c.cfg.CredentialsFile == "" {
		return serviceAccount{}, &agent.AuthError{Provider: "sheets", Reason: "service account credentials file not configured"}
	}
	raw, err := os.ReadFile(c.cfg.CredentialsFile)
	if err != nil {
		return serviceAccount{}, fmt.Errorf("read service account file: %w", err)
	}
	var sa serviceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return serviceAccount{}, fmt.Errorf("decode service account file: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return serviceAccount{}, &agent.AuthError{Provider: "sheets", Reason: "service account file missing client_email or private_key"}
	}
	return sa, nil
}

func signAssertion(sa serviceAccount) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse service account key: %w", err)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   sa.ClientEmail,
		"scope": sheetsScope,
		"aud":   sa.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	if claims["aud"] == "" {
		claims["aud"] = "https://oauth2.googleapis.com/token"
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}

func (c *Client) statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := strings.TrimSpace(string(b))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		reason := "service account rejected"
		if detail != "" {
			reason = detail
		}
		return &agent.AuthError{Provider: "sheets", Reason: reason}
	case http.StatusTooManyRequests:
		return &agent.RateLimitError{Provider: "sheets"}
	default:
		return fmt.Errorf("sheets: unexpected status %d: %s", resp.StatusCode, detail)
	}
}
