package utils

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultSolapiURL = "https://api.solapi.com"
	solapiSendPath   = "/messages/v4/send"
)

// SolapiClient sends SMS through the Solapi v4 API.
type SolapiClient struct {
	APIKey    string
	APISecret string
	Sender    string // зарегистрированный номер отправителя
	BaseURL   string
	DryRun    bool

	HTTP *http.Client
	Log  *zap.Logger
	Now  func() time.Time
}

type solapiMessage struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

type SolapiResponse struct {
	GroupID       string `json:"groupId"`
	MessageID     string `json:"messageId"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

func NewSolapiClient(apiKey, apiSecret, sender, baseURL string, dryRun bool, log *zap.Logger) *SolapiClient {
	if baseURL == "" {
		baseURL = DefaultSolapiURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SolapiClient{
		APIKey:    apiKey,
		APISecret: apiSecret,
		Sender:    sender,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		DryRun:    dryRun,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		Log:       log,
		Now:       time.Now,
	}
}

// Send delivers text to the phone number; in dry-run it only logs.
func (c *SolapiClient) Send(ctx context.Context, to, text string) error {
	to = domesticNumber(to)
	if c.DryRun || c.APIKey == "" {
		c.Log.Info("[solapi][dry-run] sms", zap.String("to", to), zap.String("text", text))
		return nil
	}

	body, err := json.Marshal(map[string]solapiMessage{
		"message": {To: to, From: c.Sender, Text: text},
	})
	if err != nil {
		return fmt.Errorf("encode sms: %w", err)
	}

	auth, err := c.authorization()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+solapiSendPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("send sms request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		c.Log.Warn("[solapi][send] rejected", zap.Int("status", resp.StatusCode), zap.ByteString("body", raw))
		return fmt.Errorf("solapi returned status %d", resp.StatusCode)
	}

	var result SolapiResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("parse sms response: %w", err)
	}
	c.Log.Info("[solapi][send] ok", zap.String("to", to), zap.String("message_id", result.MessageID))
	return nil
}

// authorization builds the HMAC-SHA256 header: signature = hmac(secret, date+salt).
func (c *SolapiClient) authorization() (string, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sms salt: %w", err)
	}
	date := c.Now().UTC().Format(time.RFC3339)
	saltHex := hex.EncodeToString(salt)
	return fmt.Sprintf("HMAC-SHA256 apiKey=%s, date=%s, salt=%s, signature=%s",
		c.APIKey, date, saltHex, SolapiSignature(c.APISecret, date, saltHex)), nil
}

func SolapiSignature(secret, date, salt string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(date + salt))
	return hex.EncodeToString(mac.Sum(nil))
}

// domesticNumber turns +8210... into 010...; other numbers pass through.
func domesticNumber(phone string) string {
	if strings.HasPrefix(phone, "+82") {
		return "0" + strings.TrimPrefix(phone, "+82")
	}
	return phone
}
