// Package settlement provides ledger.SettlementLeg implementations for interbank payouts.
package settlement

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
)

const (
	nipTransferPath       = "/nip/fundsTransfer"
	nipStatusPath         = "/nip/tsq"
	nipEnquiryPath        = "/nip/nameenquiry"
	nipCurrencyNGN        = "566"
	nipDefaultChannelCode = "6"
	nipNarrationLimit     = 30
	nipSuccessCode        = "00"
	headerOrganization    = "OrganizationCode"
	headerSignature       = "Signature"
	headerSignatureMethod = "SignatureMethod"
	signatureMethodSHA512 = "SHA512"
	defaultHTTPTimeout    = 30 * time.Second
	maxResponseBytes      = 1 << 20
)

// ErrInvalidConfig reports a settlement leg that cannot be constructed.
var ErrInvalidConfig = errors.New("settlement: invalid config")

// nipInconclusiveCodes leave the transfer outcome open; the reconciler queries them later.
var nipInconclusiveCodes = map[string]struct{}{
	"01": {},
	"09": {},
	"91": {},
	"94": {},
	"96": {},
	"97": {},
}

// NIPConfig configures the NIBSS Instant Payment client.
type NIPConfig struct {
	BaseURL          string
	OrganizationCode string
	SecretKey        string
	ChannelCode      string
	HTTPClient       *http.Client
}

// NIPClient submits transfers to the NIBSS Instant Payment gateway.
type NIPClient struct {
	baseURL          string
	organizationCode string
	secretKey        []byte
	channelCode      string
	httpClient       *http.Client
}

type nipTransferPayload struct {
	TransactionReference       string      `json:"TransactionReference"`
	PaymentReference           string      `json:"PaymentReference"`
	SessionID                  string      `json:"SessionID,omitempty"`
	ToAccount                  string      `json:"ToAccount"`
	DestinationInstitutionCode string      `json:"DestinationInstitutionCode"`
	BeneficiaryName            string      `json:"BeneficiaryName"`
	Amount                     json.Number `json:"Amount"`
	Currency                   string      `json:"Currency"`
	Narration                  string      `json:"Narration"`
	OriginatorInstitutionCode  string      `json:"OriginatorInstitutionCode"`
	ChannelCode                string      `json:"ChannelCode"`
}

type nipStatusPayload struct {
	TransactionReference string `json:"TransactionReference"`
	ChannelCode          string `json:"ChannelCode"`
}

type nipEnquiryPayload struct {
	AccountNumber              string `json:"AccountNumber"`
	DestinationInstitutionCode string `json:"DestinationInstitutionCode"`
	ChannelCode                string `json:"ChannelCode"`
}

type nipEnquiryResponse struct {
	ResponseCode           string `json:"ResponseCode"`
	ResponseDescription    string `json:"ResponseDescription"`
	SessionID              string `json:"SessionID"`
	AccountName            string `json:"AccountName"`
	BankVerificationNumber string `json:"BankVerificationNumber"`
	KYCLevel               string `json:"KYCLevel"`
}

// nipUnknownAccountCodes are the enquiry answers for an account the bank does not hold.
var nipUnknownAccountCodes = map[string]struct{}{
	"07": {},
	"25": {},
}

type nipResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	SessionID           string `json:"SessionID"`
}

// NewNIPClient validates config and returns a client.
func NewNIPClient(config NIPConfig) (*NIPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(config.OrganizationCode) == "" {
		return nil, fmt.Errorf("%w: organization code is required", ErrInvalidConfig)
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("%w: secret key is required", ErrInvalidConfig)
	}
	channelCode := config.ChannelCode
	if channelCode == "" {
		channelCode = nipDefaultChannelCode
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &NIPClient{
		baseURL:          baseURL,
		organizationCode: strings.TrimSpace(config.OrganizationCode),
		secretKey:        []byte(config.SecretKey),
		channelCode:      channelCode,
		httpClient:       httpClient,
	}, nil
}

// Submit sends a funds transfer. The transaction id is the gateway-side idempotency key.
func (client *NIPClient) Submit(ctx context.Context, request ledger.SettlementRequest) (ledger.SettlementResponse, error) {
	if request.Currency != ledger.DefaultCurrency() {
		return ledger.SettlementResponse{
			Outcome: ledger.SettlementFailed,
			Code:    "INVALID_CURRENCY",
			Message: "NIP only settles NGN",
		}, nil
	}
	payload := nipTransferPayload{
		TransactionReference:       request.TransactionID.String(),
		PaymentReference:           request.Reference.String(),
		SessionID:                  request.SessionID,
		ToAccount:                  request.Recipient.AccountNumber,
		DestinationInstitutionCode: request.Recipient.BankCode,
		BeneficiaryName:            request.Recipient.Name,
		Amount:                     json.Number(request.Amount.String()),
		Currency:                   nipCurrencyNGN,
		Narration:                  truncate(request.Narration, nipNarrationLimit),
		OriginatorInstitutionCode:  client.organizationCode,
		ChannelCode:                client.channelCode,
	}
	return client.post(ctx, nipTransferPath, payload, true)
}

// Status runs a transaction status query for a previously submitted transfer.
// An HTTP rejection of the query itself says nothing about the transfer and is
// returned as an error, never as SettlementFailed.
func (client *NIPClient) Status(ctx context.Context, _ ledger.TenantID, transactionID ledger.TransactionID) (ledger.SettlementResponse, error) {
	return client.post(ctx, nipStatusPath, nipStatusPayload{
		TransactionReference: transactionID.String(),
		ChannelCode:          client.channelCode,
	}, false)
}

// NameEnquiry resolves the registered holder of an account at another bank.
func (client *NIPClient) NameEnquiry(ctx context.Context, accountNumber string, bankCode string) (ledger.AccountIdentity, error) {
	statusCode, raw, err := client.exchange(ctx, nipEnquiryPath, nipEnquiryPayload{
		AccountNumber:              accountNumber,
		DestinationInstitutionCode: bankCode,
		ChannelCode:                client.channelCode,
	})
	if err != nil {
		return ledger.AccountIdentity{}, err
	}
	if statusCode >= http.StatusBadRequest {
		return ledger.AccountIdentity{}, fmt.Errorf("settlement: %s: http status %d", nipEnquiryPath, statusCode)
	}
	var decoded nipEnquiryResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return ledger.AccountIdentity{}, fmt.Errorf("settlement: decode %s: %w", nipEnquiryPath, err)
	}
	if _, unknown := nipUnknownAccountCodes[decoded.ResponseCode]; unknown {
		return ledger.AccountIdentity{}, fmt.Errorf("%w: %s at %s (code %s)", ledger.ErrAccountNotFound, accountNumber, bankCode, decoded.ResponseCode)
	}
	if decoded.ResponseCode != nipSuccessCode {
		return ledger.AccountIdentity{}, fmt.Errorf("settlement: %s: answered %s %s", nipEnquiryPath, decoded.ResponseCode, decoded.ResponseDescription)
	}
	return ledger.AccountIdentity{
		AccountNumber:          accountNumber,
		BankCode:               bankCode,
		AccountName:            strings.TrimSpace(decoded.AccountName),
		BankVerificationNumber: decoded.BankVerificationNumber,
		KYCLevel:               decoded.KYCLevel,
		SessionID:              decoded.SessionID,
	}, nil
}

// post sends a signed request. rejectionIsDecline reports whether an HTTP 4xx
// answer declines the transfer, which only holds for submissions.
func (client *NIPClient) post(ctx context.Context, path string, payload any, rejectionIsDecline bool) (ledger.SettlementResponse, error) {
	statusCode, raw, err := client.exchange(ctx, path, payload)
	if err != nil {
		return ledger.SettlementResponse{}, err
	}
	switch {
	case statusCode >= http.StatusBadRequest && !rejectionIsDecline:
		return ledger.SettlementResponse{}, fmt.Errorf("settlement: %s: query rejected with http status %d: %s", path, statusCode, truncate(strings.TrimSpace(string(raw)), nipNarrationLimit))
	case statusCode >= http.StatusBadRequest:
		return ledger.SettlementResponse{
			Outcome: ledger.SettlementFailed,
			Code:    fmt.Sprintf("HTTP_%d", statusCode),
			Message: strings.TrimSpace(string(raw)),
		}, nil
	}

	var decoded nipResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return ledger.SettlementResponse{}, fmt.Errorf("settlement: decode %s: %w", path, err)
	}
	return classify(decoded), nil
}

// exchange signs and sends payload. Server-side failures and throttling are errors;
// other statuses are returned with the body for the caller to interpret.
func (client *NIPClient) exchange(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("settlement: encode %s: %w", path, err)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("settlement: build %s: %w", path, err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set(headerOrganization, client.organizationCode)
	httpRequest.Header.Set(headerSignature, Sign(client.secretKey, body))
	httpRequest.Header.Set(headerSignatureMethod, signatureMethodSHA512)

	httpResponse, err := client.httpClient.Do(httpRequest)
	if err != nil {
		return 0, nil, fmt.Errorf("settlement: %s: %w", path, err)
	}
	defer httpResponse.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("settlement: read %s: %w", path, err)
	}
	switch {
	case httpResponse.StatusCode >= http.StatusInternalServerError,
		httpResponse.StatusCode == http.StatusTooManyRequests,
		httpResponse.StatusCode == http.StatusRequestTimeout:
		return 0, nil, fmt.Errorf("settlement: %s: http status %d", path, httpResponse.StatusCode)
	}
	return httpResponse.StatusCode, raw, nil
}

func classify(response nipResponse) ledger.SettlementResponse {
	result := ledger.SettlementResponse{
		ProviderReference: response.SessionID,
		Code:              response.ResponseCode,
		Message:           response.ResponseDescription,
	}
	if response.ResponseCode == nipSuccessCode {
		result.Outcome = ledger.SettlementSucceeded
		return result
	}
	if _, inconclusive := nipInconclusiveCodes[response.ResponseCode]; inconclusive || response.ResponseCode == "" {
		result.Outcome = ledger.SettlementUnknown
		return result
	}
	result.Outcome = ledger.SettlementFailed
	if result.Message == "" {
		result.Message = "transfer declined with code " + response.ResponseCode
	}
	return result
}

// Sign returns the hex HMAC-SHA512 of body.
func Sign(secretKey []byte, body []byte) string {
	mac := hmac.New(sha512.New, secretKey)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
