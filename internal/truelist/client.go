// Package truelist is a client for the Truelist email-verification API.
package truelist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
)

// Client calls the Truelist batch and single-email verification endpoints.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logger.Logger
}

// Batch is the provider's batch record: creation response and status polls
// share this shape.
type Batch struct {
	ID                   string  `json:"id"`
	BatchState           string  `json:"batch_state"`
	EmailCount           int     `json:"email_count"`
	ProcessedCount       int     `json:"processed_count"`
	OKCount              int     `json:"ok_count"`
	UnknownCount         int     `json:"unknown_count"`
	DisposableCount      int     `json:"disposable_count"`
	RoleCount            int     `json:"role_count"`
	FailedSyntaxCount    int     `json:"failed_syntax_check_count"`
	FailedMXCount        int     `json:"failed_mx_check_count"`
	FailedNoMailboxCount int     `json:"failed_no_mailbox_count"`
	OKForAllCount        int     `json:"ok_for_all_count"`
	AnnotatedCSVURL      *string `json:"annotated_csv_url,omitempty"`
}

// Completed reports whether the provider considers the batch finished.
func (b *Batch) Completed() bool {
	return b.BatchState == "completed"
}

// Counts converts the provider counters into the shared aggregate type.
func (b *Batch) Counts() domain.ProviderCounts {
	return domain.ProviderCounts{
		OK:              b.OKCount,
		FailedSyntax:    b.FailedSyntaxCount,
		FailedMX:        b.FailedMXCount,
		FailedNoMailbox: b.FailedNoMailboxCount,
		OKForAll:        b.OKForAllCount,
		Disposable:      b.DisposableCount,
		Role:            b.RoleCount,
		Unknown:         b.UnknownCount,
	}
}

// EmailRecord is one per-email row from the paginated results endpoint.
type EmailRecord struct {
	Address       string `json:"address"`
	EmailState    string `json:"email_state"`
	EmailSubState string `json:"email_sub_state"`
	Domain        string `json:"domain"`
}

// SingleResult is the single-email verification response.
type SingleResult struct {
	Email       string `json:"email"`
	FormatValid bool   `json:"format_valid"`
	DomainValid bool   `json:"domain_valid"`
	SMTPValid   bool   `json:"smtp_valid"`
	Deliverable bool   `json:"deliverable"`
	CatchAll    bool   `json:"catch_all"`
	Disposable  bool   `json:"disposable"`
	FreeEmail   bool   `json:"free_email"`
}

type createBatchRequest struct {
	Data       [][]string `json:"data"`
	Filename   string     `json:"filename"`
	WebhookURL string     `json:"webhook_url,omitempty"`
}

// NewClient creates a verification client. A missing API key is a
// configuration failure raised here, before any call is attempted.
func NewClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: truelist", domain.ErrMissingAPIKey)
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewBuffer(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("verification API error: %d %s: %s",
			resp.StatusCode, resp.Status, string(respBody))
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	return nil
}

// CreateBatch submits a full email set as one verification batch. The
// optional webhookURL is called by the provider when the batch finishes.
func (c *Client) CreateBatch(ctx context.Context, emails []string, filename, webhookURL string) (*Batch, error) {
	data := make([][]string, 0, len(emails))
	for _, email := range emails {
		data = append(data, []string{email})
	}

	payload, err := json.Marshal(createBatchRequest{
		Data:       data,
		Filename:   filename,
		WebhookURL: webhookURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	var batch Batch
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v1/batches", payload, &batch); err != nil {
		return nil, err
	}

	c.logger.Info("verification batch created",
		logger.String("batch_id", batch.ID),
		logger.Int("email_count", batch.EmailCount))

	return &batch, nil
}

// GetBatch polls the status and aggregate counters of a batch.
func (c *Client) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	var batch Batch
	endpoint := c.baseURL + "/api/v1/batches/" + url.PathEscape(batchID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListEmails fetches one page of per-email results for a finished batch.
func (c *Client) ListEmails(ctx context.Context, batchID string, page, perPage int) ([]EmailRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v1/emails?batch_uuid=%s&page=%d&per_page=%d",
		c.baseURL, url.QueryEscape(batchID), page, perPage)

	var records []EmailRecord
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// DownloadCSV fetches the annotated CSV for a finished batch.
func (c *Client) DownloadCSV(ctx context.Context, csvURL string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, csvURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("download CSV: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read CSV body: %w", err)
	}
	return string(body), nil
}

// VerifySingle checks one email address.
func (c *Client) VerifySingle(ctx context.Context, email string) (*SingleResult, error) {
	endpoint := c.baseURL + "/api/v1/verify?email=" + url.QueryEscape(email)

	var result SingleResult
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Check converts the single-email response into the shared check type.
func (r *SingleResult) Check() domain.SingleCheck {
	return domain.SingleCheck{
		FormatValid: r.FormatValid,
		DomainValid: r.DomainValid,
		SMTPValid:   r.SMTPValid,
		Deliverable: r.Deliverable,
		CatchAll:    r.CatchAll,
		Disposable:  r.Disposable,
	}
}
