package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go-qbsync/internal/config"

	"go.uber.org/zap"
)

const ProviderQuickBooks = "quickbooks"

// qboEntityNames maps internal entity types to QuickBooks API entity names
var qboEntityNames = map[string]string{
	EntityCustomer: "Customer",
	EntityProduct:  "Item",
	EntityInvoice:  "Invoice",
}

// QuickBooksConnector talks to the QuickBooks Online REST API. Payloads pass
// through as opaque field maps; the engine never interprets them.
type QuickBooksConnector struct {
	baseURL     string
	realmID     string
	accessToken string
	client      *http.Client
	log         *zap.Logger
}

func NewQuickBooksConnector(cfg *config.Config, log *zap.Logger) *QuickBooksConnector {
	return &QuickBooksConnector{
		baseURL:     cfg.QBOBaseURL,
		realmID:     cfg.QBORealmID,
		accessToken: cfg.QBOAccessToken,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

func (c *QuickBooksConnector) Name() string {
	return ProviderQuickBooks
}

func (c *QuickBooksConnector) FetchAll(ctx context.Context, entityType string) ([]ExternalRecord, error) {
	apiName, err := c.apiEntityName(entityType)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("select * from %s", apiName)
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s", c.baseURL, c.realmID, url.QueryEscape(query))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		QueryResponse map[string]json.RawMessage `json:"QueryResponse"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding %s query response: %w", apiName, err)
	}

	var rows []map[string]interface{}
	if raw, ok := parsed.QueryResponse[apiName]; ok {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decoding %s rows: %w", apiName, err)
		}
	}

	records := make([]ExternalRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toExternalRecord(row))
	}
	return records, nil
}

func (c *QuickBooksConnector) FetchOne(ctx context.Context, entityType string, externalID string) (*ExternalRecord, error) {
	apiName, err := c.apiEntityName(entityType)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/%s/%s", c.baseURL, c.realmID, apiNamePath(apiName), url.PathEscape(externalID))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", apiName, err)
	}

	var row map[string]interface{}
	if raw, ok := parsed[apiName]; ok {
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("decoding %s record: %w", apiName, err)
		}
	}
	if row == nil {
		return nil, fmt.Errorf("%s %s: %w", apiName, externalID, ErrProviderRejected)
	}

	rec := toExternalRecord(row)
	return &rec, nil
}

func (c *QuickBooksConnector) Create(ctx context.Context, entityType string, fields map[string]interface{}) (string, error) {
	apiName, err := c.apiEntityName(entityType)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/%s", c.baseURL, c.realmID, apiNamePath(apiName))

	body, err := c.do(ctx, http.MethodPost, endpoint, fields)
	if err != nil {
		return "", err
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding %s create response: %w", apiName, err)
	}

	var row map[string]interface{}
	if raw, ok := parsed[apiName]; ok {
		if err := json.Unmarshal(raw, &row); err != nil {
			return "", fmt.Errorf("decoding created %s: %w", apiName, err)
		}
	}

	id, _ := row["Id"].(string)
	if id == "" {
		return "", fmt.Errorf("%s create returned no id: %w", apiName, ErrProviderRejected)
	}
	return id, nil
}

func (c *QuickBooksConnector) Update(ctx context.Context, entityType string, externalID string, fields map[string]interface{}) error {
	apiName, err := c.apiEntityName(entityType)
	if err != nil {
		return err
	}

	// QuickBooks updates are full-object POSTs carrying the record id
	payload := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["Id"] = externalID

	endpoint := fmt.Sprintf("%s/v3/company/%s/%s", c.baseURL, c.realmID, apiNamePath(apiName))

	_, err = c.do(ctx, http.MethodPost, endpoint, payload)
	return err
}

// do performs one HTTP round trip and classifies failures into the engine's
// error taxonomy: network/5xx is retryable, 4xx is terminal.
func (c *QuickBooksConnector) do(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %v: %w", method, endpoint, err, ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %v: %w", err, ErrProviderUnavailable)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		c.log.Warn("quickbooks call failed",
			zap.String("provider", ProviderQuickBooks),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%s returned %d: %w", endpoint, resp.StatusCode, ErrProviderUnavailable)
	default:
		return nil, fmt.Errorf("%s returned %d: %s: %w", endpoint, resp.StatusCode, truncate(string(body), 200), ErrProviderRejected)
	}
}

func (c *QuickBooksConnector) apiEntityName(entityType string) (string, error) {
	name, ok := qboEntityNames[entityType]
	if !ok {
		return "", fmt.Errorf("unsupported entity type %q: %w", entityType, ErrProviderRejected)
	}
	return name, nil
}

func apiNamePath(apiName string) string {
	// Resource path segments are lowercase in the QBO API
	switch apiName {
	case "Customer":
		return "customer"
	case "Item":
		return "item"
	case "Invoice":
		return "invoice"
	}
	return apiName
}

func toExternalRecord(row map[string]interface{}) ExternalRecord {
	rec := ExternalRecord{Fields: row}
	if id, ok := row["Id"].(string); ok {
		rec.ID = id
	}
	if status, ok := row["status"].(string); ok && status == "Deleted" {
		rec.Deleted = true
	}
	if active, ok := row["Active"].(bool); ok && !active {
		rec.Deleted = true
	}
	if meta, ok := row["MetaData"].(map[string]interface{}); ok {
		if raw, ok := meta["LastUpdatedTime"].(string); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				rec.LastUpdated = t
			}
		}
	}
	return rec
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
