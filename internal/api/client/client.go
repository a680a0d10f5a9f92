package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"complyeye/internal/models"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient() *Client {
	baseURL := os.Getenv("COMPLYEYE_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) ListRules(tenantID string, enabled *bool) ([]models.Rule, error) {
	query := url.Values{}
	query.Set("tenant_id", tenantID)
	if enabled != nil {
		query.Set("enabled", strconv.FormatBool(*enabled))
	}

	var rules []models.Rule
	if err := c.get("/api/v1/rules?"+query.Encode(), &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *Client) SetRuleEnabled(ruleID string, enabled bool) error {
	action := "disable"
	if enabled {
		action = "enable"
	}
	return c.put(fmt.Sprintf("/api/v1/rules/%s/%s", ruleID, action), nil, nil)
}

func (c *Client) CreateRule(r *models.Rule) (*models.Rule, error) {
	var created models.Rule
	if err := c.post("/api/v1/rules", r, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ListFirings(tenantID, status string, limit int) ([]models.FiringRecord, error) {
	query := url.Values{}
	query.Set("tenant_id", tenantID)
	if status != "" {
		query.Set("status", status)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var recs []models.FiringRecord
	if err := c.get("/api/v1/firings?"+query.Encode(), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *Client) AcknowledgeFiring(firingID, userID string) error {
	return c.put(fmt.Sprintf("/api/v1/firings/%s/acknowledge", firingID),
		map[string]string{"user_id": userID}, nil)
}

func (c *Client) ResolveFiring(firingID, userID string) error {
	return c.put(fmt.Sprintf("/api/v1/firings/%s/resolve", firingID),
		map[string]string{"user_id": userID}, nil)
}

func (c *Client) SendEvent(tenantID, source string, data map[string]any) ([]models.FiringRecord, error) {
	payload := map[string]any{
		"tenant_id": tenantID,
		"source":    source,
		"data":      data,
	}
	var resp struct {
		EventID string                `json:"event_id"`
		Firings []models.FiringRecord `json:"firings"`
	}
	if err := c.post("/api/v1/events", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Firings, nil
}

func (c *Client) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *Client) post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *Client) put(path string, body, out any) error {
	return c.do(http.MethodPut, path, body, out)
}

func (c *Client) do(method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("api error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("api error: status %d", resp.StatusCode)
	}

	if out != nil && len(respBody) > 0 {
		return json.Unmarshal(respBody, out)
	}
	return nil
}
