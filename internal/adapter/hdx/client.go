package hdx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// timePeriodFormat is how the catalog encodes dataset date ranges.
const timePeriodFormat = "2006-01-02T15:04:05"

// Client talks to a CKAN-style HDX instance.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a catalog client.
func NewClient(baseURL, apiKey, userAgent string, timeout time.Duration, retries int, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		userAgent:  userAgent,
		httpClient: rc.StandardClient(),
		logger:     logger,
	}
}

// Upsert creates the dataset if it does not exist, updates it otherwise, then
// uploads every resource file in order. Pre-existing resources are matched by
// name and replaced; with RemoveAdditionalResources, leftovers are deleted.
func (c *Client) Upsert(ctx context.Context, ds Dataset, opts UpsertOptions) error {
	existing, err := c.upsertPackage(ctx, ds, opts)
	if err != nil {
		return err
	}

	uploaded := make(map[string]bool, len(ds.Resources))
	for _, res := range ds.Resources {
		if err := c.uploadResource(ctx, ds.Name, res, existing[res.Name]); err != nil {
			return err
		}
		uploaded[res.Name] = true
	}

	if opts.RemoveAdditionalResources {
		for name, id := range existing {
			if uploaded[name] {
				continue
			}
			if err := c.deleteResource(ctx, id); err != nil {
				return err
			}
			c.logger.Info("removed stale resource", "dataset", ds.Name, "resource", name)
		}
	}
	return nil
}

// upsertPackage creates or updates the dataset metadata and returns the
// existing resources keyed by name.
func (c *Client) upsertPackage(ctx context.Context, ds Dataset, opts UpsertOptions) (map[string]string, error) {
	payload := packagePayload(ds, opts)

	result, err := c.action(ctx, "package_create", payload)
	if isAlreadyExists(err) {
		payload["id"] = ds.Name
		result, err = c.action(ctx, "package_update", payload)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert dataset %s: %w", ds.Name, err)
	}

	var pkg struct {
		Resources []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(result, &pkg); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", ds.Name, err)
	}

	existing := make(map[string]string, len(pkg.Resources))
	for _, r := range pkg.Resources {
		existing[r.Name] = r.ID
	}
	return existing, nil
}

func packagePayload(ds Dataset, opts UpsertOptions) map[string]any {
	tags := make([]map[string]string, len(ds.Tags))
	for i, t := range ds.Tags {
		tags[i] = map[string]string{"name": t}
	}
	groups := make([]map[string]string, len(ds.Locations))
	for i, loc := range ds.Locations {
		groups[i] = map[string]string{"name": strings.ToLower(loc)}
	}

	payload := map[string]any{
		"name":                  ds.Name,
		"title":                 ds.Title,
		"notes":                 ds.Notes,
		"maintainer":            ds.Maintainer,
		"owner_org":             ds.Organization,
		"data_update_frequency": ds.UpdateFrequency,
		"subnational":           ds.Subnational,
		"dataset_date": fmt.Sprintf("[%s TO %s]",
			ds.TimePeriodStart.Format(timePeriodFormat),
			ds.TimePeriodEnd.Format(timePeriodFormat)),
		"tags":   tags,
		"groups": groups,
	}
	if opts.UpdatedByScript != "" {
		payload["updated_by_script"] = opts.UpdatedByScript
	}
	if opts.Batch != "" {
		payload["batch"] = opts.Batch
	}
	if opts.MatchResourceOrder {
		payload["match_resource_order"] = true
	}
	return payload
}

// uploadResource creates or replaces a single file-backed resource.
func (c *Client) uploadResource(ctx context.Context, datasetName string, res Resource, existingID string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"package_id":  datasetName,
		"name":        res.Name,
		"description": res.Description,
		"format":      res.Format,
	}
	action := "resource_create"
	if existingID != "" {
		action = "resource_update"
		fields["id"] = existingID
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("build upload form: %w", err)
		}
	}

	part, err := mw.CreateFormFile("upload", filepath.Base(res.UploadPath))
	if err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}
	src, err := os.Open(res.UploadPath)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", res.Name, err)
	}
	defer src.Close()
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("read artifact %s: %w", res.Name, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}

	if _, err := c.post(ctx, action, &body, mw.FormDataContentType()); err != nil {
		return fmt.Errorf("upload resource %s: %w", res.Name, err)
	}
	c.logger.Info("uploaded resource", "dataset", datasetName, "resource", res.Name, "format", res.Format)
	return nil
}

func (c *Client) deleteResource(ctx context.Context, id string) error {
	_, err := c.action(ctx, "resource_delete", map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete resource %s: %w", id, err)
	}
	return nil
}

// action performs a JSON-bodied CKAN action call and returns the raw result.
func (c *Client) action(ctx context.Context, name string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return c.post(ctx, name, bytes.NewReader(body), "application/json")
}

func (c *Client) post(ctx context.Context, action string, body io.Reader, contentType string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/api/3/action/%s", c.baseURL, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", action, err)
	}

	var env struct {
		Success bool            `json:"success"`
		Result  json.RawMessage `json:"result"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s: status %d: %s", action, resp.StatusCode, data)
	}
	if !env.Success {
		return nil, &apiError{Action: action, Status: resp.StatusCode, Body: env.Error}
	}
	return env.Result, nil
}

// apiError is a failed CKAN action response.
type apiError struct {
	Action string
	Status int
	Body   json.RawMessage
}

func (e *apiError) Error() string {
	return fmt.Sprintf("hdx %s failed: status %d: %s", e.Action, e.Status, e.Body)
}

// isAlreadyExists reports whether a package_create failure means the dataset
// name is taken and an update should be attempted instead.
func isAlreadyExists(err error) bool {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusConflict ||
		bytes.Contains(apiErr.Body, []byte("already in use"))
}
