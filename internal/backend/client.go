// Package backend is the REST client for the parked-cars API: map tokens, map
// blocks, the cars parked in them, car submissions and image upload
// signatures.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/schema"

	"manualsmap/internal/config"
	"manualsmap/internal/domain/entities"
)

// ErrUnavailable wraps transport failures: the backend could not be reached
// or did not answer.
var ErrUnavailable = errors.New("backend unavailable")

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("backend %s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// SubmitResult is the backend's answer to a car submission.
type SubmitResult struct {
	LicenseHash string `json:"license_hash"`
	MapBlockID  int    `json:"mapBlockId,omitempty"`
}

// mapBlocksQuery is encoded into the /mapblocks query string with the same
// tags the backend decodes it with.
type mapBlocksQuery struct {
	MinLatitude  float64 `schema:"min_latitude"`
	MinLongitude float64 `schema:"min_longitude"`
	MaxLatitude  float64 `schema:"max_latitude"`
	MaxLongitude float64 `schema:"max_longitude"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type carsResponse struct {
	Cars []entities.Car `json:"cars"`
}

type blockCarsResponse struct {
	Cars []entities.CarSummary `json:"cars"`
}

type mapBlocksResponse struct {
	MapBlocks []entities.MapBlock `json:"mapBlocks"`
}

type signatureRequest struct {
	Parameters map[string]string `json:"parameters"`
}

type signatureResponse struct {
	Signature string `json:"signature"`
}

type errorResponse struct {
	Err string `json:"err"`
}

// Client talks to the backend over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	tokenPath string
	http      *http.Client
	encoder   *schema.Encoder
}

// NewClient creates a client for cfg. A nil httpClient gets one with the
// configured timeout.
func NewClient(cfg config.BackendConfig, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		tokenPath = "/mapkit/token"
	}
	return &Client{
		baseURL:   base,
		tokenPath: tokenPath,
		http:      httpClient,
		encoder:   schema.NewEncoder(),
	}, nil
}

// Token fetches a map token from /token, the endpoint of the first drafts.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.token(ctx, "/token")
}

// MapKitToken fetches a map token from /mapkit/token.
func (c *Client) MapKitToken(ctx context.Context) (string, error) {
	return c.token(ctx, "/mapkit/token")
}

// ConfiguredToken fetches a map token from the configured token path.
func (c *Client) ConfiguredToken(ctx context.Context) (string, error) {
	return c.token(ctx, c.tokenPath)
}

func (c *Client) token(ctx context.Context, path string) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("backend GET %s: empty token", path)
	}
	return resp.Token, nil
}

// Cars lists every car with its coordinate.
func (c *Client) Cars(ctx context.Context) ([]entities.Car, error) {
	var resp carsResponse
	if err := c.do(ctx, http.MethodGet, "/cars", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Cars, nil
}

// CarSchema returns the JSON schema the backend validates submissions with.
func (c *Client) CarSchema(ctx context.Context) ([]byte, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/cars/schema", nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SubmitCar posts a new car.
func (c *Client) SubmitCar(ctx context.Context, car entities.CarSubmission) (SubmitResult, error) {
	var result SubmitResult
	if err := c.do(ctx, http.MethodPost, "/cars", nil, car, &result); err != nil {
		return SubmitResult{}, err
	}
	log.Printf("[BACKEND] Submitted %d %s %s at %.5f,%.5f", car.Year, car.Make, car.Model, car.Latitude, car.Longitude)
	return result, nil
}

// MapBlocks lists the map blocks inside box.
func (c *Client) MapBlocks(ctx context.Context, box entities.BoundingBox) ([]entities.MapBlock, error) {
	query := url.Values{}
	err := c.encoder.Encode(mapBlocksQuery{
		MinLatitude:  box.South,
		MinLongitude: box.West,
		MaxLatitude:  box.North,
		MaxLongitude: box.East,
	}, query)
	if err != nil {
		return nil, fmt.Errorf("encode map block query: %w", err)
	}

	var resp mapBlocksResponse
	if err := c.do(ctx, http.MethodGet, "/mapblocks", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.MapBlocks, nil
}

// BlockCars lists the cars parked in one map block.
func (c *Client) BlockCars(ctx context.Context, blockID int) ([]entities.CarSummary, error) {
	var resp blockCarsResponse
	path := fmt.Sprintf("/mapblocks/%d/cars", blockID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Cars, nil
}

// ImageSignature asks the backend to sign image upload parameters.
func (c *Client) ImageSignature(ctx context.Context, params map[string]string) (string, error) {
	var resp signatureResponse
	err := c.do(ctx, http.MethodPost, "/images/signature", nil, signatureRequest{Parameters: params}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Signature, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func newHTTPError(method, path string, resp *http.Response) *HTTPError {
	httpErr := &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return httpErr
	}
	var body errorResponse
	if json.Unmarshal(raw, &body) == nil && body.Err != "" {
		httpErr.Message = body.Err
	} else {
		httpErr.Message = strings.TrimSpace(string(raw))
	}
	return httpErr
}
