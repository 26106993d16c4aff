// Package catalog is the OpenSubtitles REST client: login, English subtitle
// search and two-step download. The bearer token is acquired lazily and
// refreshed once when the API answers 401.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/pkg/log"
)

const (
	// DefaultBaseURL is the public OpenSubtitles REST endpoint.
	DefaultBaseURL = "https://api.opensubtitles.com/api/v1"

	userAgent = "sublayer v1.0"
)

// Credentials carries the catalog account settings. They are read per call
// so runtime settings changes take effect without a restart.
type Credentials struct {
	APIKey   string
	Username string
	Password string
}

// SearchFilters narrows a subtitle search. Zero values are omitted.
type SearchFilters struct {
	Query     string
	IMDBID    string
	TMDBID    string
	MovieHash string
	Page      int
}

// SearchResponse is the catalog's paged search result. Item attributes stay
// schemaless so unknown fields survive the proxy round-trip.
type SearchResponse struct {
	TotalPages int          `json:"total_pages"`
	TotalCount int          `json:"total_count"`
	PerPage    int          `json:"per_page"`
	Page       int          `json:"page"`
	Data       []SearchItem `json:"data"`
}

// SearchItem is one search hit.
type SearchItem struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

// Download is a fetched subtitle with its catalog file name.
type Download struct {
	Content  string
	FileName string
}

// Client talks to the catalog API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials func() Credentials

	mu    sync.Mutex
	token string
}

// NewClient builds a client. credentials is called before every request.
func NewClient(baseURL string, credentials func() Credentials) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		credentials: credentials,
	}
}

// Login authenticates and stores the bearer token.
func (c *Client) Login(ctx context.Context) error {
	creds := c.credentials()
	if creds.Username == "" || creds.Password == "" {
		return errs.New(errs.NotConfigured, "catalog credentials are not set")
	}

	log.Info("Logging in to subtitle catalog as %s", creds.Username)

	body, _ := json.Marshal(map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to create login request", err)
	}
	c.setCommonHeaders(req, creds)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Wrap(errs.UpstreamUnavailable, "catalog login failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.UpstreamUnavailable, "catalog login rejected").
			WithContext("status", resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return errs.Wrap(errs.UpstreamUnavailable, "failed to parse login response", err)
	}
	if payload.Token == "" {
		return errs.New(errs.UpstreamUnavailable, "catalog login returned no token")
	}

	c.mu.Lock()
	c.token = payload.Token
	c.mu.Unlock()
	log.Info("Catalog login succeeded")
	return nil
}

// IsAuthenticated reports whether a bearer token is held.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// Search queries the catalog for English subtitles matching the filters.
func (c *Client) Search(ctx context.Context, filters SearchFilters) (*SearchResponse, error) {
	query := url.Values{}
	query.Set("languages", "en")
	if filters.Query != "" {
		query.Set("query", filters.Query)
	}
	if filters.IMDBID != "" {
		query.Set("imdb_id", strings.TrimPrefix(filters.IMDBID, "tt"))
	}
	if filters.TMDBID != "" {
		query.Set("tmdb_id", filters.TMDBID)
	}
	if filters.MovieHash != "" {
		query.Set("moviehash", filters.MovieHash)
	}
	if filters.Page > 0 {
		query.Set("page", fmt.Sprintf("%d", filters.Page))
	}

	searchURL := c.baseURL + "/subtitles?" + query.Encode()
	log.Debug("Searching catalog: %s", searchURL)

	body, err := c.doAuthed(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	})
	if err != nil {
		return nil, err
	}

	var response SearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errs.Wrap(errs.UpstreamUnavailable, "failed to parse search response", err)
	}
	return &response, nil
}

// DownloadSubtitle resolves the download link for a file id and fetches the
// subtitle content.
func (c *Client) DownloadSubtitle(ctx context.Context, fileID int64) (*Download, error) {
	log.Info("Requesting catalog download link for file_id %d", fileID)

	requestBody, _ := json.Marshal(map[string]any{"file_id": fileID})
	body, err := c.doAuthed(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/download", bytes.NewReader(requestBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Link     string `json:"link"`
		FileName string `json:"file_name"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errs.Wrap(errs.UpstreamUnavailable, "failed to parse download response", err)
	}
	if payload.Link == "" {
		return nil, errs.New(errs.UpstreamUnavailable, "catalog returned no download link").
			WithContext("fileId", fileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.Link, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to create download request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamUnavailable, "subtitle download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.UpstreamUnavailable, "subtitle download rejected").
			WithContext("status", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamUnavailable, "failed to read subtitle content", err)
	}

	return &Download{Content: string(content), FileName: payload.FileName}, nil
}

// doAuthed performs an authenticated request, logging in first when no
// token is held and retrying exactly once after a 401.
func (c *Client) doAuthed(ctx context.Context, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	if !c.IsAuthenticated() {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	body, status, err := c.doOnce(ctx, build)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		log.Warn("Catalog token expired, re-authenticating")
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.doOnce(ctx, build)
		if err != nil {
			return nil, err
		}
	}

	if status < 200 || status >= 300 {
		return nil, errs.New(errs.UpstreamUnavailable, "catalog request failed").
			WithContext("status", status)
	}
	return body, nil
}

func (c *Client) doOnce(ctx context.Context, build func(context.Context) (*http.Request, error)) ([]byte, int, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, 0, errs.Wrap(errs.Internal, "failed to create catalog request", err)
	}

	creds := c.credentials()
	c.setCommonHeaders(req, creds)
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errs.Wrap(errs.UpstreamUnavailable, "catalog is unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errs.Wrap(errs.UpstreamUnavailable, "failed to read catalog response", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) setCommonHeaders(req *http.Request, creds Credentials) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if creds.APIKey != "" {
		req.Header.Set("Api-Key", creds.APIKey)
	}
}
