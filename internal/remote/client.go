// Package remote implements the mailbox API client: bearer-token HTTP with a
// single refresh-and-retry on auth expiry, cursor-paginated listings, and
// content fetches. It satisfies export.Source.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"mailferry/internal/export"
	"mailferry/internal/model"
)

const defaultPageSize = 100

// Client talks to the remote mailbox API.
type Client struct {
	base      *url.URL
	http      *http.Client
	oauth     *oauth2.Config
	tokenPath string // empty disables persisting refreshed tokens
	pageSize  int

	mu    sync.Mutex
	token *oauth2.Token
}

// NewClient builds a client from a base URL and an oauth2 config plus the
// current token. tokenPath, when non-empty, receives refreshed tokens.
func NewClient(baseURL string, ocfg *oauth2.Config, tok *oauth2.Token, tokenPath string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if tok == nil || tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("no usable token: run authentication first")
	}
	return &Client{
		base:      u,
		http:      &http.Client{Timeout: 60 * time.Second},
		oauth:     ocfg,
		tokenPath: tokenPath,
		pageSize:  defaultPageSize,
		token:     tok,
	}, nil
}

// SetPageSize overrides the listing page size (default 100).
func (c *Client) SetPageSize(n int) {
	if n > 0 {
		c.pageSize = n
	}
}

// do performs one authenticated GET. The caller interprets a 401.
func (c *Client) do(ctx context.Context, p string, q url.Values) ([]byte, int, error) {
	u := c.base.JoinPath(p)
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	c.mu.Lock()
	c.token.SetAuthHeader(req)
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// get performs an authenticated GET with the auth-expired recovery path: a
// 401 triggers exactly one token refresh and one retry of the same request;
// a second 401, or a failed refresh, is an AuthError that aborts the run.
func (c *Client) get(ctx context.Context, p string, q url.Values) ([]byte, error) {
	body, status, err := c.do(ctx, p, q)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		if err := c.refresh(ctx); err != nil {
			return nil, &export.AuthError{Err: fmt.Errorf("token refresh: %w", err)}
		}
		body, status, err = c.do(ctx, p, q)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, &export.AuthError{Err: errors.New("request unauthorized after token refresh")}
		}
	}
	if status >= 400 {
		return nil, fmt.Errorf("GET %s: status %d: %s", p, status, truncate(body, 200))
	}
	return body, nil
}

// refresh renews the bearer token through the oauth2 token endpoint and
// persists the result. The stored expiry is backdated first so the token
// source actually hits the endpoint instead of returning the cached token.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := *c.token
	stale.Expiry = time.Now().Add(-time.Minute)
	tok, err := c.oauth.TokenSource(ctx, &stale).Token()
	if err != nil {
		return err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = c.token.RefreshToken
	}
	c.token = tok
	if c.tokenPath != "" {
		if err := SaveToken(c.tokenPath, tok); err != nil {
			return fmt.Errorf("persist refreshed token: %w", err)
		}
	}
	return nil
}

type folderEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Total int    `json:"total"`
}

type folderListResponse struct {
	Folders    []folderEntry `json:"folders"`
	NextCursor string        `json:"nextCursor"`
}

func (c *Client) ListFolders(ctx context.Context, parentID, cursor string) (export.FolderPage, error) {
	q := url.Values{"limit": {strconv.Itoa(c.pageSize)}}
	if parentID != "" {
		q.Set("parent", parentID)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	body, err := c.get(ctx, "/api/folders", q)
	if err != nil {
		return export.FolderPage{}, err
	}
	var resp folderListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return export.FolderPage{}, fmt.Errorf("decode folder page: %w", err)
	}
	page := export.FolderPage{Cursor: resp.NextCursor}
	for _, f := range resp.Folders {
		page.Folders = append(page.Folders, model.Folder{ID: f.ID, Name: f.Name, Total: f.Total})
	}
	return page, nil
}

func (c *Client) GetFolder(ctx context.Context, id string) (model.Folder, error) {
	body, err := c.get(ctx, "/api/folders/"+url.PathEscape(id), nil)
	if err != nil {
		return model.Folder{}, err
	}
	var resp folderEntry
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Folder{}, fmt.Errorf("decode folder %s: %w", id, err)
	}
	return model.Folder{ID: resp.ID, Name: resp.Name, Total: resp.Total}, nil
}

type messageListResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	NextCursor string `json:"nextCursor"`
}

func (c *Client) ListMessages(ctx context.Context, folderID, cursor string) (export.MessagePage, error) {
	q := url.Values{"limit": {strconv.Itoa(c.pageSize)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	body, err := c.get(ctx, "/api/folders/"+url.PathEscape(folderID)+"/messages", q)
	if err != nil {
		return export.MessagePage{}, err
	}
	var resp messageListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return export.MessagePage{}, fmt.Errorf("decode message page: %w", err)
	}
	page := export.MessagePage{Cursor: resp.NextCursor}
	for _, m := range resp.Messages {
		page.Refs = append(page.Refs, model.MessageRef{ID: m.ID, FolderID: folderID})
	}
	return page, nil
}

type messageResponse struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	From        string    `json:"from"`
	To          []string  `json:"to"`
	Cc          []string  `json:"cc"`
	Date        time.Time `json:"date"`
	ContentType string    `json:"contentType"`
	Body        string    `json:"body"`
	Attachments []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
	} `json:"attachments"`
}

func (c *Client) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	body, err := c.get(ctx, "/api/messages/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var resp messageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", id, err)
	}
	msg := &model.Message{
		ID:          resp.ID,
		Subject:     resp.Subject,
		From:        resp.From,
		To:          resp.To,
		Cc:          resp.Cc,
		Date:        resp.Date,
		ContentType: resp.ContentType,
		Body:        resp.Body,
	}
	for _, a := range resp.Attachments {
		msg.Attachments = append(msg.Attachments, model.Attachment{
			ID:          a.ID,
			Name:        a.Name,
			ContentType: a.ContentType,
		})
	}
	return msg, nil
}

func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	return c.get(ctx, "/api/messages/"+url.PathEscape(messageID)+"/attachments/"+url.PathEscape(attachmentID), nil)
}

type countResponse struct {
	Total int `json:"total"`
}

func (c *Client) CountMessages(ctx context.Context) (int, error) {
	body, err := c.get(ctx, "/api/messages/count", nil)
	if err != nil {
		return 0, err
	}
	var resp countResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	return resp.Total, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
