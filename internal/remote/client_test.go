package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"golang.org/x/oauth2"

	"mailferry/internal/export"
)

// authServer is an httptest mailbox API whose bearer token can be rotated.
// The API accepts validToken; the token endpoint hands out issuedToken.
type authServer struct {
	*httptest.Server
	validToken   atomic.Value // string
	issuedToken  atomic.Value // string
	tokenCalls   atomic.Int64
	countCalls   atomic.Int64
	refuseTokens bool
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()
	s := &authServer{}
	s.validToken.Store("good")
	s.issuedToken.Store("good")

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		s.tokenCalls.Add(1)
		if s.refuseTokens {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3600,"refresh_token":"r2"}`,
			s.issuedToken.Load())
	})
	mux.HandleFunc("/api/messages/count", func(w http.ResponseWriter, r *http.Request) {
		s.countCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+s.validToken.Load().(string) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"total":42}`)
	})
	mux.HandleFunc("/api/folders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "" {
			fmt.Fprint(w, `{"folders":[{"id":"f1","name":"Inbox","total":3}],"nextCursor":"p2"}`)
			return
		}
		fmt.Fprint(w, `{"folders":[{"id":"f2","name":"Sent"}],"nextCursor":""}`)
	})
	mux.HandleFunc("/api/folders/f1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"f1","name":"Inbox","total":3}`)
	})
	mux.HandleFunc("/api/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"m1","subject":"hi","from":"a@b.example","date":"2024-05-01T12:00:00Z",
			"contentType":"text/plain","body":"hello","attachments":[{"id":"a1","name":"x.txt","contentType":"text/plain"}]}`)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newTestClient(t *testing.T, s *authServer, accessToken, tokenPath string) *Client {
	t.Helper()
	ocfg := &oauth2.Config{
		ClientID: "mailferry-test",
		Endpoint: oauth2.Endpoint{TokenURL: s.URL + "/token"},
	}
	c, err := NewClient(s.URL, ocfg, &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: "r1",
	}, tokenPath)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestClientPassThrough(t *testing.T) {
	s := newAuthServer(t)
	c := newTestClient(t, s, "good", "")

	n, err := c.CountMessages(context.Background())
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if n != 42 {
		t.Errorf("count = %d, want 42", n)
	}
	if s.tokenCalls.Load() != 0 {
		t.Errorf("token endpoint hit %d times, want 0", s.tokenCalls.Load())
	}
}

func TestClientRefreshesOnceAndRetries(t *testing.T) {
	s := newAuthServer(t)
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	// Client starts with a stale access token; the server only accepts
	// "good", which the token endpoint hands out.
	c := newTestClient(t, s, "stale", tokenPath)

	n, err := c.CountMessages(context.Background())
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if n != 42 {
		t.Errorf("count = %d, want 42", n)
	}
	if got := s.tokenCalls.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1", got)
	}
	if got := s.countCalls.Load(); got != 2 {
		t.Errorf("count endpoint hit %d times, want 2 (original + retry)", got)
	}

	// The refreshed token was persisted.
	tok, err := ReadToken(tokenPath)
	if err != nil {
		t.Fatalf("ReadToken: %v", err)
	}
	if tok.AccessToken != "good" {
		t.Errorf("persisted access token = %q, want good", tok.AccessToken)
	}
	if tok.RefreshToken != "r2" {
		t.Errorf("persisted refresh token = %q, want r2", tok.RefreshToken)
	}
}

func TestClientFailedRefreshIsAuthError(t *testing.T) {
	s := newAuthServer(t)
	s.refuseTokens = true
	c := newTestClient(t, s, "stale", "")

	_, err := c.CountMessages(context.Background())
	var authErr *export.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if got := s.tokenCalls.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1", got)
	}
}

func TestClientSecondExpiryIsAuthError(t *testing.T) {
	s := newAuthServer(t)
	// The token endpoint hands out a token the API still rejects, so the
	// single retry hits a second 401.
	s.issuedToken.Store("still-stale")
	c := newTestClient(t, s, "stale", "")

	_, err := c.CountMessages(context.Background())
	var authErr *export.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if got := s.tokenCalls.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want exactly 1", got)
	}
	if got := s.countCalls.Load(); got != 2 {
		t.Errorf("count endpoint hit %d times, want 2", got)
	}
}

func TestClientListFoldersPagination(t *testing.T) {
	s := newAuthServer(t)
	c := newTestClient(t, s, "good", "")
	ctx := context.Background()

	page, err := c.ListFolders(ctx, "", "")
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(page.Folders) != 1 || page.Folders[0].ID != "f1" || page.Cursor != "p2" {
		t.Fatalf("first page = %+v", page)
	}
	if page.Folders[0].Total != 3 {
		t.Errorf("folder total = %d, want 3", page.Folders[0].Total)
	}
	page, err = c.ListFolders(ctx, "", page.Cursor)
	if err != nil {
		t.Fatalf("ListFolders page 2: %v", err)
	}
	if len(page.Folders) != 1 || page.Folders[0].ID != "f2" || page.Cursor != "" {
		t.Fatalf("second page = %+v", page)
	}
}

func TestClientGetFolder(t *testing.T) {
	s := newAuthServer(t)
	c := newTestClient(t, s, "good", "")

	folder, err := c.GetFolder(context.Background(), "f1")
	if err != nil {
		t.Fatalf("GetFolder: %v", err)
	}
	if folder.ID != "f1" || folder.Name != "Inbox" || folder.Total != 3 {
		t.Errorf("folder = %+v", folder)
	}
}

func TestClientGetMessage(t *testing.T) {
	s := newAuthServer(t)
	c := newTestClient(t, s, "good", "")

	msg, err := c.GetMessage(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if msg.Subject != "hi" || msg.From != "a@b.example" || msg.Body != "hello" {
		t.Errorf("message = %+v", msg)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].ID != "a1" || msg.Attachments[0].Data != nil {
		t.Errorf("attachments = %+v", msg.Attachments)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "token.json")
	want := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}
	if err := SaveToken(path, want); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	got, err := ReadToken(path)
	if err != nil {
		t.Fatalf("ReadToken: %v", err)
	}
	b1, _ := json.Marshal(want)
	b2, _ := json.Marshal(got)
	if string(b1) != string(b2) {
		t.Errorf("round trip mismatch: %s vs %s", b1, b2)
	}
}
