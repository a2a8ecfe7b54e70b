package s2

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_GetPaper_Success(t *testing.T) {
	var gotPath, gotFields string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFields = r.URL.Query().Get("fields")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paperId":"649def34f8be52c8b66281af98ae884c09aef38b","title":"Attention Is All You Need","authors":[{"name":"A. Vaswani"}]}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL+"/"), WithFields("paperId,title"))
	paper, err := client.GetPaper(context.Background(), "2020.acl-main.1")
	if err != nil {
		t.Fatalf("GetPaper failed: %v", err)
	}

	if !strings.HasSuffix(gotPath, "/ACL:2020.acl-main.1") {
		t.Errorf("expected ACL-prefixed path, got %q", gotPath)
	}
	if gotFields != "paperId,title" {
		t.Errorf("unexpected fields param: %q", gotFields)
	}
	if paper.PaperID != "649def34f8be52c8b66281af98ae884c09aef38b" {
		t.Errorf("unexpected paper id: %q", paper.PaperID)
	}
	if paper.Title != "Attention Is All You Need" {
		t.Errorf("unexpected title: %q", paper.Title)
	}
	if !strings.Contains(string(paper.Raw), "A. Vaswani") {
		t.Error("raw payload should preserve the full response body")
	}
}

func TestClient_GetPaper_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Paper with id ACL:X not found"}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL + "/"))
	_, err := client.GetPaper(context.Background(), "X")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should be true")
	}
	if !strings.Contains(err.Error(), "Paper with id ACL:X not found") {
		t.Errorf("error should carry the service message, got %q", err)
	}
}

func TestClient_GetPaper_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal"}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL + "/"))
	_, err := client.GetPaper(context.Background(), "X")
	if err == nil {
		t.Fatal("expected error for 500")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 500 || apiErr.Message != "internal" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
	if IsNotFound(err) {
		t.Error("500 should not classify as not found")
	}
}

func TestClient_GetPaper_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL + "/"))
	_, err := client.GetPaper(context.Background(), "X")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestClient_GetPaper_APIKeyHeader(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte(`{"paperId":"abc","title":"T"}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL+"/"), WithAPIKey("secret"))
	if _, err := client.GetPaper(context.Background(), "X"); err != nil {
		t.Fatalf("GetPaper failed: %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("expected api key header, got %q", gotKey)
	}
}

func TestClient_GetPaper_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"paperId":`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL + "/"))
	_, err := client.GetPaper(context.Background(), "X")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}
