package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := ParseBaseURL("")
	if err != nil {
		t.Fatalf("ParseBaseURL returned error: %v", err)
	}
	if u.String() != defaultBase {
		t.Fatalf("ParseBaseURL(\"\") = %q, want %q", u.String(), defaultBase)
	}

	u, err = ParseBaseURL("example.com:1234/api/?x=1#frag")
	if err != nil {
		t.Fatalf("ParseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" || u.Host != "example.com:1234" || u.Path != "/api" {
		t.Fatalf("ParseBaseURL = %q, want http://example.com:1234/api", u.String())
	}
	if u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}

	if _, err := ParseBaseURL("http:///nohost"); err == nil {
		t.Fatalf("ParseBaseURL without host returned nil error")
	}
}

func TestClient_Resolve(t *testing.T) {
	c, err := NewClient("http://h:1/api/")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	cases := []struct {
		path  string
		query url.Values
		want  string
	}{
		{"/data/", nil, "http://h:1/api/data/"},
		{"data/7/", nil, "http://h:1/api/data/7/"},
		{"/data/", url.Values{"search": {"foo bar"}}, "http://h:1/api/data/?search=foo+bar"},
		{"https://other/x", nil, "https://other/x"},
		{"http://other/x?a=1", url.Values{"b": {"2"}}, "http://other/x?a=1&b=2"},
	}
	for _, tc := range cases {
		if got := c.Resolve(tc.path, tc.query); got != tc.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestClient_DoSendsJSONAndParsesBodies(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath, gotCT, gotAccept, gotUA string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/api/data/":
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &gotBody)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 3, "text": "hi"}`))
		case "/api/plain/":
			_, _ = w.Write([]byte("pong"))
		case "/api/empty/":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL + "/api")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	var dest struct {
		ID   int64  `json:"id"`
		Text string `json:"text"`
	}
	parsed, err := c.Post(ctx, "/data/", nil, map[string]string{"text": "hi"}, &dest)
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/data/" {
		t.Fatalf("request = %s %s, want POST /api/data/", gotMethod, gotPath)
	}
	if gotCT != "application/json" || gotAccept != "application/json" {
		t.Fatalf("headers Content-Type=%q Accept=%q, want application/json", gotCT, gotAccept)
	}
	if !strings.HasPrefix(gotUA, "periscope/") {
		t.Fatalf("User-Agent = %q, want periscope/*", gotUA)
	}
	if gotBody["text"] != "hi" {
		t.Fatalf("body = %v, want text=hi", gotBody)
	}
	if dest.ID != 3 || dest.Text != "hi" {
		t.Fatalf("dest = %+v, want id=3 text=hi", dest)
	}
	if m, ok := parsed.(map[string]any); !ok || m["text"] != "hi" {
		t.Fatalf("parsed = %#v, want decoded map", parsed)
	}

	parsed, err = c.Get(ctx, "/plain/", nil, nil)
	if err != nil {
		t.Fatalf("Get plain returned error: %v", err)
	}
	if parsed != "pong" {
		t.Fatalf("parsed = %#v, want raw text pong", parsed)
	}
	if gotCT != "" {
		t.Fatalf("Content-Type = %q on bodyless request, want empty", gotCT)
	}

	parsed, err = c.Delete(ctx, "/empty/")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if parsed != nil {
		t.Fatalf("parsed = %#v, want nil for empty body", parsed)
	}
}

func TestClient_StatusErrorCarriesStatusAndBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/missing/":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail": "Not found."}`))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL + "/api")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = c.Get(context.Background(), "/missing/", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Status != http.StatusNotFound || se.Detail() != "Not found." {
		t.Fatalf("StatusError = %+v detail %q, want 404 Not found.", se, se.Detail())
	}
	if StatusCode(err) != http.StatusNotFound {
		t.Fatalf("StatusCode = %d, want 404", StatusCode(err))
	}

	_, err = c.Get(context.Background(), "/other/", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "returned status 500: boom") {
		t.Fatalf("error = %v, want status 500 with text body", err)
	}
}

func TestClient_DecodeError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not-json"))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	var dest map[string]any
	_, err = c.Get(context.Background(), "/x/", nil, &dest)
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("error = %v, want decode response error", err)
	}
}

func TestClient_TimeoutIsDistinct(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	c, err := NewClient(server.URL, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = c.Get(context.Background(), "/slow/", nil, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if _, err := c.Do(context.Background(), Request{Path: "/"}, nil); err == nil {
		t.Fatalf("Do on nil client returned nil error")
	}
}
