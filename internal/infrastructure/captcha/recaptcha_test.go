package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

type captured struct {
	Method   string
	PostForm url.Values
}

func newSiteVerify(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got.Method = r.Method
		got.PostForm = r.PostForm
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestVerify_Success(t *testing.T) {
	srv, req := newSiteVerify(t, http.StatusOK, `{"success":true,"hostname":"localhost"}`)
	rc := NewRecaptcha("s3cret", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))

	ok, err := rc.Verify(context.Background(), "tok", "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected token to be accepted")
	}
	if req.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", req.Method)
	}
	if req.PostForm.Get("secret") != "s3cret" || req.PostForm.Get("response") != "tok" || req.PostForm.Get("remoteip") != "10.0.0.1" {
		t.Errorf("unexpected form %v", req.PostForm)
	}
}

func TestVerify_Rejected(t *testing.T) {
	srv, _ := newSiteVerify(t, http.StatusOK, `{"success":false,"error-codes":["invalid-input-response"]}`)
	rc := NewRecaptcha("s3cret", WithEndpoint(srv.URL))

	ok, err := rc.Verify(context.Background(), "bad", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected token to be rejected")
	}
}

func TestVerify_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"upstream error", http.StatusInternalServerError, `oops`},
		{"malformed body", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newSiteVerify(t, tt.status, tt.body)
			rc := NewRecaptcha("s3cret", WithEndpoint(srv.URL))

			if _, err := rc.Verify(context.Background(), "tok", ""); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
