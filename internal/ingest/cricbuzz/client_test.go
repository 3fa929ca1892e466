package cricbuzz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientFetchSendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	homepage := srv.URL + "/"
	client := NewClient(homepage)

	body, err := client.Fetch(context.Background(), homepage, time.Second)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(body, "ok") {
		t.Errorf("unexpected body %q", body)
	}
	if got.Get("User-Agent") != UserAgent {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Accept-Language") != AcceptLanguage {
		t.Errorf("Accept-Language = %q", got.Get("Accept-Language"))
	}
	if got.Get("Referer") != "https://www.google.com/" {
		t.Errorf("homepage Referer = %q", got.Get("Referer"))
	}

	if _, err := client.Fetch(context.Background(), srv.URL+"/live-cricket-scores/1/a-vs-b", time.Second); err != nil {
		t.Fatalf("Fetch() detail error = %v", err)
	}
	if got.Get("Referer") != homepage {
		t.Errorf("detail Referer = %q, want %q", got.Get("Referer"), homepage)
	}
}

func TestClientFetchErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Fetch(context.Background(), srv.URL, time.Second)
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected FetchError, got %v", err)
		}
		if fe.Kind != KindHTTPStatus || fe.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("got kind=%s status=%d", fe.Kind, fe.StatusCode)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Fetch(context.Background(), srv.URL, 50*time.Millisecond)
		if !IsTimeout(err) {
			t.Fatalf("expected timeout, got %v", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		addr := srv.URL
		srv.Close()

		_, err := NewClient(addr).Fetch(context.Background(), addr, time.Second)
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected FetchError, got %v", err)
		}
		if fe.Kind != KindConnection {
			t.Errorf("kind = %s, want %s", fe.Kind, KindConnection)
		}
	})
}

func TestClientFetchCapsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", MaxBodyBytes+1024)))
	}))
	defer srv.Close()

	body, err := NewClient(srv.URL).Fetch(context.Background(), srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(body) != MaxBodyBytes {
		t.Errorf("body length = %d, want %d", len(body), MaxBodyBytes)
	}
}
