package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		c, err := New()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.UserAgent() != DefaultUserAgent {
			t.Errorf("UserAgent() = %q, want %q", c.UserAgent(), DefaultUserAgent)
		}
		if c.ProxyAddress() != "" {
			t.Errorf("ProxyAddress() = %q, want empty", c.ProxyAddress())
		}
	})

	t.Run("valid proxy address", func(t *testing.T) {
		t.Parallel()

		c, err := New(WithProxy("127.0.0.1:9050"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q", c.ProxyAddress())
		}
	})

	invalid := []string{"127.0.0.1", ":9050", "127.0.0.1:", "127.0.0.1:abc", "127.0.0.1:0", "127.0.0.1:70000"}
	for _, addr := range invalid {
		t.Run("invalid proxy "+addr, func(t *testing.T) {
			t.Parallel()

			_, err := New(WithProxy(addr))
			if !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
			}
		})
	}
}

func TestClientFetch(t *testing.T) {
	t.Parallel()

	t.Run("sends headers and returns body", func(t *testing.T) {
		t.Parallel()

		var gotUA, gotAccept, gotLang, gotCookie, gotCustom string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotAccept = r.Header.Get("Accept")
			gotLang = r.Header.Get("Accept-Language")
			gotCookie = r.Header.Get("Cookie")
			gotCustom = r.Header.Get("X-Test")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html>ok</html>"))
		}))
		defer server.Close()

		c, err := New(
			WithUserAgent("testbot/1.0"),
			WithCookie("session=abc"),
			WithHeaders(map[string]string{"X-Test": "yes"}),
		)
		if err != nil {
			t.Fatal(err)
		}

		resp, err := c.Fetch(context.Background(), server.URL+"/page")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(resp.Body) != "<html>ok</html>" {
			t.Errorf("Body = %q", resp.Body)
		}
		if !strings.HasPrefix(resp.ContentType, "text/html") {
			t.Errorf("ContentType = %q", resp.ContentType)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d", resp.StatusCode)
		}
		if gotUA != "testbot/1.0" {
			t.Errorf("User-Agent = %q", gotUA)
		}
		if !strings.Contains(gotAccept, "text/html") {
			t.Errorf("Accept = %q", gotAccept)
		}
		if gotLang == "" {
			t.Error("Accept-Language not sent")
		}
		if gotCookie != "session=abc" {
			t.Errorf("Cookie = %q", gotCookie)
		}
		if gotCustom != "yes" {
			t.Errorf("X-Test = %q", gotCustom)
		}
	})

	t.Run("non-2xx returns StatusError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer server.Close()

		c, err := New()
		if err != nil {
			t.Fatal(err)
		}
		_, err = c.Fetch(context.Background(), server.URL+"/missing")

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected *StatusError, got %v", err)
		}
		if statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
		}
		if !statusErr.IsClientError() {
			t.Error("404 should be a client error")
		}
	})

	t.Run("body over limit", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 100)))
		}))
		defer server.Close()

		c, err := New(WithMaxBodySize(10))
		if err != nil {
			t.Fatal(err)
		}
		_, err = c.Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("expected ErrBodyTooLarge, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		c, err := New(WithTimeout(50 * time.Millisecond))
		if err != nil {
			t.Fatal(err)
		}
		_, err = c.Fetch(context.Background(), server.URL)
		if err == nil {
			t.Fatal("expected timeout error")
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			t.Error("timeout must not be reported as a status error")
		}
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		t.Parallel()

		c, err := New()
		if err != nil {
			t.Fatal(err)
		}
		_, err = c.Fetch(context.Background(), "ftp://example.com/file")
		if !errors.Is(err, ErrUnsupportedScheme) {
			t.Errorf("expected ErrUnsupportedScheme, got %v", err)
		}
	})
}

func TestClientRedirects(t *testing.T) {
	t.Parallel()

	t.Run("follows redirects on the same host", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("moved here"))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		c, err := New()
		if err != nil {
			t.Fatal(err)
		}
		resp, err := c.Fetch(context.Background(), server.URL+"/old")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if resp.URL != server.URL+"/new" {
			t.Errorf("URL = %q, want the redirect target", resp.URL)
		}
		if string(resp.Body) != "moved here" {
			t.Errorf("Body = %q", resp.Body)
		}
	})

	t.Run("refuses redirects to another host", func(t *testing.T) {
		t.Parallel()

		var foreignHits atomic.Int32
		foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			foreignHits.Add(1)
			_, _ = w.Write([]byte("elsewhere"))
		}))
		defer foreign.Close()

		origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, foreign.URL+"/landing", http.StatusFound)
		}))
		defer origin.Close()

		c, err := New(WithCookie("session=secret"), WithHeaders(map[string]string{"Authorization": "Bearer x"}))
		if err != nil {
			t.Fatal(err)
		}
		_, err = c.Fetch(context.Background(), origin.URL+"/go")
		if !errors.Is(err, ErrOffHostRedirect) {
			t.Fatalf("expected ErrOffHostRedirect, got %v", err)
		}
		if n := foreignHits.Load(); n != 0 {
			t.Errorf("foreign host received %d requests, want 0", n)
		}
	})

	t.Run("without redirects returns RedirectError", func(t *testing.T) {
		t.Parallel()

		var targetHits atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/b?x=1", http.StatusFound)
		})
		mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) {
			targetHits.Add(1)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		c, err := New(WithoutRedirects())
		if err != nil {
			t.Fatal(err)
		}
		_, err = c.Fetch(context.Background(), server.URL+"/a")

		var redirectErr *RedirectError
		if !errors.As(err, &redirectErr) {
			t.Fatalf("expected *RedirectError, got %v", err)
		}
		if redirectErr.Location != server.URL+"/b?x=1" {
			t.Errorf("Location = %q, want an absolute URL", redirectErr.Location)
		}
		if redirectErr.StatusCode != http.StatusFound {
			t.Errorf("StatusCode = %d, want 302", redirectErr.StatusCode)
		}
		if n := targetHits.Load(); n != 0 {
			t.Errorf("redirect target fetched %d times, want 0", n)
		}
	})
}

func TestClientCheckReachable(t *testing.T) {
	t.Parallel()

	t.Run("listening server", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c, err := New()
		if err != nil {
			t.Fatal(err)
		}
		if err := c.CheckReachable(context.Background(), server.URL); err != nil {
			t.Errorf("CheckReachable() error = %v", err)
		}
	})

	t.Run("closed port", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addr := ln.Addr().String()
		ln.Close()

		c, err := New()
		if err != nil {
			t.Fatal(err)
		}
		err = c.CheckReachable(context.Background(), "http://"+addr+"/")
		if !errors.Is(err, ErrHostUnreachable) {
			t.Errorf("expected ErrHostUnreachable, got %v", err)
		}
	})
}
