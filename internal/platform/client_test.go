package platform

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"pimphoto/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func htmlResponse(req *http.Request, body string) *http.Response {
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
		Request:    req,
	}
}

func testClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	cfg, _ := config.Load()
	cfg.MedipimBaseURL = "https://platform.test/en/"
	cfg.MedipimEmail = "user@example.com"
	cfg.MedipimPassword = "secret"
	c := NewClient(cfg)
	c.http.SetTransport(rt)
	return c
}

func TestLoginCarriesCSRFToken(t *testing.T) {
	var postedToken string
	c := testClient(t, func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodGet {
			return htmlResponse(req, `<form><input name="_csrf_token" value="tok-123"></form>`), nil
		}
		body, _ := io.ReadAll(req.Body)
		values, _ := url.ParseQuery(string(body))
		postedToken = values.Get("_csrf_token")
		homeReq := req.Clone(req.Context())
		homeReq.URL, _ = url.Parse("https://platform.test/en/home")
		return htmlResponse(homeReq, `<html>dashboard</html>`), nil
	})

	if err := c.Login(context.Background()); err != nil {
		t.Fatal(err)
	}
	if postedToken != "tok-123" {
		t.Fatalf("csrf token not carried: %q", postedToken)
	}
	if !c.loggedIn {
		t.Fatal("client should be logged in")
	}
}

func TestLoginRejected(t *testing.T) {
	c := testClient(t, func(req *http.Request) (*http.Response, error) {
		return htmlResponse(req, `<form><input name="_username"></form>`), nil
	})
	if err := c.Login(context.Background()); err == nil {
		t.Fatal("expected login rejection")
	}
}

func TestSearchProduct(t *testing.T) {
	c := testClient(t, func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "login") || req.Method == http.MethodPost {
			homeReq := req.Clone(req.Context())
			homeReq.URL, _ = url.Parse("https://platform.test/en/home")
			return htmlResponse(homeReq, `<html>dashboard</html>`), nil
		}
		page := `
<a href="/en/product?id=999">Other 111</a>
<a href="/en/product?id=42">Dafalgan 4811337</a>`
		return htmlResponse(req, page), nil
	})

	got, err := c.SearchProduct(context.Background(), "4811337")
	if err != nil {
		t.Fatal(err)
	}
	want := "https://platform.test/en/product?id=42"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestImageURLPrefersHuge(t *testing.T) {
	c := testClient(t, func(req *http.Request) (*http.Response, error) {
		switch {
		case req.Method == http.MethodPost || strings.Contains(req.URL.Path, "login"):
			homeReq := req.Clone(req.Context())
			homeReq.URL, _ = url.Parse("https://platform.test/en/home")
			return htmlResponse(homeReq, `<html>dashboard</html>`), nil
		case strings.Contains(req.URL.RawQuery, "id=42"):
			return htmlResponse(req, `<a href="/en/product/42/media">Media</a>`), nil
		default:
			page := `
<a href="https://assets.medipim.be/media/large/beef00.jpeg">large</a>
<a href="https://assets.medipim.be/media/huge/abc123.jpeg">huge</a>`
			return htmlResponse(req, page), nil
		}
	})

	got, err := c.ImageURL(context.Background(), "https://platform.test/en/product?id=42")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://assets.medipim.be/media/huge/abc123.jpeg" {
		t.Fatalf("got %q", got)
	}
}
