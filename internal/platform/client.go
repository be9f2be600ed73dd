package platform

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"pimphoto/internal/config"
)

// Client is a cookie-based session against the PIM platform, used to
// manually resolve gaps from the missing report: search a product by
// refcode, walk to its media page and pull the best asset URL. The export
// workbook itself is produced upstream; this client never replaces that
// flow.
type Client struct {
	cfg      config.Config
	http     *resty.Client
	loggedIn bool
}

var (
	hugeAssetPattern  = regexp.MustCompile(`https://assets\.medipim\.be/media/huge/[a-f0-9]+\.jpeg`)
	largeAssetPattern = regexp.MustCompile(`https://assets\.medipim\.be/media/large/[a-f0-9]+\.jpeg`)
)

func NewClient(cfg config.Config) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.MedipimBaseURL, "/")).
		SetTimeout(time.Duration(cfg.MedipimTimeoutMs) * time.Millisecond).
		SetHeader("Accept", "text/html")
	return &Client{cfg: cfg, http: rc}
}

// Login fetches the login form, carries its CSRF token into the credential
// post and verifies the session landed on the home page.
func (c *Client) Login(ctx context.Context) error {
	if err := c.cfg.Require("MEDIPIM_EMAIL", c.cfg.MedipimEmail); err != nil {
		return err
	}
	if err := c.cfg.Require("MEDIPIM_PASSWORD", c.cfg.MedipimPassword); err != nil {
		return err
	}

	page, err := c.http.R().SetContext(ctx).Get("/login")
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.String()))
	if err != nil {
		return err
	}

	form := map[string]string{
		"_username": c.cfg.MedipimEmail,
		"_password": c.cfg.MedipimPassword,
	}
	if token, ok := doc.Find(`input[name="_csrf_token"]`).Attr("value"); ok {
		form["_csrf_token"] = token
	}

	resp, err := c.http.R().SetContext(ctx).SetFormData(form).Post("/login")
	if err != nil {
		return err
	}

	finalURL := ""
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}
	if strings.Contains(finalURL, "/home") || !strings.Contains(resp.String(), `name="_username"`) {
		c.loggedIn = true
		return nil
	}
	return fmt.Errorf("platform login rejected")
}

func (c *Client) ensureLogin(ctx context.Context) error {
	if c.loggedIn {
		return nil
	}
	return c.Login(ctx)
}

// SearchProduct looks a refcode up in the product search and returns the
// absolute URL of the product detail page, or "" when no result matches.
func (c *Client) SearchProduct(ctx context.Context, refcode string) (string, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return "", err
	}

	resp, err := c.http.R().SetContext(ctx).Get("/products?search=refcode[" + url.QueryEscape(refcode) + "]")
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return "", err
	}

	found := ""
	doc.Find(`a[href*="/product?id="]`).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if !strings.Contains(link.Text(), refcode) {
			return true
		}
		href, _ := link.Attr("href")
		found = c.absoluteURL(href)
		return false
	})
	return found, nil
}

// ImageURL walks a product detail page to its media section and returns the
// largest asset URL it can find, preferring the "huge" rendition.
func (c *Client) ImageURL(ctx context.Context, detailURL string) (string, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return "", err
	}

	detail, err := c.http.R().SetContext(ctx).Get(detailURL)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(detail.String()))
	if err != nil {
		return "", err
	}

	mediaHref := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if strings.Contains(strings.ToLower(href), "media") {
			mediaHref = href
			return false
		}
		return true
	})
	if mediaHref == "" {
		return "", nil
	}

	media, err := c.http.R().SetContext(ctx).Get(c.absoluteURL(mediaHref))
	if err != nil {
		return "", err
	}
	mediaDoc, err := goquery.NewDocumentFromReader(strings.NewReader(media.String()))
	if err != nil {
		return "", err
	}

	for _, fragment := range []string{"/media/huge/", "/media/large/"} {
		if href, ok := mediaDoc.Find(`a[href*="` + fragment + `"]`).First().Attr("href"); ok {
			return href, nil
		}
	}
	if m := hugeAssetPattern.FindString(media.String()); m != "" {
		return m, nil
	}
	if m := largeAssetPattern.FindString(media.String()); m != "" {
		return m, nil
	}
	return "", nil
}

// DownloadImage fetches the asset bytes over the authenticated session.
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.R().SetContext(ctx).Get(imageURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("image download: status=%d", resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("image download: empty body")
	}
	return body, nil
}

func (c *Client) absoluteURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	base, err := url.Parse(c.cfg.MedipimBaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
