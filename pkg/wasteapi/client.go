// Package wasteapi is the HTTP client for the waste transport backend.
// All backend requests should go through Client.
package wasteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 4096

// Options configures a Client.
type Options struct {
	BaseURL   string
	SessionID string
	CSRFToken string
	Timeout   time.Duration
	Logger    *logrus.Logger
	// HTTPClient overrides the transport; its Jar is replaced.
	HTTPClient *http.Client
}

// Client talks to one backend. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	csrfToken  string
	log        *logrus.Entry
}

// NewClient creates a client for opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	var seed []*http.Cookie
	if opts.SessionID != "" {
		seed = append(seed, &http.Cookie{Name: SessionCookieName, Value: opts.SessionID, Path: "/"})
	}
	if opts.CSRFToken != "" {
		seed = append(seed, &http.Cookie{Name: CSRFCookieName, Value: opts.CSRFToken, Path: "/"})
	}
	if len(seed) > 0 {
		jar.SetCookies(base, seed)
	}

	hc := &http.Client{Timeout: 30 * time.Second}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		hc = &copied
	}
	if opts.Timeout > 0 {
		hc.Timeout = opts.Timeout
	}
	hc.Jar = jar

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Client{
		base:       base,
		httpClient: hc,
		csrfToken:  opts.CSRFToken,
		log:        logger.WithField("component", "wasteapi"),
	}, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	// path is already escaped (DetailPath escapes ids containing "/").
	raw := strings.TrimRight(c.base.EscapedPath(), "/") + path
	if p, err := url.PathUnescape(raw); err == nil {
		u.Path, u.RawPath = p, raw
	} else {
		u.Path, u.RawPath = raw, ""
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	} else {
		u.RawQuery = ""
	}
	return u.String()
}

// CSRFToken returns the anti-forgery token, priming the cookie jar with a
// GET of the list page when no token is known yet.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	if tok := c.cookieToken(); tok != "" {
		return tok, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(ListPath, nil), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch csrf cookie: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if tok := c.cookieToken(); tok != "" {
		return tok, nil
	}
	return "", ErrNoCSRFToken
}

func (c *Client) cookieToken() string {
	for _, ck := range c.httpClient.Jar.Cookies(c.base) {
		if ck.Name == CSRFCookieName && ck.Value != "" {
			return ck.Value
		}
	}
	return c.csrfToken
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	accept      string
	mutating    bool
	xhr         bool
}

func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path, r.query), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	if r.accept != "" {
		req.Header.Set("Accept", r.accept)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.xhr {
		req.Header.Set(RequestedWithHeader, "XMLHttpRequest")
	}
	if r.mutating {
		tok, err := c.CSRFToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set(CSRFHeader, tok)
		// Django checks the referer on HTTPS.
		req.Header.Set("Referer", c.endpoint(ListPath, nil))
	}

	fields := logrus.Fields{"method": r.method, "path": r.path, "request_id": reqID}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	fields["duration"] = time.Since(start).Round(time.Millisecond)
	if err != nil {
		c.log.WithContext(ctx).WithFields(fields).WithError(err).Warn("request failed")
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	fields["status"] = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		se := &StatusError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode, Status: resp.Status}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			se.Message = payload.Error
		}
		c.log.WithContext(ctx).WithFields(fields).Warn("request rejected")
		return nil, se
	}
	c.log.WithContext(ctx).WithFields(fields).Debug("request complete")
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	r.accept = "application/json"
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.path, err)
	}
	return nil
}

// Upload is a file ready to post to the import endpoint.
type Upload struct {
	FileName string
	Content  []byte
	Type     ManifestType
}

// Import uploads a CSV. Conflicts and server-side failures are reported in
// the response, not as an error.
func (c *Client) Import(ctx context.Context, up Upload) (*ImportResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("csv_file", up.FileName)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(up.Content); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	importType := up.Type
	if importType == "" {
		importType = Disposal
	}
	if err := mw.WriteField("import_type", string(importType)); err != nil {
		return nil, err
	}
	if err := mw.WriteField("conflict_resolution", string(Ask)); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var out ImportResponse
	err = c.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        ImportPath,
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
		mutating:    true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveConflicts resumes an import session with one resolution.
func (c *Client) ResolveConflicts(ctx context.Context, session ImportSession, res Resolution, applyToAll bool) (*ImportResponse, error) {
	payload := session.Clone()
	var err error
	if payload["conflict_resolution"], err = json.Marshal(res); err != nil {
		return nil, err
	}
	if payload["apply_to_all"], err = json.Marshal(applyToAll); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode resolution: %w", err)
	}

	var out ImportResponse
	err = c.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        ResolveConflictsPath,
		body:        body,
		contentType: "application/json",
		mutating:    true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelImport aborts the whole import server-side.
func (c *Client) CancelImport(ctx context.Context, session ImportSession) (*ImportResponse, error) {
	return c.ResolveConflicts(ctx, session, Cancel, true)
}

// DeleteManifests soft-deletes keys in one request.
func (c *Client) DeleteManifests(ctx context.Context, keys []ManifestKey) (int, error) {
	wire := make([]deleteKey, 0, len(keys))
	for _, k := range keys {
		wire = append(wire, deleteKey(k))
	}
	body, err := json.Marshal(map[string]any{"manifests": wire})
	if err != nil {
		return 0, err
	}

	var out DeleteResponse
	err = c.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        DeleteManifestsPath,
		body:        body,
		contentType: "application/json",
		mutating:    true,
	}, &out)
	if err != nil {
		return 0, err
	}
	if !out.Success {
		return 0, &AppError{Op: "delete manifests", Message: out.Error}
	}
	return out.DeletedCount, nil
}

// AllManifestIDs returns every manifest key matching f.
func (c *Client) AllManifestIDs(ctx context.Context, f Filters) ([]ManifestKey, error) {
	var out manifestIDsResponse
	err := c.doJSON(ctx, request{
		method: http.MethodGet,
		path:   AllManifestIDsPath,
		query:  f.Values(),
	}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &AppError{Op: "list manifests", Message: out.Error}
	}
	return out.Manifests, nil
}

// ManifestDetail returns the rendered HTML fragment for one manifest.
func (c *Client) ManifestDetail(ctx context.Context, key ManifestKey) (string, error) {
	var out detailResponse
	err := c.doJSON(ctx, request{
		method: http.MethodGet,
		path:   DetailPath(key),
		xhr:    true,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.HTML, nil
}

// Autocomplete returns suggestions for query on field.
func (c *Client) Autocomplete(ctx context.Context, field Field, query string) ([]Suggestion, error) {
	var out autocompleteResponse
	err := c.doJSON(ctx, request{
		method: http.MethodGet,
		path:   AutocompletePath(field),
		query:  url.Values{"q": []string{query}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Results, nil
}

// ExportURL is the browser-navigable export link for f.
func (c *Client) ExportURL(f Filters) string {
	return c.endpoint(ExportPath, f.Values())
}

// Export streams the filtered CSV into w and returns the bytes written.
func (c *Client) Export(ctx context.Context, f Filters, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   ExportPath,
		query:  f.Values(),
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download export: %w", err)
	}
	return n, nil
}
