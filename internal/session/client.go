// Package session is the single path between the client and the reZume
// backend. It owns the session state and decides what every response means
// for it.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nzsystems/rezume/internal/apierr"
	"github.com/nzsystems/rezume/internal/logger"
	"github.com/nzsystems/rezume/internal/profile"
	"github.com/nzsystems/rezume/internal/utils"
)

const (
	DefaultAPIURL   = "http://localhost:8000"
	DefaultTimeout  = 60 * time.Second
	userAgent       = "nzsystems/rezume-cli"
	contentTypeJSON = "application/json"
	bodyLogLimit    = 300
)

// Alert is a global state flip that must block the user until resolved.
type Alert int

const (
	AlertSessionExpired Alert = iota + 1
	AlertServerDown
)

func (a Alert) String() string {
	switch a {
	case AlertSessionExpired:
		return "session-expired"
	case AlertServerDown:
		return "server-down"
	default:
		return "unknown"
	}
}

// AlertHandler is called once per flip, outside of any lock. It may block.
type AlertHandler func(Alert)

// Store persists what outlives a single run: the session cookies and the theme.
type Store interface {
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie) error
	SetTheme(theme string) error
}

// Status is a snapshot of the session.
type Status struct {
	Authenticated bool
	Expired       bool
	ServerDown    bool
	User          *profile.User
}

type Option func(*Client)

func WithStore(store Store) Option {
	return func(c *Client) { c.store = store }
}

func WithAlertHandler(h AlertHandler) Option {
	return func(c *Client) { c.onAlert = h }
}

// WithTeardown registers fn to run after a logout has cleared the session.
func WithTeardown(fn func()) Option {
	return func(c *Client) { c.onTeardown = fn }
}

func WithInterceptor(ic Interceptor) Option {
	return func(c *Client) { c.interceptors = append(c.interceptors, ic) }
}

// WithTimeout bounds every request. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

func WithCache(cache *profile.Cache) Option {
	return func(c *Client) { c.cache = cache }
}

type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string

	base         *url.URL
	jar          *cookieJar
	logger       *zap.Logger
	cache        *profile.Cache
	profiles     *profile.Service
	store        Store
	interceptors []Interceptor
	onAlert      AlertHandler
	onTeardown   func()

	mu            sync.Mutex
	authenticated bool
	expired       bool
	serverDown    bool
}

// New builds a client for apiURL, falling back to DefaultAPIURL when it is
// empty. Cookies saved in the store are loaded into the jar.
func New(apiURL string, log *zap.Logger, opts ...Option) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}

	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	base, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", apiURL)
	}

	jar := newCookieJar()
	c := &Client{
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		UserAgent: userAgent,
		APIURL:    apiURL,
		base:      base,
		jar:       jar,
		logger:    log,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.cache == nil {
		c.cache = profile.NewCache()
	}
	c.profiles = profile.NewService(c, c.cache, log)

	if c.store != nil {
		jar.SetCookies(base, c.store.Cookies())
	}

	return c, nil
}

func (c *Client) Cache() *profile.Cache {
	return c.cache
}

func (c *Client) Profile() *profile.Service {
	return c.profiles
}

// Response is an HTTP response together with its classification.
type Response struct {
	*http.Response
	Class  Class
	Method string
	Path   string
}

// Err turns a read response body into the error the caller should see, or nil
// for a 2xx answer.
func (r *Response) Err(body []byte) error {
	switch r.Class {
	case ClassAnonymous:
		return fmt.Errorf("%s %s: %w", r.Method, r.Path, apierr.ErrUnauthenticated)
	case ClassSessionExpired:
		return fmt.Errorf("%s %s: %w", r.Method, r.Path, apierr.ErrSessionExpired)
	case ClassServerDown:
		return fmt.Errorf("%s %s: status %d: %w", r.Method, r.Path, r.StatusCode, apierr.ErrServerDown)
	}

	if r.StatusCode >= 200 && r.StatusCode < 300 {
		return nil
	}

	return &apierr.RequestError{
		Method: r.Method,
		Path:   r.Path,
		Status: r.StatusCode,
		Detail: detail(body),
	}
}

// Do sends a request and updates the session state according to its
// classification. Transport failures are returned as errors matching
// apierr.ErrNetwork; any HTTP answer is returned as a Response whose body the
// caller must close.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	return c.do(ctx, method, path, body, contentType, true)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, flip bool) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.APIURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if err := c.intercept(req); err != nil {
		return nil, err
	}

	log := logger.WithFields(c.logger, logger.RequestFields(method, path)...)
	log.Debug("make request")

	resp, err := c.HTTPClient.Do(req)
	status := 0
	if err == nil {
		status = resp.StatusCode
	}

	class := Classify(method, path, status, err)
	if flip {
		c.apply(class)
	}

	if err != nil {
		log.Debug("request failed", zap.Stringer("class", class), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, apierr.ErrNetwork, err)
	}

	log.Debug("got response", zap.Int("status", status), zap.Stringer("class", class))

	// The backend may rotate the session cookie on any answer.
	if class == ClassOK && len(resp.Cookies()) > 0 {
		c.persistCookies()
	}

	return &Response{Response: resp, Class: class, Method: method, Path: path}, nil
}

func (c *Client) intercept(req *http.Request) error {
	steps := make([]Interceptor, 0, len(c.interceptors)+2)
	steps = append(steps, Identify(c.UserAgent))
	steps = append(steps, c.interceptors...)
	steps = append(steps, StripAuthorization())

	for _, step := range steps {
		if step.Before == nil {
			continue
		}
		if err := step.Before(req); err != nil {
			return fmt.Errorf("interceptor %s: %w", step.Name, err)
		}
	}

	return nil
}

// JSON sends in as a JSON body (when not nil) and decodes the answer into out
// (when not nil). When out has a ValidateResponse method it is run on the
// decoded value.
func (c *Client) JSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	var contentType string
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
		contentType = contentTypeJSON
	}

	resp, err := c.Do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}

	return c.decode(resp, out)
}

// Upload sends content as the single file of a multipart form.
func (c *Client) Upload(ctx context.Context, path, field, filename, contentType string, content io.Reader, out any) error {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	resp, err := c.Do(ctx, http.MethodPost, path, &b, w.FormDataContentType())
	if err != nil {
		return err
	}

	return c.decode(resp, out)
}

func (c *Client) decode(resp *Response, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w: %w", resp.Method, resp.Path, apierr.ErrNetwork, err)
	}

	if err := resp.Err(data); err != nil {
		c.logger.Debug("request rejected",
			zap.String("path", resp.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", utils.BodyPreview(data, bodyLogLimit)),
		)
		return err
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &apierr.MalformedResponseError{Path: resp.Path, Err: err}
	}

	if v, ok := out.(interface{ ValidateResponse() error }); ok {
		if err := v.ValidateResponse(); err != nil {
			return err
		}
	}

	return nil
}

// detail extracts the backend "detail" message. FastAPI sends either a string
// or a list of validation errors.
func detail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var msg string
	if err := json.Unmarshal(payload.Detail, &msg); err == nil {
		return msg
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &list); err == nil && len(list) > 0 {
		return list[0].Msg
	}

	return ""
}

func (c *Client) apply(class Class) {
	switch class {
	case ClassSessionExpired:
		c.markExpired()
	case ClassServerDown, ClassNetworkError:
		c.markServerDown()
	}
}

// markExpired ends an established session. Only the first 401 after login
// raises the alert.
func (c *Client) markExpired() {
	c.mu.Lock()
	if !c.authenticated || c.expired {
		c.mu.Unlock()
		return
	}
	c.expired = true
	c.authenticated = false
	c.mu.Unlock()

	c.cache.Clear()
	c.logger.Warn("session expired")
	c.alert(AlertSessionExpired)
}

func (c *Client) markServerDown() {
	c.mu.Lock()
	if c.serverDown {
		c.mu.Unlock()
		return
	}
	c.serverDown = true
	c.mu.Unlock()

	c.logger.Warn("server is unavailable")
	c.alert(AlertServerDown)
}

func (c *Client) alert(a Alert) {
	if c.onAlert != nil {
		c.onAlert(a)
	}
}

// ClearAlerts resets both global flags so the next failure alerts again.
func (c *Client) ClearAlerts() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expired = false
	c.serverDown = false
}

func (c *Client) Status() Status {
	c.mu.Lock()
	st := Status{
		Authenticated: c.authenticated,
		Expired:       c.expired,
		ServerDown:    c.serverDown,
	}
	c.mu.Unlock()

	if st.Authenticated {
		st.User = c.cache.User()
	}
	return st
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

func (cr credentials) validate() error {
	if strings.TrimSpace(cr.Email) == "" {
		return apierr.Required("email")
	}
	if cr.Password == "" {
		return apierr.Required("password")
	}
	return nil
}

// Login opens a session. Rejected credentials are reported as
// apierr.ErrInvalidCredentials and never flip the global state. On success
// both alerts are cleared and the profile with its collections is loaded.
func (c *Client) Login(ctx context.Context, email, password string) error {
	cr := credentials{Email: strings.TrimSpace(email), Password: password}
	if err := cr.validate(); err != nil {
		return err
	}

	err := c.JSON(ctx, http.MethodPost, LoginPath, cr, nil)
	var reqErr *apierr.RequestError
	if errors.As(err, &reqErr) && reqErr.Status == http.StatusUnauthorized {
		return fmt.Errorf("login: %w: %w", apierr.ErrInvalidCredentials, reqErr)
	}
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	c.ClearAlerts()

	ok, err := c.Refresh(ctx, true)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if !ok {
		return fmt.Errorf("login: %w", apierr.ErrUnauthenticated)
	}

	c.logger.Info("logged in", zap.String("email", cr.Email))
	return nil
}

// Register creates an account and logs into it.
func (c *Client) Register(ctx context.Context, email, password, fullName string) error {
	cr := credentials{
		Email:    strings.TrimSpace(email),
		Password: password,
		FullName: strings.TrimSpace(fullName),
	}
	if err := cr.validate(); err != nil {
		return err
	}

	if err := c.JSON(ctx, http.MethodPost, RegisterPath, cr, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	return c.Login(ctx, cr.Email, cr.Password)
}

// Logout always succeeds locally. The server is notified on a best-effort
// basis and its answer never changes the global state.
func (c *Client) Logout(ctx context.Context) {
	resp, err := c.do(ctx, http.MethodPost, LogoutPath, nil, "", false)
	if err != nil {
		c.logger.Debug("logout request failed", zap.Error(err))
	} else {
		resp.Body.Close()
	}

	c.teardown()
	c.logger.Info("logged out")

	if c.onTeardown != nil {
		c.onTeardown()
	}
}

// teardown drops the session, the cached profile and every cookie at once.
func (c *Client) teardown() {
	c.mu.Lock()
	c.authenticated = false
	c.expired = false
	c.serverDown = false
	c.cache.Clear()
	c.mu.Unlock()

	c.jar.Reset()
	if c.store != nil {
		if err := c.store.SetCookies(nil); err != nil {
			c.logger.Warn("failed to clear stored cookies", zap.Error(err))
		}
	}
}

// Refresh asks the identity endpoint who is logged in. A known user is stored
// in the cache, its theme is saved locally and, when withData is set, the four
// collections are reloaded in parallel. A 401 reports false without an error;
// any other failure reports it. Both clear the session.
//
// A logout that lands while the identity check or the lists are in flight
// wins: their answers are dropped and Refresh reports false.
func (c *Client) Refresh(ctx context.Context, withData bool) (bool, error) {
	epoch := c.cache.Epoch()

	var user profile.User
	if err := c.JSON(ctx, http.MethodGet, profile.MePath, nil, &user); err != nil {
		c.mu.Lock()
		if c.cache.Epoch() == epoch {
			c.authenticated = false
			c.cache.Clear()
		}
		c.mu.Unlock()

		if errors.Is(err, apierr.ErrUnauthenticated) {
			return false, nil
		}
		return false, fmt.Errorf("refresh: %w", err)
	}

	c.mu.Lock()
	if !c.cache.SetUserAt(epoch, &user) {
		c.mu.Unlock()
		c.logger.Debug("identity dropped, session ended during refresh")
		return false, nil
	}
	c.authenticated = true
	c.mu.Unlock()

	c.syncTheme(user.Theme)

	if withData {
		err := c.profiles.LoadCollectionsAt(ctx, epoch)
		if c.cache.Epoch() != epoch {
			return false, nil
		}
		if err != nil {
			return true, fmt.Errorf("refresh: %w", err)
		}
	}

	return true, nil
}

func (c *Client) syncTheme(theme string) {
	if theme == "" || c.store == nil {
		return
	}
	if err := c.store.SetTheme(theme); err != nil {
		c.logger.Warn("failed to store theme", zap.String("theme", theme), zap.Error(err))
	}
}

func (c *Client) persistCookies() {
	if c.store == nil {
		return
	}
	if err := c.store.SetCookies(c.jar.Cookies(c.base)); err != nil {
		c.logger.Warn("failed to store cookies", zap.Error(err))
	}
}

// Ping reports whether the backend answers at all. It never changes the
// session state.
func (c *Client) Ping(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, healthPath, nil, "", false)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}
