// Package jsonrpc implements the session-oriented JSON-RPC client for
// CCU-style backends: login, time-boxed renewal, scripted procedure
// execution and logout.
package jsonrpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/tonigrzb/hahomematic/types"
)

const (
	// sessionMaxAge is the freshness window of a session id. A session
	// refreshed within this window is reused without a renew call.
	sessionMaxAge = 90 * time.Second

	// rpcPath is the fixed path of the JSON-RPC endpoint.
	rpcPath = "/api/homematic.cgi"

	// requestTimeout bounds a single HTTP round trip.
	requestTimeout = 60 * time.Second

	protocolVersion = "1.1"

	sessionParam = "_session_id_"

	// accessDeniedPrefix marks application errors that are terminal for
	// the session.
	accessDeniedPrefix = "access denied"
)

// Config parameterizes a JSON-RPC client.
type Config struct {
	// DeviceURL is the base URL of the backend, e.g. "http://ccu:80".
	DeviceURL string

	// Username and Password authenticate the session. Login fails
	// locally when they are empty.
	Username string
	Password string

	// TLS enables certificate verification control for https endpoints.
	TLS       bool
	VerifyTLS bool

	// Logger is the logger to use. Required.
	Logger hclog.Logger
}

type envelope struct {
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
}

type rpcError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Response is a decoded JSON-RPC response envelope.
type Response struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Client owns an authenticated session to the JSON-RPC backend. At most one
// session is live at a time; every outbound call embeds its id.
type Client struct {
	url      string
	username string
	password string
	logger   hclog.Logger
	http     *http.Client

	mu          sync.Mutex
	sessionID   string
	lastRefresh time.Time

	renew singleflight.Group

	scriptsMu sync.Mutex
	scripts   map[string]string

	now func() time.Time
}

// New creates a JSON-RPC client. No network call is made until the first
// request.
func New(config Config) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = requestTimeout
	if config.TLS {
		transport := cleanhttp.DefaultPooledTransport()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !config.VerifyTLS}
		httpClient.Transport = transport
	}

	return &Client{
		url:      config.DeviceURL + rpcPath,
		username: config.Username,
		password: config.Password,
		logger:   config.Logger.Named("jsonrpc"),
		http:     httpClient,
		scripts:  map[string]string{},
		now:      time.Now,
	}
}

// IsActivated reports whether a session exists. A present session id means
// the session has been activated.
func (c *Client) IsActivated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID != ""
}

func (c *Client) hasCredentials() bool {
	return c.username != "" && c.password != ""
}

func (c *Client) clearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
}

func (c *Client) session() (string, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.lastRefresh
}

func (c *Client) storeSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
	c.lastRefresh = c.now()
}

// loginOrRenew makes sure a usable session exists. A session refreshed
// within the freshness window is reused without a network call; an older
// one is renewed, and a rejected renewal falls back to a fresh login. At
// most one renewal is in flight per client.
func (c *Client) loginOrRenew(ctx context.Context) (string, error) {
	id, err, _ := c.renew.Do("session", func() (any, error) {
		sessionID, refreshed := c.session()
		if sessionID == "" {
			return c.login(ctx)
		}
		if c.now().Sub(refreshed) < sessionMaxAge {
			return sessionID, nil
		}
		return c.renewSession(ctx, sessionID)
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

// login performs Session.login and stores the returned session id. Without
// credentials it fails locally, no network call is made.
func (c *Client) login(ctx context.Context) (string, error) {
	if !c.hasCredentials() {
		c.logger.Warn("login failed: no credentials set")
		return "", fmt.Errorf("%w: no credentials set", types.ErrNoSession)
	}

	resp, err := c.post(ctx, "", "Session.login", map[string]any{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return "", err
	}

	var sessionID string
	if err := json.Unmarshal(resp.Result, &sessionID); err != nil || sessionID == "" {
		return "", fmt.Errorf("%w: login returned no session id", types.ErrNoSession)
	}
	c.storeSession(sessionID)
	c.logger.Debug("session established")
	return sessionID, nil
}

// renewSession issues Session.renew for the given id. A rejected renewal
// falls back to login.
func (c *Client) renewSession(ctx context.Context, sessionID string) (string, error) {
	resp, err := c.post(ctx, sessionID, "Session.renew", map[string]any{
		sessionParam: sessionID,
	})
	if err == nil {
		var renewed bool
		if err := json.Unmarshal(resp.Result, &renewed); err == nil && renewed {
			c.storeSession(sessionID)
			c.logger.Debug("session renewed")
			return sessionID, nil
		}
	}

	c.clearSession()
	return c.login(ctx)
}

// Post executes a JSON-RPC method with a valid session.
func (c *Client) Post(ctx context.Context, method string, params map[string]any) (*Response, error) {
	sessionID, err := c.loginOrRenew(ctx)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, sessionID, method, params)
}

// post performs one JSON-RPC round trip. The session id is embedded in the
// request parameters for every call except login.
func (c *Client) post(ctx context.Context, sessionID, method string, params map[string]any) (*Response, error) {
	merged := map[string]any{}
	if method != "Session.login" {
		merged[sessionParam] = sessionID
	}
	for k, v := range params {
		merged[k] = v
	}

	payload, err := json.Marshal(envelope{
		Method:  method,
		Params:  merged,
		JSONRPC: protocolVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", types.ErrClient, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", types.ErrClient, method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Length", strconv.Itoa(len(payload)))

	httpResp, err := c.http.Do(req)
	if err != nil {
		c.clearSession()
		return nil, fmt.Errorf("%w: %s: %s", types.ErrClient, method, reduce(err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.clearSession()
		return nil, fmt.Errorf("%w: %s: %s", types.ErrClient, method, reduce(err))
	}

	resp, err := decodeResponse(body)
	if err != nil {
		c.clearSession()
		return nil, fmt.Errorf("%w: %s: %s", types.ErrClient, method, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		c.clearSession()
		message := fmt.Sprintf("status %d", httpResp.StatusCode)
		if resp.Error != nil {
			message = fmt.Sprintf("%s: %s", message, resp.Error.Message)
		}
		return nil, fmt.Errorf("%w: %s: %s", types.ErrClient, method, message)
	}

	if resp.Error != nil {
		c.logger.Debug("method failed", "method", method, "message", resp.Error.Message)
		if strings.HasPrefix(resp.Error.Message, accessDeniedPrefix) {
			if method == "Session.logout" {
				c.clearSession()
			} else {
				c.Logout(ctx)
			}
			return nil, fmt.Errorf("%w: %s: %s", types.ErrAuthFailure, method, resp.Error.Message)
		}
		c.clearSession()
		return nil, fmt.Errorf("%w: %s: %s", types.ErrClient, method, resp.Error.Message)
	}

	return resp, nil
}

// decodeResponse parses a response body. Some controller firmwares emit
// malformed JSON with stray escape characters; those bodies are repaired by
// stripping the escapes and re-parsing before giving up.
func decodeResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err == nil {
		return &resp, nil
	}

	repaired := bytes.ReplaceAll(body, []byte(`\`), nil)
	if err := json.Unmarshal(repaired, &resp); err != nil {
		return nil, fmt.Errorf("unable to parse response: %s", err)
	}
	return &resp, nil
}

// Logout ends the session on the backend. Failures are logged, not
// propagated; local session state is always cleared.
func (c *Client) Logout(ctx context.Context) {
	sessionID, _ := c.session()
	if sessionID == "" {
		c.logger.Debug("not logged in, not logging out")
		return
	}
	defer c.clearSession()

	if _, err := c.post(ctx, sessionID, "Session.logout", map[string]any{
		sessionParam: sessionID,
	}); err != nil {
		c.logger.Debug("logout failed", "error", err)
	}
}

// reduce trims an error down to its innermost cause for logging.
func reduce(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}
