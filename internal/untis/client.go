package untis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/untiswatch/untiswatch/internal/config"
	"github.com/untiswatch/untiswatch/internal/timetable"
)

// clientID identifies untiswatch to WebUntis in the authenticate call and
// the User-Agent header.
const clientID = "untiswatch/0.1.0"

// untisBadCredentials is the JSON-RPC error code WebUntis returns for a
// rejected user/password pair.
const untisBadCredentials = -8504

// Client fetches timetables from one WebUntis instance. It is stateless
// between calls: every FetchTimetable performs its own
// authenticate → fetch → logout round trip.
type Client struct {
	baseURL string
	school  string
	user    string
	pass    func() string
	policy  timetable.ComparePolicy

	http *http.Client
	now  func() time.Time // injectable for deterministic tests
}

// New builds a Client from the upstream configuration. The host is resolved
// into a URL here so an unusable value fails at process start, not on the
// first refresh cycle.
func New(cfg config.UpstreamConfig, policy timetable.ComparePolicy) (*Client, error) {
	base := cfg.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("untis: invalid host %q: %w", cfg.Host, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("untis: invalid host %q: no hostname", cfg.Host)
	}

	return &Client{
		baseURL: strings.TrimSuffix(u.String(), "/"),
		school:  cfg.School,
		user:    cfg.User,
		pass:    cfg.Password,
		policy:  policy,
		http:    &http.Client{Timeout: cfg.Timeout},
		now:     time.Now,
	}, nil
}

// session holds the state returned by a successful authenticate call.
type session struct {
	ID       string `json:"sessionId"`
	PersonID int64  `json:"personId"`
}

// rpcRequest is the JSON-RPC 2.0 envelope WebUntis expects.
type rpcRequest struct {
	ID      uuid.UUID   `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	JSONRPC string      `json:"jsonrpc"`
}

// rpcResponse is the JSON-RPC 2.0 reply envelope.
type rpcResponse struct {
	ID     uuid.UUID       `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FetchTimetable retrieves the current weekly timetable and normalizes it
// into a Snapshot. Failures are classified as *NetError, *AuthError or
// *ParseError; a *timetable.DuplicateKeyError passes through unwrapped.
func (c *Client) FetchTimetable(ctx context.Context) (*timetable.Snapshot, error) {
	sess, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	defer c.logout(ctx, sess)

	payload, err := c.fetchWeekly(ctx, sess)
	if err != nil {
		return nil, err
	}

	return parseWeekly(payload, sess.PersonID, c.now(), c.policy)
}

// authenticate opens a WebUntis session for the configured account.
func (c *Client) authenticate(ctx context.Context) (*session, error) {
	res, err := c.rpc(ctx, "authenticate", map[string]string{
		"user":     c.user,
		"password": c.pass(),
		"client":   clientID,
	}, "")
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		if res.Error.Code == untisBadCredentials {
			return nil, &AuthError{Reason: "credentials rejected"}
		}
		return nil, &AuthError{Reason: fmt.Sprintf("rpc error %d: %s", res.Error.Code, res.Error.Message)}
	}
	if len(res.Result) == 0 || string(res.Result) == "null" {
		return nil, &AuthError{Reason: "empty authenticate result"}
	}

	var sess session
	if err := json.Unmarshal(res.Result, &sess); err != nil {
		return nil, &ParseError{Reason: "decode authenticate result", Err: err}
	}
	if sess.ID == "" {
		return nil, &AuthError{Reason: "no session id in authenticate result"}
	}
	return &sess, nil
}

// logout closes the session. Best effort: an expired session or a transport
// hiccup here does not fail the fetch cycle.
func (c *Client) logout(ctx context.Context, sess *session) {
	if _, err := c.rpc(ctx, "logout", nil, sess.ID); err != nil {
		slog.Warn("untis: logout failed", "err", err)
	}
}

// rpc performs one JSON-RPC call against the session endpoint. sessionID is
// sent as the JSESSIONID cookie when non-empty. The response id must echo
// the request id.
func (c *Client) rpc(ctx context.Context, method string, params interface{}, sessionID string) (*rpcResponse, error) {
	id := uuid.New()
	body, err := json.Marshal(rpcRequest{
		ID:      id,
		Method:  method,
		Params:  params,
		JSONRPC: "2.0",
	})
	if err != nil {
		return nil, fmt.Errorf("untis: marshal %s request: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/WebUntis/jsonrpc.do?school=%s", c.baseURL, url.QueryEscape(c.school))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("untis: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", clientID)
	if sessionID != "" {
		req.Header.Set("Cookie", "JSESSIONID="+sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetError{Op: method, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetError{Op: method, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ParseError{Reason: "decode " + method + " response", Err: err}
	}
	if out.ID != id {
		return nil, &ParseError{Reason: fmt.Sprintf("%s response id %s does not echo request id %s", method, out.ID, id)}
	}
	return &out, nil
}

// fetchWeekly retrieves the raw weekly timetable payload for the session's
// person. elementType 5 is "student"; formatId 1 is the default layout.
func (c *Client) fetchWeekly(ctx context.Context, sess *session) ([]byte, error) {
	endpoint := fmt.Sprintf(
		"%s/WebUntis/api/public/timetable/weekly/data?elementType=5&elementId=%d&date=%s&formatId=1",
		c.baseURL, sess.PersonID, c.now().Format("2006-01-02"),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("untis: build weekly request: %w", err)
	}
	req.Header.Set("User-Agent", clientID)
	req.Header.Set("Cookie", "JSESSIONID="+sess.ID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetError{Op: "weekly", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetError{Op: "weekly", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetError{Op: "weekly", Err: err}
	}
	return data, nil
}
