// Package recordstore talks to the remote forms database that backs token
// records. It moves opaque field/value lists and leaves their meaning to
// the caller.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/r2relay/internal/common"
	"github.com/dmitrijs2005/r2relay/internal/logging"
	"github.com/dmitrijs2005/r2relay/internal/retry"
	"github.com/dmitrijs2005/r2relay/internal/server/config"
)

const accessTokenHeader = "accessToken"

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 1 << 10

// maxConnectTimeout bounds the dial of the default client. It is further
// capped at half the per-attempt timeout so a hanging dial leaves room to
// be reported as such.
const maxConnectTimeout = 10 * time.Second

// errConnectTimeout marks an attempt that timed out before a connection to
// the record store was established.
var errConnectTimeout = errors.New("connect timeout")

type Client struct {
	baseURL     string
	appID       string
	accessToken string
	timeout     time.Duration
	policy      retry.Policy
	httpClient  *http.Client
	logger      logging.Logger
}

// NewClient builds a client from the record store settings in cfg.
// A nil httpClient means one whose dialer gives up well before the
// per-attempt timeout.
func NewClient(cfg *config.Config, httpClient *http.Client, l logging.Logger) *Client {
	if httpClient == nil {
		httpClient = newHTTPClient(connectTimeout(cfg.RecordStoreTimeout))
	}
	c := &Client{
		baseURL:     strings.TrimRight(cfg.RecordStoreURL, "/"),
		appID:       cfg.RecordStoreAppID,
		accessToken: cfg.RecordStoreAccessToken,
		timeout:     cfg.RecordStoreTimeout,
		httpClient:  httpClient,
		logger:      l.With("module", "recordstore"),
	}
	c.policy = retry.Policy{
		Attempts:  cfg.RecordStoreAttempts,
		Interval:  cfg.RecordStoreBackoff,
		Retryable: isConnectTimeout,
	}
	return c
}

func connectTimeout(attempt time.Duration) time.Duration {
	if attempt <= 0 {
		return maxConnectTimeout
	}
	return min(maxConnectTimeout, attempt/2)
}

func newHTTPClient(dialTimeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext
	return &http.Client{Transport: t}
}

// CreateRecord stores a new record and returns its id when the service
// reports one.
func (c *Client) CreateRecord(ctx context.Context, answers []Answer) (RecordID, error) {
	var res createResult
	err := c.post(ctx, "create", c.endpoint("apply"), answersRequest{Answers: answers}, &res)
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

// QueryRecords returns up to pageSize records whose field matches searchKey.
func (c *Client) QueryRecords(ctx context.Context, field Field, searchKey string, pageSize int) ([]Record, error) {
	if pageSize < 1 {
		pageSize = 1
	}
	req := filterRequest{
		PageSize: pageSize,
		PageNum:  1,
		Queries:  []query{{QueID: field.ID, QueTitle: field.Title, SearchKey: searchKey}},
	}
	var res filterResult
	if err := c.post(ctx, "query", c.endpoint("apply", "filter"), req, &res); err != nil {
		return nil, err
	}
	return res.Result, nil
}

// UpdateRecord overwrites the given answers of record id.
func (c *Client) UpdateRecord(ctx context.Context, id RecordID, answers []Answer) error {
	if id == "" {
		return fmt.Errorf("record store update: %w: empty record id", common.ErrorValidation)
	}
	return c.post(ctx, "update", c.endpoint("apply", string(id)), answersRequest{Answers: answers}, nil)
}

func (c *Client) endpoint(parts ...string) string {
	segments := []string{c.baseURL, "app", url.PathEscape(c.appID)}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return strings.Join(segments, "/")
}

// post sends payload with the retry policy applied and decodes the result
// part of the response into dest when dest is not nil.
func (c *Client) post(ctx context.Context, op, target string, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("record store %s: marshal request: %w", op, err)
	}

	p := c.policy
	p.OnRetry = func(attempt int, err error) {
		c.logger.Warn(ctx, "record store connect timeout, retrying", "op", op, "attempt", attempt, "error", err)
	}

	err = retry.Do(ctx, p, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.do(attemptCtx, target, body, dest)
	})
	if err != nil {
		c.logger.Error(ctx, "record store call failed", "op", op, "error", err)
	}
	return classify(op, err)
}

func (c *Client) do(ctx context.Context, target string, body []byte, dest any) error {
	var connected atomic.Bool
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) { connected.Store(true) },
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", common.ErrRemoteService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if !connected.Load() && isTimeout(err) {
			return fmt.Errorf("%w: %w", errConnectTimeout, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s: %s", common.ErrRemoteService, resp.Status, strings.TrimSpace(string(data)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if isTimeout(err) {
			return err
		}
		return fmt.Errorf("%w: decode response: %v", common.ErrRemoteService, err)
	}
	if env.ErrCode != 0 {
		return fmt.Errorf("%w: code %d: %s", common.ErrRemoteService, env.ErrCode, env.ErrMsg)
	}
	if dest == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, dest); err != nil {
		return fmt.Errorf("%w: decode result: %v", common.ErrRemoteService, err)
	}
	return nil
}

// isConnectTimeout reports an attempt that ran out of time while dialing.
// Only these are retried; such a request was never sent.
func isConnectTimeout(err error) bool {
	if errors.Is(err, errConnectTimeout) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial" && opErr.Timeout()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrRemoteService), errors.Is(err, common.ErrRemoteTimeout):
		return fmt.Errorf("record store %s: %w", op, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("record store %s: %w", op, err)
	case isTimeout(err):
		return fmt.Errorf("record store %s: %w: %v", op, common.ErrRemoteTimeout, err)
	default:
		return fmt.Errorf("record store %s: %w: %v", op, common.ErrRemoteService, err)
	}
}
