package recordstore

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/r2relay/internal/common"
	"github.com/dmitrijs2005/r2relay/internal/logging"
	"github.com/dmitrijs2005/r2relay/internal/server/config"
)

var tokenField = Field{ID: 5, Title: "token"}

func testConfig(url string) *config.Config {
	return &config.Config{
		RecordStoreURL:         url + "/",
		RecordStoreAppID:       "app1",
		RecordStoreAccessToken: "secret",
		RecordStoreTimeout:     time.Second,
		RecordStoreAttempts:    3,
		RecordStoreBackoff:     time.Millisecond,
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_CreateRecord(t *testing.T) {
	var got answersRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/app/app1/apply", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("accessToken"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"errCode":0,"errMsg":"","result":{"applyId":12345}}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), srv.Client(), logging.Discard())
	id, err := c.CreateRecord(context.Background(), []Answer{NewAnswer(tokenField, "abc")})
	require.NoError(t, err)
	assert.Equal(t, RecordID("12345"), id)

	require.Len(t, got.Answers, 1)
	assert.Equal(t, 5, got.Answers[0].QueID)
	assert.Equal(t, "token", got.Answers[0].QueTitle)
	assert.Equal(t, "abc", got.Answers[0].First())
}

func TestClient_QueryRecords(t *testing.T) {
	var got filterRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/app/app1/apply/filter", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"errCode":0,"result":{"result":[
			{"applyId":"r-1","answers":[{"queId":5,"queTitle":"token","values":[{"value":"abc"}]}]}
		]}}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), srv.Client(), logging.Discard())
	recs, err := c.QueryRecords(context.Background(), tokenField, "abc", 1)
	require.NoError(t, err)

	assert.Equal(t, filterRequest{
		PageSize: 1,
		PageNum:  1,
		Queries:  []query{{QueID: 5, QueTitle: "token", SearchKey: "abc"}},
	}, got)
	require.Len(t, recs, 1)
	assert.Equal(t, RecordID("r-1"), recs[0].ID)
	assert.Equal(t, "abc", recs[0].Answers[0].First())
}

func TestClient_QueryRecords_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"errCode":0,"result":null}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), srv.Client(), logging.Discard())
	recs, err := c.QueryRecords(context.Background(), tokenField, "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestClient_UpdateRecord(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = io.WriteString(w, `{"errCode":0}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), srv.Client(), logging.Discard())
	require.NoError(t, c.UpdateRecord(context.Background(), "777", []Answer{NewAnswer(tokenField, "x")}))
	assert.Equal(t, "/app/app1/apply/777", path)

	err := c.UpdateRecord(context.Background(), "", nil)
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestClient_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http 500", http.StatusInternalServerError, "boom"},
		{"errCode set", http.StatusOK, `{"errCode":40001,"errMsg":"bad token"}`},
		{"garbage body", http.StatusOK, "<html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(testConfig(srv.URL), srv.Client(), logging.Discard())
			_, err := c.CreateRecord(context.Background(), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrRemoteService)
			assert.Equal(t, int32(1), calls.Load(), "service errors are not retried")
		})
	}
}

func TestClient_RetriesConnectTimeout(t *testing.T) {
	var calls atomic.Int32
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: timeoutError{}}
	})}

	c := NewClient(testConfig("http://records.invalid"), hc, logging.Discard())
	_, err := c.QueryRecords(context.Background(), tokenField, "abc", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRemoteTimeout)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RetriesHangingDial(t *testing.T) {
	var dials atomic.Int32
	stop := make(chan struct{})
	defer close(stop)

	hc := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dials.Add(1)
			select {
			case <-ctx.Done():
			case <-stop:
			}
			return nil, &net.OpError{Op: "dial", Net: network, Err: timeoutError{}}
		},
	}}

	cfg := testConfig("http://records.invalid")
	cfg.RecordStoreTimeout = 100 * time.Millisecond
	c := NewClient(cfg, hc, logging.Discard())

	_, err := c.QueryRecords(context.Background(), tokenField, "abc", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRemoteTimeout)
	assert.Equal(t, int32(3), dials.Load())
}

func TestConnectTimeout(t *testing.T) {
	assert.Equal(t, maxConnectTimeout, connectTimeout(0))
	assert.Equal(t, maxConnectTimeout, connectTimeout(time.Minute))
	assert.Equal(t, 2*time.Second, connectTimeout(4*time.Second))
}

func TestClient_RecoversAfterConnectTimeout(t *testing.T) {
	var calls atomic.Int32
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) == 1 {
			return nil, &net.OpError{Op: "dial", Net: "tcp", Err: timeoutError{}}
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"errCode":0,"result":{"applyId":1}}`)),
			Header:     make(http.Header),
		}, nil
	})}

	c := NewClient(testConfig("http://records.invalid"), hc, logging.Discard())
	id, err := c.CreateRecord(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RecordID("1"), id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ResponseTimeoutNotRetried(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.RecordStoreTimeout = 50 * time.Millisecond
	c := NewClient(cfg, srv.Client(), logging.Discard())

	_, err := c.CreateRecord(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRemoteTimeout)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRecordID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want RecordID
	}{
		{`123`, "123"},
		{`"abc"`, "abc"},
		{`null`, ""},
		{`98765432109876`, "98765432109876"},
	}
	for _, tt := range tests {
		var id RecordID
		require.NoError(t, json.Unmarshal([]byte(tt.in), &id), tt.in)
		assert.Equal(t, tt.want, id)
	}

	var id RecordID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}

func TestClient_FindByField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req filterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Queries[0].SearchKey == "known" {
			_, _ = io.WriteString(w, `{"errCode":0,"result":{"result":[{"applyId":42,"answers":[]}]}}`)
			return
		}
		_, _ = io.WriteString(w, `{"errCode":0,"result":{"result":[]}}`)
	}))
	defer srv.Close()

	var repo Repository = NewClient(testConfig(srv.URL), srv.Client(), logging.Discard())

	rec, err := repo.FindByField(context.Background(), tokenField, "known")
	require.NoError(t, err)
	assert.Equal(t, RecordID("42"), rec.ID)

	_, err = repo.FindByField(context.Background(), tokenField, "unknown")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
