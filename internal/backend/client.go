// Package backend implements the consumed collaborator surface of the
// reconciliation engine: message send (chunk stream over websocket),
// history paging, run status, tool-call results and publish lifecycle.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/comppolicylab/pingpong-sub002/internal/chunk"
	"github.com/comppolicylab/pingpong-sub002/internal/model"
	"github.com/comppolicylab/pingpong-sub002/internal/thread"
	apperrors "github.com/comppolicylab/pingpong-sub002/pkg/errors"
	"github.com/comppolicylab/pingpong-sub002/pkg/logger"
)

// Client talks to the generative-AI backend. It implements thread.Backend.
type Client struct {
	baseURL string
	version int
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
}

var _ thread.Backend = (*Client)(nil)

// NewClient creates a backend client for baseURL (scheme + host, no
// trailing slash). version selects the paging protocol (2 or 3). token is
// attached as a bearer credential when non-empty.
func NewClient(baseURL string, version int, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
			NetDialContext:   (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		},
	}
}

func (c *Client) path(format string, args ...any) string {
	return fmt.Sprintf("%s/api/v%d", c.baseURL, c.version) + fmt.Sprintf(format, args...)
}

// wsPath converts an API path to its websocket equivalent.
func (c *Client) wsPath(format string, args ...any) string {
	p := c.path(format, args...)
	if strings.HasPrefix(p, "https://") {
		return "wss://" + strings.TrimPrefix(p, "https://")
	}
	return "ws://" + strings.TrimPrefix(p, "http://")
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

// doJSON runs one JSON request and decodes the response into out (skipped
// when out is nil).
func (c *Client) doJSON(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, "Client.doJSON", "encode request")
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return apperrors.Wrap(err, "Client.doJSON", "build request")
	}
	req.Header = c.headers()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(err, "Client.doJSON", "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.Wrapf(apperrors.ErrNotFound, "Client.doJSON", "%s %s", method, rawURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.Newf("Client.doJSON", "%s %s: status %d: %s",
			method, rawURL, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(err, "Client.doJSON", "decode response")
	}
	return nil
}

// SendMessage opens the chunk stream for one user message: dial the stream
// endpoint, write the send request as the first frame, then hand the
// connection to the caller as a chunk.Stream.
func (c *Client) SendMessage(ctx context.Context, threadID string, req thread.SendRequest) (chunk.Stream, error) {
	wsURL := c.wsPath("/threads/%s/stream", url.PathEscape(threadID))
	conn, _, err := c.dialer.DialContext(ctx, wsURL, c.headers())
	if err != nil {
		return nil, apperrors.Wrap(err, "Client.SendMessage", "ws connect")
	}
	if err := conn.WriteJSON(req); err != nil {
		_ = conn.Close()
		return nil, apperrors.Wrap(err, "Client.SendMessage", "write send request")
	}
	logger.Debug("chunk stream opened",
		logger.FieldThreadID, threadID,
		logger.FieldURL, wsURL,
	)
	return newWSStream(conn), nil
}

// FetchHistory loads one history page. before pages backward by message id
// (v2) or run id (v3); empty fetches the latest page.
func (c *Client) FetchHistory(ctx context.Context, threadID string, limit int, before string) (model.HistoryPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if before != "" {
		q.Set("before", before)
	}
	var page model.HistoryPage
	err := c.doJSON(ctx, http.MethodGet,
		c.path("/threads/%s/messages?%s", url.PathEscape(threadID), q.Encode()), nil, &page)
	if err != nil {
		return model.HistoryPage{}, err
	}
	return page, nil
}

// FetchRunStatus returns the thread plus its most recent run.
func (c *Client) FetchRunStatus(ctx context.Context, threadID string) (model.ThreadStatus, error) {
	var status model.ThreadStatus
	err := c.doJSON(ctx, http.MethodGet,
		c.path("/threads/%s/run", url.PathEscape(threadID)), nil, &status)
	if err != nil {
		return model.ThreadStatus{}, err
	}
	return status, nil
}

// FetchToolCallResult loads the detailed content of one finished step.
func (c *Client) FetchToolCallResult(ctx context.Context, threadID, runID, stepID string, kind model.ContentType) ([]model.ContentItem, error) {
	var body struct {
		Content []model.ContentItem `json:"content"`
	}
	q := url.Values{}
	q.Set("kind", string(kind))
	err := c.doJSON(ctx, http.MethodGet,
		c.path("/threads/%s/runs/%s/steps/%s?%s",
			url.PathEscape(threadID), url.PathEscape(runID), url.PathEscape(stepID), q.Encode()),
		nil, &body)
	if err != nil {
		return nil, err
	}
	return body.Content, nil
}

// Publish marks the thread public.
func (c *Client) Publish(ctx context.Context, threadID string) error {
	return c.doJSON(ctx, http.MethodPost,
		c.path("/threads/%s/publish", url.PathEscape(threadID)), nil, nil)
}

// Unpublish retracts a published thread.
func (c *Client) Unpublish(ctx context.Context, threadID string) error {
	return c.doJSON(ctx, http.MethodPost,
		c.path("/threads/%s/unpublish", url.PathEscape(threadID)), nil, nil)
}

// DeleteThread removes the thread server-side.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	return c.doJSON(ctx, http.MethodDelete,
		c.path("/threads/%s", url.PathEscape(threadID)), nil, nil)
}
