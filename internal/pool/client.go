// Package pool implements the Stratum-style JSON-RPC client: login,
// job ingest and share submission over a single line-framed TCP
// connection.
package pool

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rxminer/rxminer/internal/job"
	"github.com/rxminer/rxminer/internal/jsonx"
	"github.com/rxminer/rxminer/internal/util"
)

const (
	// respTimeout bounds a request/response round-trip
	respTimeout = 10 * time.Second
	// pollTimeout is the job listener's per-read deadline
	pollTimeout = 1 * time.Second
	// reconnectDelay is the backoff between reconnect attempts
	reconnectDelay = 5 * time.Second
	// dialTimeout bounds the TCP connect
	dialTimeout = 10 * time.Second
	// keepAlivePeriod for the pool socket
	keepAlivePeriod = 30 * time.Second
)

var (
	// ErrRejected means the pool answered a submit with anything other
	// than status OK.
	ErrRejected = errors.New("pool: share rejected")
	// ErrNotConnected means no live connection to submit on
	ErrNotConnected = errors.New("pool: not connected")
	// ErrClosed means the client was shut down
	ErrClosed = errors.New("pool: client closed")
)

// Credentials identify the miner to the pool on login
type Credentials struct {
	Wallet   string
	Password string
	Worker   string
	Agent    string
}

// JobHandler receives every job the pool pushes, including the one
// embedded in the login response.
type JobHandler func(*job.Job)

// Client owns the pool connection. One reader loop consumes the
// socket; submitters serialize through the socket mutex and perform a
// synchronous request/response round-trip, which is safe because the
// listener releases the socket between its poll reads.
type Client struct {
	addr  string
	creds Credentials

	onJob JobHandler

	// sockMu guards conn, rd and sessionID and is held across every
	// request/response round-trip
	sockMu    sync.Mutex
	conn      net.Conn
	rd        *lineReader
	sessionID string

	reqID atomic.Uint64

	quit chan struct{}
	wg   sync.WaitGroup
}

// request is a client-to-pool JSON-RPC message
type request struct {
	ID      uint64      `json:"id"`
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// loginParams is the login request body
type loginParams struct {
	Login  string `json:"login"`
	Pass   string `json:"pass"`
	Agent  string `json:"agent"`
	Worker string `json:"worker"`
}

// submitParams is the share submission body (named-object form)
type submitParams struct {
	ID     string `json:"id"`
	JobID  string `json:"job_id"`
	Nonce  string `json:"nonce"`
	Result string `json:"result"`
	Algo   string `json:"algo"`
}

// message is any pool-to-client line: a response (id + result/error)
// or a server notification (method + params).
type message struct {
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("pool error %d: %s", e.Code, e.Message)
}

// loginResult is the result object of a successful login
type loginResult struct {
	ID  string   `json:"id"`
	Job *job.Job `json:"job"`
}

// submitResult carries the status field of a submit response
type submitResult struct {
	Status string `json:"status"`
}

// NewClient creates a client for the given pool address ("host:port")
func NewClient(addr string, creds Credentials, onJob JobHandler) *Client {
	return &Client{
		addr:  addr,
		creds: creds,
		onJob: onJob,
		quit:  make(chan struct{}),
	}
}

// Connect dials the pool with TCP_NODELAY and keep-alive enabled
func (c *Client) Connect() error {
	d := net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlivePeriod}
	conn, err := d.Dial("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
		tc.SetKeepAlive(true)
	}

	c.sockMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.rd = newLineReader(conn)
	c.sockMu.Unlock()

	util.Infof("Connected to pool %s", c.addr)
	return nil
}

// Login authenticates and hands the embedded first job to the handler
func (c *Client) Login() error {
	c.sockMu.Lock()
	loginJob, deferred, err := c.loginLocked()
	c.sockMu.Unlock()

	c.dispatchDeferred(deferred)
	if err == nil && loginJob != nil && c.onJob != nil {
		c.onJob(loginJob)
	}
	return err
}

func (c *Client) loginLocked() (*job.Job, []string, error) {
	if c.conn == nil {
		return nil, nil, ErrNotConnected
	}

	c.reqID.Store(1)
	req := request{
		ID:      1,
		JSONRPC: "2.0",
		Method:  "login",
		Params: loginParams{
			Login:  c.creds.Wallet,
			Pass:   c.creds.Password,
			Agent:  c.creds.Agent,
			Worker: c.creds.Worker,
		},
	}
	if err := c.writeLocked(req); err != nil {
		return nil, nil, err
	}

	msg, deferred, err := c.awaitResponseLocked(1)
	if err != nil {
		return nil, deferred, fmt.Errorf("login: %w", err)
	}
	if msg.Error != nil {
		return nil, deferred, fmt.Errorf("login: %w", msg.Error)
	}

	var result loginResult
	if err := jsonx.Unmarshal(msg.Result, &result); err != nil {
		return nil, deferred, fmt.Errorf("login: bad result: %w", err)
	}
	if result.ID == "" {
		util.Warn("No session id in login response")
		result.ID = "1"
	}
	c.sessionID = result.ID
	if result.Job == nil {
		return nil, deferred, fmt.Errorf("login: no job in response")
	}

	util.Infof("Logged in, session %s", result.ID)
	return result.Job, deferred, nil
}

// Listen consumes job notifications until Close. On any transport
// error it reconnects and re-logs-in with a fixed backoff. Runs on its
// own goroutine.
func (c *Client) Listen() {
	c.wg.Add(1)
	go c.listenLoop()
}

func (c *Client) listenLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.quit:
			return
		default:
		}

		c.sockMu.Lock()
		if c.conn == nil {
			c.sockMu.Unlock()
			if !c.reconnect() {
				return
			}
			continue
		}
		line, err := c.rd.readLine(pollTimeout)
		c.sockMu.Unlock()

		if err != nil {
			if isTimeout(err) {
				continue
			}
			util.Warnf("Pool connection lost: %v", err)
			c.drop()
			continue
		}
		c.dispatch(line)
	}
}

// reconnect loops connect+login with backoff until success or Close.
// Returns false when the client is shutting down.
func (c *Client) reconnect() bool {
	for {
		select {
		case <-c.quit:
			return false
		default:
		}

		if err := c.Connect(); err != nil {
			util.Warnf("Reconnect failed: %v", err)
		} else if err := c.Login(); err != nil {
			util.Warnf("Re-login failed: %v", err)
			c.drop()
		} else {
			return true
		}

		select {
		case <-c.quit:
			return false
		case <-time.After(reconnectDelay):
		}
	}
}

// Submit sends one share and waits for the pool's verdict. Holds the
// socket for the whole round-trip; job notifications read while
// waiting are dispatched afterwards, in order.
func (c *Client) Submit(jobID, nonceHex, hashHex, algo string) error {
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}

	c.sockMu.Lock()
	deferred, err := c.submitLocked(jobID, nonceHex, hashHex, algo)
	c.sockMu.Unlock()

	c.dispatchDeferred(deferred)
	return err
}

func (c *Client) submitLocked(jobID, nonceHex, hashHex, algo string) ([]string, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	id := c.reqID.Add(1)
	req := request{
		ID:      id,
		JSONRPC: "2.0",
		Method:  "submit",
		Params: submitParams{
			ID:     c.sessionID,
			JobID:  jobID,
			Nonce:  nonceHex,
			Result: hashHex,
			Algo:   algo,
		},
	}
	if err := c.writeLocked(req); err != nil {
		c.dropLocked()
		return nil, err
	}

	msg, deferred, err := c.awaitResponseLocked(id)
	if err != nil {
		// An in-flight submit on a dead connection counts as rejected;
		// the listener will reconnect.
		c.dropLocked()
		return deferred, err
	}
	if msg.Error != nil {
		return deferred, fmt.Errorf("%w: %s", ErrRejected, msg.Error.Message)
	}

	var result submitResult
	if err := jsonx.Unmarshal(msg.Result, &result); err != nil || result.Status != "OK" {
		return deferred, ErrRejected
	}
	return deferred, nil
}

// awaitResponseLocked reads lines until the response with the given id
// arrives or the round-trip deadline expires. Notification lines read
// in the meantime are returned for dispatch after the socket unlocks.
func (c *Client) awaitResponseLocked(id uint64) (*message, []string, error) {
	var deferred []string
	deadline := time.Now().Add(respTimeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, deferred, fmt.Errorf("timeout waiting for response %d", id)
		}

		line, err := c.rd.readLine(remaining)
		if err != nil {
			return nil, deferred, err
		}

		var msg message
		if err := jsonx.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		if msg.Method != "" {
			deferred = append(deferred, line)
			continue
		}
		if matchesID(msg.ID, id) {
			return &msg, deferred, nil
		}
	}
}

// dispatch routes one line from the pool. Empty or non-JSON lines are
// discarded; unexpected methods are logged.
func (c *Client) dispatch(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var msg message
	if err := jsonx.Unmarshal([]byte(line), &msg); err != nil {
		util.Debugf("Discarding non-JSON line from pool: %q", line)
		return
	}

	switch msg.Method {
	case "":
		// A response with no waiter; nothing to do
	case "job":
		var j job.Job
		if err := jsonx.Unmarshal(msg.Params, &j); err != nil {
			util.Warnf("Malformed job notification: %v", err)
			return
		}
		if c.onJob != nil {
			c.onJob(&j)
		}
	default:
		util.Warnf("Unexpected method %q from pool", msg.Method)
	}
}

func (c *Client) dispatchDeferred(lines []string) {
	for _, line := range lines {
		c.dispatch(line)
	}
}

// writeLocked marshals req and sends it as one newline-terminated line
func (c *Client) writeLocked(req request) error {
	data, err := jsonx.Marshal(req)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(respTimeout))
	_, err = c.conn.Write(append(data, '\n'))
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// drop closes the connection so the listener reconnects
func (c *Client) drop() {
	c.sockMu.Lock()
	c.dropLocked()
	c.sockMu.Unlock()
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.rd = nil
	}
}

// Close stops the listener and closes the socket
func (c *Client) Close() {
	close(c.quit)
	c.drop()
	c.wg.Wait()
}

// SessionID returns the pool session identifier from login
func (c *Client) SessionID() string {
	c.sockMu.Lock()
	defer c.sockMu.Unlock()
	return c.sessionID
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// matchesID compares a decoded JSON id against the request id; pools
// echo it back as a number.
func matchesID(got interface{}, want uint64) bool {
	switch v := got.(type) {
	case float64:
		return uint64(v) == want
	case string:
		return v == fmt.Sprintf("%d", want)
	default:
		return false
	}
}
