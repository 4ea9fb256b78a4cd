/*
Package bridge runs the persona MCP server as a child process and forwards
JSON-RPC requests to it over stdio.

Requests may be issued concurrently. Each one gets a fresh numeric id and
waits for the response carrying that id, or times out. The child's stderr is
forwarded to the logger so its output never blocks on a full pipe.
*/
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/logging"
)

const (
	// DefaultTimeout is the maximum time to wait for one response.
	DefaultTimeout = 30 * time.Second

	protocolVersion = "2024-11-05"
	closeGrace      = 2 * time.Second
	maxLineBytes    = 4 * 1024 * 1024
)

// ErrClosed is returned for requests made after the child has exited.
var ErrClosed = errors.New("bridge: MCP server process is not running")

// Command describes the child process.
type Command struct {
	Path string
	Args []string

	// Env is appended to the current environment.
	Env []string
}

// Options configures a Bridge.
type Options struct {
	Timeout    time.Duration
	ClientName string
	Logger     *zap.Logger
}

// RPCError is a JSON-RPC error returned by the child.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

type response struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Bridge is a running child MCP server.
type Bridge struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	logger     *zap.Logger
	timeout    time.Duration
	clientName string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan response
	nextID  int64
	exitErr error

	initialized atomic.Bool
	done        chan struct{}
	stderrDone  chan struct{}
	closeOnce   sync.Once
}

// execCommand is a variable that allows tests to replace exec.Command
var execCommand = exec.Command

// Start launches the child process. Call Initialize before forwarding requests.
func Start(c Command, opts Options) (*Bridge, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ClientName == "" {
		opts.ClientName = "persona-mcp-bridge"
	}

	cmd := execCommand(c.Path, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	b := &Bridge{
		cmd:        cmd,
		stdin:      stdin,
		logger:     logging.OrNop(opts.Logger).With(zap.String("child", c.Path)),
		timeout:    opts.Timeout,
		clientName: opts.ClientName,
		pending:    make(map[int64]chan response),
		done:       make(chan struct{}),
		stderrDone: make(chan struct{}),
	}

	go b.drainStderr(stderr)
	go b.readLoop(stdout)

	return b, nil
}

// Initialize performs the MCP handshake: an initialize request followed by
// the initialized notification.
func (b *Bridge) Initialize(ctx context.Context) error {
	_, err := b.Call(ctx, "initialize", map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    b.clientName,
			"version": "1.0.0",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize MCP server: %w", err)
	}

	if err := b.write(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "notifications/initialized",
	}); err != nil {
		return err
	}

	b.initialized.Store(true)
	b.logger.Info("MCP server initialized")
	return nil
}

// Initialized reports whether the handshake completed.
func (b *Bridge) Initialized() bool {
	return b.initialized.Load()
}

// Call sends a request and waits for its result.
func (b *Bridge) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	ch := make(chan response, 1)

	b.mu.Lock()
	if b.exitErr != nil {
		err := b.exitErr
		b.mu.Unlock()
		return nil, err
	}
	b.nextID++
	id := b.nextID
	b.pending[id] = ch
	b.mu.Unlock()

	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}

	if err := b.write(req); err != nil {
		b.forget(id)
		return nil, err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, b.Err()
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil

	case <-timer.C:
		b.forget(id)
		return nil, fmt.Errorf("timeout after %v waiting for %s", b.timeout, method)

	case <-ctx.Done():
		b.forget(id)
		return nil, ctx.Err()
	}
}

// CallTool invokes tools/call and returns the raw tool result.
func (b *Bridge) CallTool(ctx context.Context, name string, args interface{}) (json.RawMessage, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	return b.Call(ctx, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
}

// Done is closed when the child process exits.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Err returns why the child stopped, or nil while it is running.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exitErr
}

// Close stops the child: stdin is closed first, and the process is killed if
// it has not exited within a short grace period.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.writeMu.Lock()
		if cerr := b.stdin.Close(); cerr != nil {
			b.logger.Debug("failed to close child stdin", zap.Error(cerr))
		}
		b.writeMu.Unlock()

		select {
		case <-b.done:
		case <-time.After(closeGrace):
			b.logger.Warn("MCP server did not exit gracefully, force killing")
			if b.cmd.Process != nil {
				b.cmd.Process.Kill()
			}
			<-b.done
		}
		<-b.stderrDone

		if werr := b.cmd.Wait(); werr != nil && !strings.Contains(werr.Error(), "signal: killed") {
			err = werr
		}
	})
	return err
}

func (b *Bridge) write(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if _, err := b.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

func (b *Bridge) forget(id int64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// readLoop dispatches responses to waiting callers until stdout closes.
func (b *Bridge) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			b.logger.Warn("ignoring non-JSON output from MCP server", zap.Error(err))
			continue
		}
		if resp.ID == nil {
			b.logger.Debug("ignoring message without id", zap.ByteString("message", line))
			continue
		}

		b.mu.Lock()
		ch, ok := b.pending[*resp.ID]
		delete(b.pending, *resp.ID)
		b.mu.Unlock()

		if !ok {
			b.logger.Debug("response for unknown request", zap.Int64("id", *resp.ID))
			continue
		}
		ch <- resp
	}

	exitErr := ErrClosed
	if err := scanner.Err(); err != nil {
		exitErr = fmt.Errorf("%w: %v", ErrClosed, err)
	}

	b.mu.Lock()
	b.exitErr = exitErr
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
	b.mu.Unlock()

	b.initialized.Store(false)
	b.logger.Info("MCP server exited")
	close(b.done)
}

func (b *Bridge) drainStderr(stderr io.Reader) {
	defer close(b.stderrDone)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		b.logger.Debug("mcp server", zap.String("stderr", scanner.Text()))
	}
}
