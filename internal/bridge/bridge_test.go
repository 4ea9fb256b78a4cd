package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestHelperProcess is not a real test. It is the fake MCP server that the
// other tests launch as a child process.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("PERSONA_BRIDGE_HELPER") != "1" {
		return
	}

	out := bufio.NewWriter(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var req struct {
			ID     *int64          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil || req.ID == nil {
			continue
		}

		fmt.Fprintln(os.Stderr, "handling", req.Method)
		switch req.Method {
		case "hang":
			continue
		case "fail":
			fmt.Fprintf(out, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"Method not found"}}`+"\n", *req.ID)
		case "exit":
			os.Exit(0)
		default:
			params := req.Params
			if len(params) == 0 {
				params = json.RawMessage("null")
			}
			fmt.Fprintf(out, "not json noise\n")
			fmt.Fprintf(out, `{"jsonrpc":"2.0","id":%d,"result":{"method":%q,"params":%s}}`+"\n", *req.ID, req.Method, params)
		}
		out.Flush()
	}
	os.Exit(0)
}

func startHelper(t *testing.T, timeout time.Duration) *Bridge {
	t.Helper()
	b, err := Start(Command{
		Path: os.Args[0],
		Args: []string{"-test.run=^TestHelperProcess$"},
		Env:  []string{"PERSONA_BRIDGE_HELPER=1"},
	}, Options{Timeout: timeout, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

type echo struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func TestBridge_InitializeAndCall(t *testing.T) {
	b := startHelper(t, 5*time.Second)
	ctx := context.Background()

	assert.False(t, b.Initialized())
	require.NoError(t, b.Initialize(ctx))
	assert.True(t, b.Initialized())

	raw, err := b.CallTool(ctx, "list_personas", nil)
	require.NoError(t, err)

	var got echo
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "tools/call", got.Method)
	assert.JSONEq(t, `{"name":"list_personas","arguments":{}}`, string(got.Params))
}

func TestBridge_ConcurrentCallsAreCorrelated(t *testing.T) {
	b := startHelper(t, 5*time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, err := b.Call(ctx, fmt.Sprintf("method-%d", i), nil)
			if err != nil {
				errs <- err
				return
			}
			var got echo
			if err := json.Unmarshal(raw, &got); err != nil {
				errs <- err
				return
			}
			if got.Method != fmt.Sprintf("method-%d", i) {
				errs <- fmt.Errorf("call %d got response for %s", i, got.Method)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestBridge_RPCError(t *testing.T) {
	b := startHelper(t, 5*time.Second)

	_, err := b.Call(context.Background(), "fail", nil)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, -32601, rpcErr.Code)
	assert.Equal(t, "MCP error -32601: Method not found", rpcErr.Error())
}

func TestBridge_Timeout(t *testing.T) {
	b := startHelper(t, 100*time.Millisecond)

	_, err := b.Call(context.Background(), "hang", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")

	// the bridge keeps working after a timeout
	_, err = b.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
}

func TestBridge_ContextCancel(t *testing.T) {
	b := startHelper(t, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Call(ctx, "hang", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBridge_ChildExit(t *testing.T) {
	b := startHelper(t, 5*time.Second)

	_, err := b.Call(context.Background(), "exit", nil)
	assert.ErrorIs(t, err, ErrClosed)

	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done was not closed after the child exited")
	}
	assert.False(t, b.Initialized())

	_, err = b.Call(context.Background(), "ping", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBridge_Close(t *testing.T) {
	b := startHelper(t, 5*time.Second)
	require.NoError(t, b.Initialize(context.Background()))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "Close is idempotent")

	select {
	case <-b.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
	assert.True(t, errors.Is(b.Err(), ErrClosed))
}

func TestStart_MissingBinary(t *testing.T) {
	_, err := Start(Command{Path: "/nonexistent/persona-mcp"}, Options{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to start process"))
}
