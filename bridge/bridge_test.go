package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"geode/provider"
	"geode/provider/testutil"
	"geode/tools"
	"geode/vault"
)

// recordingEvents captures every callback in arrival order.
type recordingEvents struct {
	mu       sync.Mutex
	messages []string
	toolUses []string
	errs     []string
	finished int
	order    []string
}

func (r *recordingEvents) Message(sender, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, sender+": "+text)
	r.order = append(r.order, "message")
}

func (r *recordingEvents) ToolCall(description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolUses = append(r.toolUses, description)
	r.order = append(r.order, "tool")
}

func (r *recordingEvents) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, message)
	r.order = append(r.order, "error")
}

func (r *recordingEvents) Finished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
	r.order = append(r.order, "finished")
}

func newEchoTool(name string) *tools.Tool {
	return &tools.Tool{
		Name:        name,
		Description: "echoes its input",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return fmt.Sprintf("echo:%v", args["value"]), nil
		},
	}
}

func newFailingTool(name string) *tools.Tool {
	return &tools.Tool{
		Name:        name,
		Description: "always fails",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("disk on fire")
		},
	}
}

// newTestBridge builds a bridge around a mock adapter and an explicit
// tool set, bypassing vault and plugin discovery.
func newTestBridge(t *testing.T, adapter *testutil.MockAdapter, toolset ...*tools.Tool) *Bridge {
	t.Helper()
	registry := tools.NewRegistry()
	for _, tool := range toolset {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("Register(%q) error = %v", tool.Name, err)
		}
	}
	return &Bridge{registry: registry, adapter: adapter}
}

func TestSendMessageTextOnly(t *testing.T) {
	adapter := &testutil.MockAdapter{
		SendFunc: func(ctx context.Context, in provider.Input) (*provider.Response, error) {
			return testutil.TextResponse("hello there"), nil
		},
	}
	b := newTestBridge(t, adapter)
	ev := &recordingEvents{}

	b.SendMessage(context.Background(), "hi", ev)

	if len(ev.messages) != 1 || ev.messages[0] != "Geode: hello there" {
		t.Errorf("messages = %v", ev.messages)
	}
	if len(ev.errs) != 0 {
		t.Errorf("unexpected errors: %v", ev.errs)
	}
	if ev.finished != 1 {
		t.Errorf("finished fired %d times, want 1", ev.finished)
	}
	if ev.order[len(ev.order)-1] != "finished" {
		t.Errorf("finished was not last: %v", ev.order)
	}
}

func TestSendMessageEmptyFinalText(t *testing.T) {
	adapter := &testutil.MockAdapter{
		SendFunc: func(ctx context.Context, in provider.Input) (*provider.Response, error) {
			return testutil.TextResponse(""), nil
		},
	}
	b := newTestBridge(t, adapter)
	ev := &recordingEvents{}

	b.SendMessage(context.Background(), "hi", ev)

	if len(ev.messages) != 1 || !strings.HasSuffix(ev.messages[0], "(No text response)") {
		t.Errorf("messages = %v", ev.messages)
	}
}

func TestSendMessageSingleToolRound(t *testing.T) {
	round := 0
	adapter := &testutil.MockAdapter{
		SendFunc: func(ctx context.Context, in provider.Input) (*provider.Response, error) {
			round++
			if round == 1 {
				return testutil.ToolCallResponse(provider.FunctionCall{
					Name: "echo",
					Args: map[string]any{"value": "abc"},
				}), nil
			}
			return testutil.TextResponse("the echo said abc"), nil
		},
	}
	b := newTestBridge(t, adapter, newEchoTool("echo"))
	ev := &recordingEvents{}

	b.SendMessage(context.Background(), "echo abc", ev)

	if len(ev.toolUses) != 1 || ev.toolUses[0] != "echo(value='abc')" {
		t.Errorf("toolUses = %v", ev.toolUses)
	}
	if len(ev.messages) != 1 || ev.messages[0] != "Geode: the echo said abc" {
		t.Errorf("messages = %v", ev.messages)
	}

	// Second Send must carry the tool result, not a prompt.
	if len(adapter.SendCalls) != 2 {
		t.Fatalf("Send called %d times, want 2", len(adapter.SendCalls))
	}
	resub := adapter.SendCalls[1]
	if resub.Prompt != "" || len(resub.Results) != 1 {
		t.Fatalf("resubmission input = %+v", resub)
	}
	if resub.Results[0].Name != "echo" || resub.Results[0].Response != "echo:abc" {
		t.Errorf("result = %+v", resub.Results[0])
	}
}

func TestSendMessageBatchesMultipleCalls(t *testing.T) {
	round := 0
	adapter := &testutil.MockAdapter{
		SendFunc: func(ctx context.Context, in provider.Input) (*provider.Response, error) {
			round++
			if round == 1 {
				return testutil.ToolCallResponse(
					provider.FunctionCall{Name: "echo", Args: map[string]any{"value": "one"}},
					provider.FunctionCall{Name: "echo", Args: map[string]any{"value": "two"}},
					provider.FunctionCall{Name: "echo", Args: map[string]any{"value": "three"}},
				), nil
			}
			return testutil.TextResponse("done"), nil
		},
	}
	b := newTestBridge(t, adapter, newEchoTool("echo"))
	ev := &recordingEvents{}

	b.SendMessage(context.Background(), "go", ev)

	if len(ev.toolUses) != 3 {
		t.Errorf("toolUses = %v, want 3 executions", ev.toolUses)
	}
	// All three results travel in one resubmission.
	if len(adapter.SendCalls) != 2 {
		t.Fatalf("Send called %d times, want 2", len(adapter.SendCalls))
	}
	results := adapter.SendCalls[1].Results
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[1].Response != "echo:two" {
		t.Errorf("results[1] = %+v", results[1])
	}
}

func TestSendMessageUnknownToolAborts(t *testing.T) {
	adapter := &testutil.MockAdapter{
		SendFunc: func(ctx context.Context, in provider.Input) (*provider.Response, error) {
			return testutil.ToolCallResponse(provider.FunctionCall{
				Name: "no_such_tool",
				Args: map[string]any{},
			}), nil
		},
	}
	b := newTestBridge(t, adapter, newEchoTool("echo"))
	ev := &recordingEvents{}

	b.SendMessage(context.Background(), "go", ev)

	if len(ev.errs) != 1 || !strings.Contains(ev.errs[0], "unknown tool function requested: no_such_tool") {
		t.Errorf("errs = %v", ev.errs)
	}
	if len(ev.messages) != 0 {
		t.Errorf("unexpected final message: %v", ev.messages)
	}
	// No partial results resubmitted.
	if len(adapter.SendCalls) != 1 {
		t.Errorf("Send called %d times, want 1", len(adapter.SendCalls))
	}
	if ev.finished != 1 {
		t.Errorf("finished fired %d times", ev.finished)
	}
}

func TestSendMessageHandlerErrorAborts(t *testing.T) {
	round := 0
	adapter := &testutil.MockAdapter{
		SendFunc: func(ctx context.Context, in provider.Input) (*provider.Response, error) {
			round++
			if round == 1 {
				return testutil.ToolCallResponse(
					provider.FunctionCall{Name: "echo", Args: map[string]any{"value": "ok"}},
					provider.FunctionCall{Name: "boom", Args: map[string]any{}},
				), nil
			}
			return testutil.TextResponse("unreachable"), nil
		},
	}
	b := newTestBridge(t, adapter, newEchoTool("echo"), newFailingTool("boom"))
	ev := &recordingEvents{}

	b.SendMessage(context.Background(), "go", ev)

	if len(ev.errs) != 1 || !strings.Contains(ev.errs[0], "Tool execution failed") {
		t.Errorf("errs = %v", ev.errs)
	}
	if !strings.Contains(ev.errs[0], "disk on fire") {
		t.Errorf("handler error dropped: %v", ev.errs)
	}
	// The successful echo result must not leak to the provider.
	if len(adapter.SendCalls) != 1 {
		t.Errorf("Send called %d times, want 1", len(adapter.SendCalls))
	}
}

func TestSendMessageIterationCeiling(t *testing.T) {
	adapter := &testutil.MockAdapter{
		SendFunc: func(ctx context.Context, in provider.Input) (*provider.Response, error) {
			// Never stops asking for tools.
			return testutil.ToolCallResponse(provider.FunctionCall{
				Name: "echo",
				Args: map[string]any{"value": "again"},
			}), nil
		},
	}
	b := newTestBridge(t, adapter, newEchoTool("echo"))
	ev := &recordingEvents{}

	b.SendMessage(context.Background(), "loop", ev)

	if len(ev.errs) != 1 || ev.errs[0] != "Tool-use loop exceeded maximum iterations" {
		t.Errorf("errs = %v", ev.errs)
	}
	if len(ev.messages) != 0 {
		t.Errorf("ceiling must not produce a final message: %v", ev.messages)
	}
	// Ten executed rounds: initial prompt + ten resubmissions.
	if len(ev.toolUses) != 10 {
		t.Errorf("tool executions = %d, want 10", len(ev.toolUses))
	}
	if len(adapter.SendCalls) != 11 {
		t.Errorf("Send called %d times, want 11", len(adapter.SendCalls))
	}
	if ev.finished != 1 {
		t.Errorf("finished fired %d times", ev.finished)
	}
}

func TestSendMessageProviderFailure(t *testing.T) {
	adapter := &testutil.MockAdapter{
		SendFunc: func(ctx context.Context, in provider.Input) (*provider.Response, error) {
			return nil, &provider.AuthError{Provider: "claude", Err: errors.New("401")}
		},
	}
	b := newTestBridge(t, adapter)
	ev := &recordingEvents{}

	b.SendMessage(context.Background(), "hi", ev)

	if len(ev.errs) != 1 || ev.errs[0] != "Authentication Error: Please check your API keys in settings." {
		t.Errorf("errs = %v", ev.errs)
	}
	if ev.finished != 1 {
		t.Errorf("finished fired %d times", ev.finished)
	}
}

func TestSendMessageResubmissionFailure(t *testing.T) {
	round := 0
	adapter := &testutil.MockAdapter{
		SendFunc: func(ctx context.Context, in provider.Input) (*provider.Response, error) {
			round++
			if round == 1 {
				return testutil.ToolCallResponse(provider.FunctionCall{
					Name: "echo",
					Args: map[string]any{"value": "x"},
				}), nil
			}
			return nil, errors.New("stream reset")
		},
	}
	b := newTestBridge(t, adapter, newEchoTool("echo"))
	ev := &recordingEvents{}

	b.SendMessage(context.Background(), "go", ev)

	if len(ev.errs) != 1 || !strings.Contains(ev.errs[0], "Error sending function responses") {
		t.Errorf("errs = %v", ev.errs)
	}
}

// panickyEvents blows up on every callback except Finished; the loop
// must survive and still deliver Finished.
type panickyEvents struct {
	recordingEvents
}

func (p *panickyEvents) Message(sender, text string) { panic("listener bug") }
func (p *panickyEvents) ToolCall(description string) { panic("listener bug") }
func (p *panickyEvents) Error(message string)        { panic("listener bug") }

func TestSendMessageSurvivesPanickingListener(t *testing.T) {
	round := 0
	adapter := &testutil.MockAdapter{
		SendFunc: func(ctx context.Context, in provider.Input) (*provider.Response, error) {
			round++
			if round == 1 {
				return testutil.ToolCallResponse(provider.FunctionCall{
					Name: "echo",
					Args: map[string]any{"value": "x"},
				}), nil
			}
			return testutil.TextResponse("survived"), nil
		},
	}
	b := newTestBridge(t, adapter, newEchoTool("echo"))
	ev := &panickyEvents{}

	b.SendMessage(context.Background(), "go", ev)

	if ev.finished != 1 {
		t.Errorf("finished fired %d times, want 1", ev.finished)
	}
	// The tool still executed and its result was resubmitted.
	if len(adapter.SendCalls) != 2 {
		t.Errorf("Send called %d times, want 2", len(adapter.SendCalls))
	}
}

func TestSendMessageNoCandidates(t *testing.T) {
	adapter := &testutil.MockAdapter{
		SendFunc: func(ctx context.Context, in provider.Input) (*provider.Response, error) {
			return &provider.Response{}, nil
		},
	}
	b := newTestBridge(t, adapter)
	ev := &recordingEvents{}

	b.SendMessage(context.Background(), "hi", ev)

	if len(ev.messages) != 1 || !strings.HasSuffix(ev.messages[0], "(No text response)") {
		t.Errorf("messages = %v", ev.messages)
	}
}

func TestDescribeCallSortsArguments(t *testing.T) {
	got := describeCall(provider.FunctionCall{
		Name: "create_or_update_file",
		Args: map[string]any{"file_path": "notes/a.md", "content": "hello"},
	})
	want := "create_or_update_file(content='hello', file_path='notes/a.md')"
	if got != want {
		t.Errorf("describeCall() = %q, want %q", got, want)
	}
}

func TestCoerceResult(t *testing.T) {
	if got := coerceResult("plain"); got != "plain" {
		t.Errorf("string passthrough = %v", got)
	}
	m := map[string]any{"k": "v"}
	if got := coerceResult(m); got == nil {
		t.Error("map passthrough dropped")
	}
	type odd struct{ X int }
	if got, ok := coerceResult(odd{X: 7}).(string); !ok || got == "" {
		t.Errorf("struct not stringified: %v", got)
	}
}

func TestFormatUserError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "provider auth",
			err:  &provider.AuthError{Provider: "openai", Err: errors.New("401")},
			want: "Authentication Error: Please check your API keys in settings.",
		},
		{
			name: "wrapped provider auth",
			err:  fmt.Errorf("init: %w", &provider.AuthError{Provider: "gemini", Err: errors.New("bad key")}),
			want: "Authentication Error: Please check your API keys in settings.",
		},
		{
			name: "vault auth",
			err:  &vault.AuthError{Err: errors.New("401")},
			want: "Authentication Error: Please check your API keys in settings.",
		},
		{
			name: "vault connection",
			err:  &vault.ConnectionError{Reason: "refused", Err: errors.New("dial")},
			want: "Vault Connection Error: Is the vault service running with the REST API plugin enabled?",
		},
		{
			name: "generic",
			err:  errors.New("boom"),
			want: "An unexpected error occurred: boom",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatUserError(tc.err); got != tc.want {
				t.Errorf("FormatUserError() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTestConnectionVaultFailure(t *testing.T) {
	adapter := &testutil.MockAdapter{
		TestConnectionFunc: func(ctx context.Context) (bool, string) {
			return false, "invalid key"
		},
	}
	b := newTestBridge(t, adapter)
	b.vault = vault.NewClient("http://127.0.0.1:1", "key", 0)

	// Vault probe fails first against a closed port.
	ok, msg := b.TestConnection(context.Background())
	if ok {
		t.Fatal("TestConnection() = true with unreachable vault")
	}
	if !strings.HasPrefix(msg, "Vault Connection Failed:") {
		t.Errorf("message = %q", msg)
	}
}
