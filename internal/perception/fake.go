package perception

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is an in-memory LLMClient for tests and offline runs. It
// records every prompt and replays canned responses in order, falling back
// to Response when the queue is exhausted.
type FakeClient struct {
	mu       sync.Mutex
	calls    []string
	queue    []string
	Response string
	Err      error
}

// NewFakeClient returns a fake that answers every prompt with response.
func NewFakeClient(response string) *FakeClient {
	return &FakeClient{Response: response}
}

// Enqueue appends responses replayed one per call before Response applies.
func (f *FakeClient) Enqueue(responses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, responses...)
}

// Calls returns the prompts seen so far.
func (f *FakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *FakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userPrompt)

	if f.Err != nil {
		return "", f.Err
	}
	if len(f.queue) > 0 {
		resp := f.queue[0]
		f.queue = f.queue[1:]
		return resp, nil
	}
	if f.Response == "" {
		return "", fmt.Errorf("fake client has no response configured")
	}
	return f.Response, nil
}
