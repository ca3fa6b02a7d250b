package model

import (
	"context"
	"sync"
)

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Outputs are scripted in FIFO order via the Add* helpers; every received
// request is recorded for assertions.
type MockModel struct {
	info Info

	mu       sync.Mutex
	queue    []Output
	requests []Request
	err      error
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
	}
}

// AddText enqueues a plain text output.
func (m *MockModel) AddText(text string) *MockModel {
	return m.AddOutput(NewTextOutput(text))
}

// AddToolCall enqueues a tool call output.
func (m *MockModel) AddToolCall(id, name, arguments string) *MockModel {
	return m.AddOutput(NewToolCallOutput(id, name, arguments))
}

// AddTransfer enqueues a delegation output.
func (m *MockModel) AddTransfer(target string) *MockModel {
	return m.AddOutput(NewTransferOutput(target))
}

// AddOutput enqueues an arbitrary scripted output.
func (m *MockModel) AddOutput(out Output) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, out)
	return m
}

// FailWith makes every subsequent Generate call return err.
func (m *MockModel) FailWith(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Requests returns a copy of all requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]Request, len(m.requests))
	copy(reqs, m.requests)
	return reqs
}

// CallCount returns how many times Generate has been invoked.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Model. It pops the next scripted output, falling back to
// an echo of the newest user text when the queue is empty.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.err != nil {
		return nil, m.err
	}

	var out Output
	if len(m.queue) > 0 {
		out = m.queue[0]
		m.queue = m.queue[1:]
	} else {
		out = NewTextOutput("Mock response to: " + req.LastUserText())
	}

	return &Response{Output: out, FinishReason: "stop"}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
