package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockGenerator returns canned output without calling a provider. It is used when
// LLM_PROVIDER=mock and by the worker CLI for offline runs.
type MockGenerator struct {
	ChunkSize int
	Delay     time.Duration
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{ChunkSize: 24}
}

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Stream(ctx context.Context, p Prompt, onDelta DeltaFunc) (string, error) {
	content := m.respond(p)

	size := m.ChunkSize
	if size <= 0 {
		size = len(content)
	}
	for start := 0; start < len(content); start += size {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if m.Delay > 0 {
			time.Sleep(m.Delay)
		}

		end := min(start+size, len(content))
		if onDelta != nil {
			if err := onDelta(content[start:end]); err != nil {
				return content[:end], err
			}
		}
	}
	return content, nil
}

func (m *MockGenerator) respond(p Prompt) string {
	brief := firstLine(p.User)
	if strings.Contains(p.System, "function App") {
		return "```jsx\n" +
			"import React, { useState } from 'react';\n\n" +
			"export default function App() {\n" +
			"  const [count, setCount] = useState(0);\n" +
			"  return (\n" +
			"    <div style={{ padding: 24 }}>\n" +
			fmt.Sprintf("      <h1>%s</h1>\n", escapeJSX(brief)) +
			"      <button onClick={() => setCount(count + 1)}>Clicked {count} times</button>\n" +
			"    </div>\n" +
			"  );\n" +
			"}\n```"
	}
	return fmt.Sprintf("# Draft\n\nMock response for: %s\n\n- point one\n- point two\n", brief)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "Project Brief: ")
}

func escapeJSX(s string) string {
	return strings.NewReplacer("{", "(", "}", ")", "<", "(", ">", ")").Replace(s)
}
