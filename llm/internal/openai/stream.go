package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/llmcodec/llmcodec/llm/payload"
)

// streamChunk mirrors the minimal subset of an SSE delta event.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// GenerateStream sends a schema-constrained completion request in
// streaming mode and emits parseable JSON snapshots of the record as
// its members complete. The final chunk carries Done with the full
// generated JSON.
func GenerateStream(ctx context.Context, req *payload.Request) (<-chan payload.Chunk, error) {
	body, err := buildRequest(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := send(ctx, body)
	if err != nil {
		return nil, err
	}

	ch := make(chan payload.Chunk)
	go readStream(ctx, resp.Body, ch)
	return ch, nil
}

// readStream consumes SSE events, accumulating content deltas. After
// each delta the accumulated prefix is completed into valid JSON when
// possible and emitted as a snapshot, so consumers see the record's
// fields populate as they are generated.
func readStream(ctx context.Context, body io.ReadCloser, ch chan<- payload.Chunk) {
	defer close(ch)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var acc strings.Builder
	var lastEmitted string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var sc streamChunk
		if err := json.Unmarshal([]byte(data), &sc); err != nil {
			emit(ctx, ch, payload.Chunk{Err: fmt.Errorf("openai: malformed stream event: %w", err)})
			return
		}
		if len(sc.Choices) == 0 {
			continue
		}
		acc.WriteString(sc.Choices[0].Delta.Content)

		snapshot, ok := completeJSON(acc.String())
		if !ok || snapshot == lastEmitted {
			continue
		}
		lastEmitted = snapshot

		if !emit(ctx, ch, payload.Chunk{Raw: json.RawMessage(snapshot)}) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		emit(ctx, ch, payload.Chunk{Err: fmt.Errorf("openai: stream read failed: %w", err)})
		return
	}

	final := strings.TrimSpace(acc.String())
	if !json.Valid([]byte(final)) {
		emit(ctx, ch, payload.Chunk{Err: errors.New("openai: stream ended with invalid JSON")})
		return
	}

	emit(ctx, ch, payload.Chunk{Raw: json.RawMessage(final), Done: true})
}

// emit delivers a chunk unless the context is cancelled first. A
// cancelled consumer may have stopped receiving entirely, so a plain
// send here would strand the reader goroutine and the response body.
func emit(ctx context.Context, ch chan<- payload.Chunk, c payload.Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// completeJSON closes the open containers of a JSON prefix so it
// parses. It refuses prefixes that stop inside a string literal or at
// a member boundary (trailing comma or colon) – those would fabricate
// values that were never generated.
func completeJSON(s string) (string, bool) {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
		}
	}

	if inString || escaped {
		return "", false
	}

	t := strings.TrimRight(s, " \t\r\n")
	if t == "" || strings.ContainsAny(t[len(t)-1:], ",:") {
		return "", false
	}

	for i := len(stack) - 1; i >= 0; i-- {
		t += string(stack[i])
	}
	if !json.Valid([]byte(t)) {
		return "", false
	}
	return t, true
}
