package inference

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Stream framing constants for OpenAI-compatible SSE responses.
const (
	// doneMarker terminates the chunk stream.
	doneMarker = "[DONE]"

	// dataPrefix frames each event line.
	dataPrefix = "data:"
)

// Completion holds the fully accumulated response buffers for one
// request.
type Completion struct {
	// Content is the concatenation of every delta.content fragment in
	// wire order.
	Content string

	// Reasoning is the concatenation of every delta.reasoning_content
	// fragment in wire order.
	Reasoning string
}

// chunk is one decoded stream event. Deltas carrying neither content
// nor reasoning (role announcements, tool calls) decode to empty
// strings and accumulate as no-ops.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

// maxLineSize bounds a single stream line (1 MiB).
const maxLineSize = 1024 * 1024

// Accumulate consumes a newline-delimited chunk stream and rebuilds
// the content and reasoning buffers.
//
// Empty lines are skipped. A line equal to the termination marker ends
// the stream. Lines carrying the data prefix are unframed before
// decoding. A line that fails to decode is reported through
// onDecodeError, discarded, and the stream continues; one corrupt
// chunk never aborts the response.
//
// Normal termination is either the marker line or the stream closing.
// A read error mid-stream returns the buffers accumulated so far
// alongside the error.
func Accumulate(r io.Reader, onDecodeError func(line string, err error)) (Completion, error) {
	var completion Completion

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.TrimSpace(line) == doneMarker {
			break
		}
		if strings.HasPrefix(line, dataPrefix) {
			line = strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		}
		// vLLM frames the terminator too ("data: [DONE]").
		if strings.TrimSpace(line) == doneMarker {
			break
		}
		if line == "" {
			continue
		}

		var c chunk
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			if onDecodeError != nil {
				onDecodeError(line, err)
			}
			continue
		}
		if len(c.Choices) == 0 {
			continue
		}

		delta := c.Choices[0].Delta
		completion.Content += delta.Content
		completion.Reasoning += delta.ReasoningContent
	}

	if err := scanner.Err(); err != nil {
		return completion, err
	}
	return completion, nil
}
