package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Long18349276/Obsidian-Chat/internal/logging"
)

// eventDecoder applies line-oriented server-sent-events framing to a byte
// stream. Bytes arrive in arbitrarily split chunks; incomplete trailing
// lines are buffered across feeds so the decoded delta sequence does not
// depend on where chunk boundaries fall.
type eventDecoder struct {
	buf    []byte
	done   bool
	logger logging.Logger
}

func newEventDecoder(logger logging.Logger) *eventDecoder {
	return &eventDecoder{logger: logging.OrNop(logger)}
}

// feed consumes one chunk and returns the content deltas completed by it, in
// order. After the [DONE] sentinel has been seen, done is set and remaining
// input is ignored.
func (d *eventDecoder) feed(p []byte) []string {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, p...)

	var deltas []string
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(d.buf[:idx])
		d.buf = d.buf[idx+1:]

		delta, ok := d.decodeLine(line)
		if d.done {
			break
		}
		if ok {
			deltas = append(deltas, delta)
		}
	}
	return deltas
}

// streamFrame is the shape of one data: payload. Providers that emit
// heartbeat frames send empty or absent choices; those are skipped.
type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (d *eventDecoder) decodeLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" {
		return "", false
	}
	if payload == "[DONE]" {
		d.done = true
		return "", false
	}

	var frame streamFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		// One malformed line does not abort the stream.
		d.logger.Debug("Failed to decode stream chunk: %v", err)
		return "", false
	}

	if len(frame.Choices) == 0 {
		return "", false
	}
	if text := frame.Choices[0].Delta.Content; text != "" {
		return text, true
	}
	return "", false
}
