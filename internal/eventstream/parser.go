// ABOUTME: Incremental SSE block parser: "event:" + "data:" lines ending at a blank line.
// ABOUTME: Blocks missing a type or payload are heartbeats and never surface.

package eventstream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/2389/opencode-client/internal/api"
)

// Scanner limits: individual data lines can carry large tool outputs.
const (
	scannerInitialBuffer = 64 * 1024
	scannerMaxBuffer     = 4 * 1024 * 1024
)

// parser reads SSE blocks from a stream one at a time.
type parser struct {
	scanner *bufio.Scanner
}

func newParser(r io.Reader) *parser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)
	return &parser{scanner: scanner}
}

// next returns the next complete block. Incomplete blocks (no type, or no
// payload) are skipped silently. Returns io.EOF when the stream ends; a
// complete block pending at EOF is delivered first.
func (p *parser) next() (api.Event, error) {
	var eventType string
	var dataLines []string

	flush := func() (api.Event, bool) {
		if eventType == "" || len(dataLines) == 0 {
			return api.Event{}, false
		}
		payload := strings.Join(dataLines, "\n")
		return api.Event{Type: eventType, Properties: json.RawMessage(payload)}, true
	}

	for p.scanner.Scan() {
		line := p.scanner.Text()

		// Blank line ends the block.
		if line == "" {
			if event, ok := flush(); ok {
				return event, nil
			}
			eventType = ""
			dataLines = nil
			continue
		}

		if after, ok := strings.CutPrefix(line, "event:"); ok {
			eventType = strings.TrimSpace(after)
			continue
		}

		if after, ok := strings.CutPrefix(line, "data:"); ok {
			dataLines = append(dataLines, strings.TrimPrefix(after, " "))
			continue
		}

		// Comment lines (":keepalive") and unknown fields are ignored.
	}

	if err := p.scanner.Err(); err != nil {
		return api.Event{}, err
	}
	if event, ok := flush(); ok {
		return event, nil
	}
	return api.Event{}, io.EOF
}
