package honeycomb

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/honeycombio/libhoney-go/transmission"
)

// TextSender is a transmission.Sender that renders each event as one line
// of human-readable text on out, optionally coloured by trace ID and span
// name. The shape of the implementation follows honeycomb's own
// transmission.WriterSender.
type TextSender struct {
	sync.Mutex

	out    io.Writer
	colour bool

	responses chan transmission.Response
}

// responseBacklog is how many unread responses to hold before dropping,
// matching what transmission.WriterSender allows itself.
const responseBacklog = 100

func (t *TextSender) Start() error {
	t.responses = make(chan transmission.Response, responseBacklog)
	return nil
}

func (t *TextSender) Stop() error { return nil }

func (t *TextSender) Flush() error { return nil }

func (t *TextSender) Add(ev *transmission.Event) {
	line := t.line(ev)

	t.Lock()
	defer t.Unlock()
	_, _ = t.out.Write(line)
	t.SendResponse(transmission.Response{
		Metadata: ev.Metadata,
	})
}

func (t *TextSender) TxResponses() chan transmission.Response {
	return t.responses
}

func (t *TextSender) SendResponse(r transmission.Response) bool {
	select {
	case t.responses <- r:
	default:
		return true
	}
	return false
}

func (t *TextSender) line(ev *transmission.Event) []byte {
	buf := new(bytes.Buffer)
	_, _ = fmt.Fprintf(buf, "%s %s %.3fms %s",
		ev.Timestamp.Format("15:04:05"),
		t.paint(shortTraceID(ev.Data["trace.trace_id"])),
		ev.Data["duration_ms"],
		t.paint(fmt.Sprintf("%s", ev.Data["name"])),
	)

	for _, k := range sortedKeys(ev.Data) {
		if quiet(k) {
			continue
		}
		label := k // keep the original key for the data lookup
		if k == "error" && t.colour {
			label = errorHighlight(k)
		}
		_, _ = fmt.Fprintf(buf, " %s=%v", label, ev.Data[k])
	}
	buf.WriteString("\n")
	return buf.Bytes()
}

// quiet reports whether k should stay out of the text stream, either
// because the line prefix already carries it or because it is noise when
// read locally.
func quiet(k string) bool {
	switch k {
	case "name", "version", "service", "duration_ms":
		return true
	}
	return strings.HasPrefix(k, "trace.") || strings.HasPrefix(k, "meta.")
}

func (t *TextSender) paint(value string) string {
	if !t.colour {
		return value
	}
	return applyColour(value)
}

func shortTraceID(raw interface{}) string {
	traceID, ok := raw.(string)
	if !ok {
		return "unkwn"
	}
	return traceID[len(traceID)-5:]
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
