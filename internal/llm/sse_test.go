package llm

import (
	"reflect"
	"strings"
	"testing"

	"github.com/Long18349276/Obsidian-Chat/internal/logging"
)

func decodeAll(t *testing.T, chunks ...string) []string {
	t.Helper()

	decoder := newEventDecoder(logging.Nop())
	var deltas []string
	for _, chunk := range chunks {
		deltas = append(deltas, decoder.feed([]byte(chunk))...)
	}
	return deltas
}

func TestDecoderReassemblesSplitFrames(t *testing.T) {
	t.Parallel()

	// A frame split mid-JSON must decode identically to an unsplit one.
	deltas := decodeAll(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel",
		"lo\"}}]}\n\ndata: [DONE]\n",
	)
	if !reflect.DeepEqual(deltas, []string{"Hello"}) {
		t.Fatalf("unexpected deltas: %#v", deltas)
	}
}

func TestDecoderIsSplitInvariant(t *testing.T) {
	t.Parallel()

	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"one\"}}]}\n" +
		"\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" two\"}}]}\n" +
		": heartbeat comment\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" three\"}}]}\n" +
		"data: [DONE]\n"
	want := []string{"one", " two", " three"}

	// Every possible two-chunk split, including mid-line ones, must yield
	// the same delta sequence.
	for cut := 0; cut <= len(stream); cut++ {
		got := decodeAll(t, stream[:cut], stream[cut:])
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d changed output: %#v", cut, got)
		}
	}

	// Byte-at-a-time delivery as the degenerate case.
	decoder := newEventDecoder(logging.Nop())
	var got []string
	for i := 0; i < len(stream); i++ {
		got = append(got, decoder.feed([]byte{stream[i]})...)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("byte-at-a-time delivery changed output: %#v", got)
	}
}

func TestDecoderSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	deltas := decodeAll(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n"+
			"data: {this is not json}\n"+
			"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n"+
			"data: [DONE]\n",
	)
	if !reflect.DeepEqual(deltas, []string{"a", "b"}) {
		t.Fatalf("malformed line was not skipped cleanly: %#v", deltas)
	}
}

func TestDecoderSkipsHeartbeatFrames(t *testing.T) {
	t.Parallel()

	deltas := decodeAll(t,
		"data: {\"choices\":[]}\n"+
			"data: {\"usage\":{\"total_tokens\":5}}\n"+
			"data: {\"choices\":[{\"delta\":{}}]}\n"+
			"data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n"+
			"data: [DONE]\n",
	)
	if !reflect.DeepEqual(deltas, []string{"x"}) {
		t.Fatalf("heartbeat frames leaked deltas: %#v", deltas)
	}
}

func TestDecoderStopsAtDone(t *testing.T) {
	t.Parallel()

	decoder := newEventDecoder(logging.Nop())
	deltas := decoder.feed([]byte("data: [DONE]\ndata: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}\n"))
	if len(deltas) != 0 {
		t.Fatalf("deltas after [DONE]: %#v", deltas)
	}
	if !decoder.done {
		t.Fatal("decoder did not mark completion")
	}
	if extra := decoder.feed([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"more\"}}]}\n")); len(extra) != 0 {
		t.Fatalf("decoder emitted after completion: %#v", extra)
	}
}

func TestDecoderHandlesCRLF(t *testing.T) {
	t.Parallel()

	deltas := decodeAll(t, strings.Join([]string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\r",
		"data: [DONE]\r",
		"",
	}, "\n"))
	if !reflect.DeepEqual(deltas, []string{"a"}) {
		t.Fatalf("CRLF lines mishandled: %#v", deltas)
	}
}

func TestDecoderIgnoresNonDataLines(t *testing.T) {
	t.Parallel()

	deltas := decodeAll(t,
		"event: message\n"+
			"id: 42\n"+
			"data: {\"choices\":[{\"delta\":{\"content\":\"only\"}}]}\n"+
			"data: [DONE]\n",
	)
	if !reflect.DeepEqual(deltas, []string{"only"}) {
		t.Fatalf("non-data lines mishandled: %#v", deltas)
	}
}
