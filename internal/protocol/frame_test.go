package protocol

import (
	"reflect"
	"testing"
)

func TestFrameDecoderStripsPrefixAndDropsNoise(t *testing.T) {
	t.Parallel()

	d := NewFrameDecoder()
	records := d.Feed([]byte("data: {\"type\":\"start\"}\nevent: ping\ndata: \n: comment\ndata: [DONE]\n"))

	want := []string{`{"type":"start"}`, "[DONE]"}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("records = %#v, want %#v", records, want)
	}
}

func TestFrameDecoderRetainsIncompleteFragment(t *testing.T) {
	t.Parallel()

	d := NewFrameDecoder()
	if got := d.Feed([]byte("data: {\"type\":\"st")); got != nil {
		t.Fatalf("incomplete line produced records: %#v", got)
	}
	if d.Pending() != `data: {"type":"st` {
		t.Fatalf("unexpected carry-over: %q", d.Pending())
	}

	records := d.Feed([]byte("art\"}\n"))
	if len(records) != 1 || records[0] != `{"type":"start"}` {
		t.Fatalf("records = %#v", records)
	}
	if d.Pending() != "" {
		t.Fatalf("carry-over not drained: %q", d.Pending())
	}
}

func TestFrameDecoderHandlesCRLF(t *testing.T) {
	t.Parallel()

	d := NewFrameDecoder()
	records := d.Feed([]byte("data: {\"type\":\"complete\"}\r\n"))
	if len(records) != 1 || records[0] != `{"type":"complete"}` {
		t.Fatalf("records = %#v", records)
	}
}

// TestFrameDecoderChunkBoundaryInvariance verifies that every way of slicing
// the same byte stream yields an identical record sequence.
func TestFrameDecoderChunkBoundaryInvariance(t *testing.T) {
	t.Parallel()

	stream := []byte("data: {\"type\":\"init\",\"session_id\":\"s-1\"}\n" +
		"data: {\"type\":\"content_delta\",\"delta\":\"hel\"}\n" +
		"ignored line\n" +
		"data: {\"type\":\"content_delta\",\"delta\":\"lo\"}\n" +
		"data: [DONE]\n")

	reference := NewFrameDecoder().Feed(stream)
	if len(reference) != 4 {
		t.Fatalf("reference record count = %d, want 4", len(reference))
	}

	for chunkSize := 1; chunkSize <= len(stream); chunkSize++ {
		d := NewFrameDecoder()
		var got []string
		for start := 0; start < len(stream); start += chunkSize {
			end := start + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			got = append(got, d.Feed(stream[start:end])...)
		}
		if !reflect.DeepEqual(got, reference) {
			t.Fatalf("chunk size %d diverged: got %#v, want %#v", chunkSize, got, reference)
		}
	}
}

func TestFrameDecoderEmptyChunk(t *testing.T) {
	t.Parallel()

	d := NewFrameDecoder()
	if got := d.Feed(nil); got != nil {
		t.Fatalf("empty chunk produced records: %#v", got)
	}
}
