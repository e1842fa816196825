package protocol

import "strings"

const (
	recordPrefix = "data: "
	// DoneSentinel is the literal terminal marker some streamed operations
	// emit instead of a structured terminal record.
	DoneSentinel = "[DONE]"
)

// FrameDecoder reassembles line-oriented records from arbitrarily-chunked
// bytes. Chunk boundaries never influence the produced record sequence: the
// trailing fragment of each chunk is carried over until its line break
// arrives.
type FrameDecoder struct {
	carry strings.Builder
}

// NewFrameDecoder returns an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed consumes one chunk and returns every complete candidate record it
// unlocked, in stream order. Lines without the record prefix and empty
// payloads are discarded.
func (d *FrameDecoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	d.carry.Write(chunk)

	buffered := d.carry.String()
	lines := strings.Split(buffered, "\n")

	// The final fragment has no line break yet and is not a record.
	rest := lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	d.carry.Reset()
	d.carry.WriteString(rest)

	var records []string
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, recordPrefix) {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, recordPrefix))
		if payload == "" {
			continue
		}
		records = append(records, payload)
	}
	return records
}

// Pending returns the carried-over fragment. Used for diagnostics only; the
// fragment is never dispatched as a record.
func (d *FrameDecoder) Pending() string {
	return d.carry.String()
}
