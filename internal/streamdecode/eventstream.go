package streamdecode

import (
	"bytes"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
)

// EventStreamFrame is the header-only summary of one AWS binary
// event-stream message. Payload bytes are intentionally not decoded;
// Kiro's eventstream responses carry usage accounting the backing
// service never reports back through this framing, so there is nothing
// reliable to extract from the payload itself (see the catalog's kiro
// entry and the accompanying design notes).
type EventStreamFrame struct {
	MessageType string
	EventType   string
	ContentType string
}

// ScanEventStreamFrames decodes only the prelude and headers of each
// message in an AWS event-stream body, for observability (frame counts,
// event types seen) without attempting payload token extraction.
func ScanEventStreamFrames(raw []byte) ([]EventStreamFrame, error) {
	decoder := eventstream.NewDecoder()
	r := bytes.NewReader(raw)
	var frames []EventStreamFrame
	for {
		msg, err := decoder.Decode(r, nil)
		if err != nil {
			break
		}
		frame := EventStreamFrame{}
		for _, h := range msg.Headers {
			switch h.Name {
			case ":message-type":
				frame.MessageType = headerString(h.Value)
			case ":event-type":
				frame.EventType = headerString(h.Value)
			case ":content-type":
				frame.ContentType = headerString(h.Value)
			}
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func headerString(v eventstream.Value) string {
	s, ok := v.Get().(string)
	if !ok {
		return ""
	}
	return s
}
