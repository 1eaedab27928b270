package pagecrop

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// Message names exchanged between the orchestrator and the page probe.
const (
	// MsgGetPageDetails asks the probe to measure its page.
	MsgGetPageDetails = "getPageDetails"
	// MsgSetPageDetails carries the measured size back to the orchestrator.
	MsgSetPageDetails = "setPageDetails"
	// MsgTakeScreenshot starts a capture cycle.
	MsgTakeScreenshot = "takeScreenshot"
)

// TabID identifies a page that can be captured.
type TabID string

// Message is one payload on the extension-style message channel.
//
//	{"msg":"setPageDetails","size":{"width":1024,"height":1600}}
type Message struct {
	Msg string `json:"msg"`

	// Tab is the page the message is about. Hosts fill it in for
	// messages coming from a page.
	Tab TabID `json:"tab,omitempty"`

	// Size is set on setPageDetails.
	Size *PageSize `json:"size,omitempty"`

	// Position is the page's vertical scroll offset on setPageDetails.
	Position int `json:"position,omitzero"`
}

// EncodeMessage serialises m for the message channel.
func EncodeMessage(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("pagecrop: encoding %q message: %w", m.Msg, err)
	}
	return data, nil
}

// DecodeMessage parses a message received from the channel.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("pagecrop: decoding message: %w", err)
	}
	if m.Msg == "" {
		return Message{}, fmt.Errorf("pagecrop: decoding message: missing msg field")
	}
	if m.Msg == MsgSetPageDetails && m.Size == nil {
		return Message{}, fmt.Errorf("pagecrop: decoding message: %s without size", m.Msg)
	}
	return m, nil
}
