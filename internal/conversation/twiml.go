package conversation

import (
	"encoding/xml"
	"fmt"
)

// TwiML verbs for the voice webhook response. Verb order in the struct is
// render order: speak first, then either gather more speech or hang up.
type (
	// Say speaks text to the caller.
	Say struct {
		Text string `xml:",chardata"`
	}

	// Gather listens for the caller's next utterance and posts it back.
	Gather struct {
		Input   string `xml:"input,attr"`
		Timeout int    `xml:"timeout,attr"`
		Action  string `xml:"action,attr"`
		Method  string `xml:"method,attr"`
	}

	// Hangup ends the call.
	Hangup struct{}

	// TwiML is the provider response document for one webhook invocation.
	TwiML struct {
		XMLName xml.Name `xml:"Response"`
		Say     *Say     `xml:"Say,omitempty"`
		Gather  *Gather  `xml:"Gather,omitempty"`
		Hangup  *Hangup  `xml:"Hangup,omitempty"`
	}
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// Render serializes the document with the XML declaration Twilio expects.
func (t *TwiML) Render() (string, error) {
	body, err := xml.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("conversation: render twiml: %w", err)
	}
	return xmlHeader + string(body), nil
}

// speakAndGather builds the common reply shape: say something, then listen.
func speakAndGather(text, action string, timeout int) *TwiML {
	return &TwiML{
		Say:    &Say{Text: text},
		Gather: &Gather{Input: "speech", Timeout: timeout, Action: action, Method: "POST"},
	}
}

// speakAndHangup builds the terminal reply shape.
func speakAndHangup(text string) *TwiML {
	return &TwiML{
		Say:    &Say{Text: text},
		Hangup: &Hangup{},
	}
}

// emptyResponse acknowledges a lifecycle event with no spoken content.
func emptyResponse() *TwiML {
	return &TwiML{}
}
