package logic

import "fmt"

// ActionKind selects what the composer does with its payload
type ActionKind string

const (
	// ActionSend sends the payload as a user message
	ActionSend ActionKind = "send"
	// ActionPrefill only places the payload in the composer
	ActionPrefill ActionKind = "prefill"
	// ActionTemplatedReply records the payload as a question with a canned answer
	ActionTemplatedReply ActionKind = "templatedReply"
)

// Action is a composer request decided at the call site
type Action struct {
	Kind    ActionKind `json:"kind"`
	Payload string     `json:"payload"`
	// Reply is the canned answer for ActionTemplatedReply
	Reply string `json:"reply,omitempty"`
}

// Validate checks the kind and the fields it requires
func (a Action) Validate() error {
	switch a.Kind {
	case ActionSend, ActionPrefill:
		return nil
	case ActionTemplatedReply:
		if a.Reply == "" {
			return fmt.Errorf("templated reply requires a reply")
		}
		return nil
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}
