package intent

// ActionKind is the runtime tag used to dispatch actions to handlers.
type ActionKind string

// Action kinds.
const (
	FlowActionKind        ActionKind = "FlowAction"
	ExternalURLActionKind ActionKind = "ExternalUrlAction"
)

// PresentationContext tells the flow handler how to present a destination.
type PresentationContext string

// PresentModal shows the destination page in a modal without touching
// browser history.
const PresentModal PresentationContext = "presentModal"

// Action is a request to transition UI state.
type Action interface {
	ActionKind() ActionKind
}

// FlowAction navigates to a page.
type FlowAction struct {
	Title               string              `json:"title,omitempty"`
	Destination         Intent              `json:"-"`
	PageURL             string              `json:"pageUrl,omitempty"`
	PresentationContext PresentationContext `json:"presentationContext,omitempty"`
}

func (FlowAction) ActionKind() ActionKind { return FlowActionKind }

// IsModal reports whether the action presents its destination modally.
func (a FlowAction) IsModal() bool {
	return a.PresentationContext == PresentModal
}

// ExternalURLAction opens a URL outside the storefront.
type ExternalURLAction struct {
	URL string `json:"url"`
}

func (ExternalURLAction) ActionKind() ActionKind { return ExternalURLActionKind }

// Outcome is what an action handler reports back to the dispatcher.
type Outcome string

const (
	// OutcomePerformed means the handler took responsibility for the action.
	// Callers must not retry it.
	OutcomePerformed Outcome = "performed"
	// OutcomeUnsupported means the handler could not act on the action.
	OutcomeUnsupported Outcome = "unsupported"
)
