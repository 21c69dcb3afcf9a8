package intent

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire form of an intent: the discriminant plus its payload.
type Envelope struct {
	Kind    Kind            `json:"$kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// decoders maps every known kind to a function decoding its payload.
var decoders = map[Kind]func(json.RawMessage) (Intent, error){
	KindRouteURL:      decodeAs[RouteURLIntent],
	KindGroupingPage:  decodeAs[GroupingPageIntent],
	KindProductPage:   decodeAs[ProductPageIntent],
	KindDeveloperPage: decodeAs[DeveloperPageIntent],
	KindSearchResults: decodeAs[SearchResultsPageIntent],
	KindRoomPage:      decodeAs[RoomPageIntent],
	KindAccountPage:   decodeAs[AccountPageIntent],
}

func decodeAs[T Intent](raw json.RawMessage) (Intent, error) {
	var v T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Wrap builds the envelope for i.
func Wrap(i Intent) (Envelope, error) {
	if i == nil {
		return Envelope{}, fmt.Errorf("wrap: nil intent")
	}
	payload, err := json.Marshal(i)
	if err != nil {
		return Envelope{}, fmt.Errorf("wrap %s: %w", i.Kind(), err)
	}
	return Envelope{Kind: i.Kind(), Payload: payload}, nil
}

// Unwrap decodes the intent held by e.
func (e Envelope) Unwrap() (Intent, error) {
	decode, ok := decoders[e.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown intent kind %q", e.Kind)
	}
	i, err := decode(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
	}
	return i, nil
}

// flowActionJSON mirrors FlowAction with a serializable destination.
type flowActionJSON struct {
	Title               string              `json:"title,omitempty"`
	Destination         *Envelope           `json:"destination,omitempty"`
	PageURL             string              `json:"pageUrl,omitempty"`
	PresentationContext PresentationContext `json:"presentationContext,omitempty"`
}

// MarshalJSON encodes the destination as an Envelope.
func (a FlowAction) MarshalJSON() ([]byte, error) {
	out := flowActionJSON{
		Title:               a.Title,
		PageURL:             a.PageURL,
		PresentationContext: a.PresentationContext,
	}
	if a.Destination != nil {
		env, err := Wrap(a.Destination)
		if err != nil {
			return nil, err
		}
		out.Destination = &env
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the destination envelope.
func (a *FlowAction) UnmarshalJSON(data []byte) error {
	var in flowActionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*a = FlowAction{
		Title:               in.Title,
		PageURL:             in.PageURL,
		PresentationContext: in.PresentationContext,
	}
	if in.Destination != nil {
		dest, err := in.Destination.Unwrap()
		if err != nil {
			return err
		}
		a.Destination = dest
	}
	return nil
}
