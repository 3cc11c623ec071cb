// Package protocol defines the messages exchanged with the tour server over
// the persistent connection.
//
// Outbound messages are [Envelope] values: {"action": Name, "data": {...}}.
// Editing actions are wrapped by [EditTour] into
// {"action": "EditTour", "data": {"tour_id", "editor_action": Envelope}}.
//
// Inbound messages form a closed set of types implementing [Message].
// [Decode] reads the "type" discriminator, decodes into the matching struct,
// and validates it; unknown types and payloads missing required fields are
// rejected rather than ignored.
package protocol
