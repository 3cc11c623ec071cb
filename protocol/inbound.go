package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/phanxgames/vista/tour"
)

var (
	// ErrMalformed is returned for payloads that are not valid JSON objects
	// or that fail validation.
	ErrMalformed = errors.New("protocol: malformed message")
	// ErrUnknownType is returned for a "type" outside the known set.
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// Message is an inbound push. The set of implementations is closed.
type Message interface {
	Type() string
	inbound()
}

// TourData is a full tour snapshot.
type TourData struct {
	Data tour.Tour `json:"data"`
}

// SceneAdded announces a new scene.
type SceneAdded struct {
	Scene tour.Scene `json:"scene"`
}

// SceneDeleted announces a removed scene.
type SceneDeleted struct {
	SceneID tour.ID `json:"scene_id" validate:"required"`
}

// SceneUpdated carries a scene's new metadata.
type SceneUpdated struct {
	Scene tour.Scene `json:"scene"`
}

// ConnectionAdded acknowledges an AddConnection. It carries only the real id
// and the fields needed to find the optimistic record.
type ConnectionAdded struct {
	ConnectionID tour.ID `json:"connection_id" validate:"required"`
	StartScene   tour.ID `json:"start_scene" validate:"required"`
	TargetScene  tour.ID `json:"target_scene" validate:"required"`
}

// ConnectionDeleted announces a removed connection.
type ConnectionDeleted struct {
	ConnectionID tour.ID `json:"connection_id" validate:"required"`
}

// CloseupAdded acknowledges an AddCloseup.
type CloseupAdded struct {
	ConnectionID tour.ID `json:"connection_id" validate:"required"`
	ParentScene  tour.ID `json:"parent_scene" validate:"required"`
	FilePath     string  `json:"file_path" validate:"required"`
	Name         string  `json:"name"`
	IconType     int     `json:"icon_type" validate:"omitempty,min=1,max=3"`
}

// FloorplanAdded announces the tour floorplan.
type FloorplanAdded struct {
	FloorplanID tour.ID `json:"floorplan_id" validate:"required"`
	FilePath    string  `json:"file_path" validate:"required"`
}

// FloorplanDeleted announces the floorplan was removed.
type FloorplanDeleted struct {
	FloorplanID tour.ID `json:"floorplan_id"`
}

// FloorplanMarkerAdded places a scene on the floorplan.
type FloorplanMarkerAdded struct {
	MarkerID tour.ID `json:"marker_id" validate:"required"`
	SceneID  tour.ID `json:"scene_id" validate:"required"`
	X        float64 `json:"x" validate:"gte=0,lte=1"`
	Y        float64 `json:"y" validate:"gte=0,lte=1"`
}

// FloorplanMarkerUpdated moves a floorplan marker.
type FloorplanMarkerUpdated struct {
	MarkerID tour.ID `json:"marker_id" validate:"required"`
	SceneID  tour.ID `json:"scene_id"`
	X        float64 `json:"x" validate:"gte=0,lte=1"`
	Y        float64 `json:"y" validate:"gte=0,lte=1"`
}

// FloorplanMarkerDeleted removes a floorplan marker.
type FloorplanMarkerDeleted struct {
	MarkerID tour.ID `json:"marker_id" validate:"required"`
}

// SortUpdated carries the persisted scene ordering.
type SortUpdated struct {
	Mode      tour.SortMode      `json:"mode" validate:"oneof=alphabetical created_at modified_at"`
	Direction tour.SortDirection `json:"direction" validate:"oneof=asc desc"`
}

// Success is a user-facing confirmation.
type Success struct {
	Message string `json:"message"`
	Title   string `json:"title"`
}

// Error is a user-facing failure report.
type Error struct {
	Message string `json:"message"`
	Title   string `json:"title"`
}

func (TourData) Type() string               { return "tour_data" }
func (SceneAdded) Type() string             { return "scene_added" }
func (SceneDeleted) Type() string           { return "scene_deleted" }
func (SceneUpdated) Type() string           { return "scene_updated" }
func (ConnectionAdded) Type() string        { return "connection_added" }
func (ConnectionDeleted) Type() string      { return "connection_deleted" }
func (CloseupAdded) Type() string           { return "closeup_added" }
func (FloorplanAdded) Type() string         { return "floorplan_added" }
func (FloorplanDeleted) Type() string       { return "floorplan_deleted" }
func (FloorplanMarkerAdded) Type() string   { return "floorplan_marker_added" }
func (FloorplanMarkerUpdated) Type() string { return "floorplan_marker_updated" }
func (FloorplanMarkerDeleted) Type() string { return "floorplan_marker_deleted" }
func (SortUpdated) Type() string            { return "sort_updated" }
func (Success) Type() string                { return "success" }
func (Error) Type() string                  { return "error" }

func (TourData) inbound()               {}
func (SceneAdded) inbound()             {}
func (SceneDeleted) inbound()           {}
func (SceneUpdated) inbound()           {}
func (ConnectionAdded) inbound()        {}
func (ConnectionDeleted) inbound()      {}
func (CloseupAdded) inbound()           {}
func (FloorplanAdded) inbound()         {}
func (FloorplanDeleted) inbound()       {}
func (FloorplanMarkerAdded) inbound()   {}
func (FloorplanMarkerUpdated) inbound() {}
func (FloorplanMarkerDeleted) inbound() {}
func (SortUpdated) inbound()            {}
func (Success) inbound()                {}
func (Error) inbound()                  {}

var validate = validator.New(validator.WithRequiredStructEnabled())

var decoders = map[string]func([]byte) (Message, error){
	"tour_data":                decodeAs[TourData],
	"scene_added":              decodeAs[SceneAdded],
	"scene_deleted":            decodeAs[SceneDeleted],
	"scene_updated":            decodeAs[SceneUpdated],
	"connection_added":         decodeAs[ConnectionAdded],
	"connection_deleted":       decodeAs[ConnectionDeleted],
	"closeup_added":            decodeAs[CloseupAdded],
	"floorplan_added":          decodeAs[FloorplanAdded],
	"floorplan_deleted":        decodeAs[FloorplanDeleted],
	"floorplan_marker_added":   decodeAs[FloorplanMarkerAdded],
	"floorplan_marker_updated": decodeAs[FloorplanMarkerUpdated],
	"floorplan_marker_deleted": decodeAs[FloorplanMarkerDeleted],
	"sort_updated":             decodeAs[SortUpdated],
	"success":                  decodeAs[Success],
	"error":                    decodeAs[Error],
}

// Decode parses one inbound frame.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if head.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	dec, ok := decoders[*head.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, *head.Type)
	}
	return dec(data)
}

func decodeAs[T Message](data []byte) (Message, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, m.Type(), err)
	}
	if err := validate.Struct(m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, m.Type(), err)
	}
	return m, nil
}

// Encode serialises an inbound message with its "type" discriminator. The
// editor never sends these; servers and tests do.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	typ, _ := json.Marshal(m.Type())
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(typ)
	if rest := bytes.TrimSpace(body[1:]); len(rest) > 1 {
		buf.WriteByte(',')
		buf.Write(rest)
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}
