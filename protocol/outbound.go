package protocol

import (
	"math"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/phanxgames/vista/tour"
)

// Envelope is one outbound action.
type Envelope struct {
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

// SubAction is an editor action carried inside EditTour.
type SubAction interface {
	ActionName() string
}

// EditTourData is the payload of the EditTour action.
type EditTourData struct {
	TourID       Ref      `json:"tour_id"`
	EditorAction Envelope `json:"editor_action"`
}

// EditTour wraps an editor sub-action for the given tour.
func EditTour(tourID tour.ID, sub SubAction) Envelope {
	return Envelope{
		Action: "EditTour",
		Data: EditTourData{
			TourID:       Ref(tourID),
			EditorAction: Envelope{Action: sub.ActionName(), Data: sub},
		},
	}
}

// Marshal encodes an envelope.
func (e Envelope) Marshal() ([]byte, error) { return json.Marshal(e) }

// Ref is an id as the server expects it in requests: a decimal string.
type Ref tour.ID

// MarshalJSON encodes the id as a JSON string.
func (r Ref) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(tour.ID(r).String())), nil
}

// UnmarshalJSON accepts a number or numeric string.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var id tour.ID
	if err := id.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = Ref(id)
	return nil
}

// Position is a longitude/latitude pair in degrees. It is always encoded
// rounded to two decimals.
type Position [2]float64

// MarshalJSON rounds both components to two decimals.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{Round2(p[0]), Round2(p[1])})
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WholeDegrees rounds an angle to an integer number of degrees.
func WholeDegrees(v float64) int {
	return int(math.Round(v))
}

type AddScene struct {
	Name     string `json:"name"`
	FilePath string `json:"file_path"`
}

type DeleteScene struct {
	SceneID Ref `json:"scene_id"`
}

type UpdateSceneName struct {
	SceneID Ref    `json:"scene_id"`
	Name    string `json:"name"`
}

type SetInitialScene struct {
	SceneID Ref `json:"scene_id"`
}

// AddConnection creates a transition. AssetID is the target scene.
type AddConnection struct {
	StartSceneID Ref      `json:"start_scene_id"`
	AssetID      Ref      `json:"asset_id"`
	Position     Position `json:"position"`
	Name         *string  `json:"name"`
}

// EditConnection updates any connection. Nil fields keep their value.
type EditConnection struct {
	ConnectionID Ref      `json:"connection_id"`
	NewAssetID   *Ref     `json:"new_asset_id"`
	NewPosition  Position `json:"new_position"`
	NewName      *string  `json:"new_name"`
	NewIconType  *int     `json:"new_icon_type"`
	NewFilePath  *string  `json:"new_file_path"`
}

type DeleteConnection struct {
	ConnectionID Ref `json:"connection_id"`
}

type AddCloseup struct {
	Name          string   `json:"name"`
	FilePath      string   `json:"file_path"`
	ParentSceneID Ref      `json:"parent_scene_id"`
	Position      Position `json:"position"`
	IconType      int      `json:"icon_type"`
}

type SetInitialView struct {
	SceneID  Ref      `json:"scene_id"`
	Position Position `json:"position"`
	FOV      float64  `json:"fov"`
}

// SetNorthDirection carries the north offset in whole degrees.
type SetNorthDirection struct {
	SceneID   Ref `json:"scene_id"`
	Direction int `json:"direction"`
}

type SetSceneSort struct {
	Mode      tour.SortMode      `json:"mode"`
	Direction tour.SortDirection `json:"direction"`
}

type AddFloorplan struct {
	FilePath string `json:"file_path"`
}

type DeleteFloorplan struct {
	FloorplanID Ref `json:"floorplan_id"`
}

type AddFloorplanMarker struct {
	SceneID Ref     `json:"scene_id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type UpdateFloorplanMarker struct {
	MarkerID Ref     `json:"marker_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type DeleteFloorplanMarker struct {
	MarkerID Ref `json:"marker_id"`
}

func (AddScene) ActionName() string              { return "AddScene" }
func (DeleteScene) ActionName() string           { return "DeleteScene" }
func (UpdateSceneName) ActionName() string       { return "UpdateSceneName" }
func (SetInitialScene) ActionName() string       { return "SetInitialScene" }
func (AddConnection) ActionName() string         { return "AddConnection" }
func (EditConnection) ActionName() string        { return "EditConnection" }
func (DeleteConnection) ActionName() string      { return "DeleteConnection" }
func (AddCloseup) ActionName() string            { return "AddCloseup" }
func (SetInitialView) ActionName() string        { return "SetInitialView" }
func (SetNorthDirection) ActionName() string     { return "SetNorthDirection" }
func (SetSceneSort) ActionName() string          { return "SetSceneSort" }
func (AddFloorplan) ActionName() string          { return "AddFloorplan" }
func (DeleteFloorplan) ActionName() string       { return "DeleteFloorplan" }
func (AddFloorplanMarker) ActionName() string    { return "AddFloorplanMarker" }
func (UpdateFloorplanMarker) ActionName() string { return "UpdateFloorplanMarker" }
func (DeleteFloorplanMarker) ActionName() string { return "DeleteFloorplanMarker" }

// Top-level (non-editing) actions.

// EditTourSession asks the server to open a tour for editing and answer
// with tour_data.
type EditTourSession struct {
	TourID Ref `json:"tour_id"`
}

// OpenTour returns the action that starts an editing session.
func OpenTour(tourID tour.ID) Envelope {
	return Envelope{Action: "EditTour", Data: EditTourSession{TourID: Ref(tourID)}}
}

// Disconnect tells the server the client is leaving.
func Disconnect() Envelope { return Envelope{Action: "Disconnect"} }
