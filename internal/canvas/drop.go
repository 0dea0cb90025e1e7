package canvas

import (
	"github.com/vonshlovens/roomboard/internal/geom"
)

// DropKind is the class of target a dragged entity was released on.
type DropKind int

const (
	DropNone DropKind = iota
	DropFolder
	DropRoomPortal
	DropArea
	DropArchive
	DropCanvas
)

func (k DropKind) String() string {
	switch k {
	case DropFolder:
		return "folder"
	case DropRoomPortal:
		return "room_portal"
	case DropArea:
		return "area"
	case DropArchive:
		return "archive"
	case DropCanvas:
		return "canvas"
	default:
		return "none"
	}
}

// Drop zones reported by the drag collaborator.
const (
	ZoneArchive = "archive"
	ZoneCanvas  = "canvas"
)

// DropDescriptor is the raw target reported by the drag collaborator: the
// id of the entity under the pointer, a named zone, and the pointer
// position in screen space.
type DropDescriptor struct {
	TargetID string      `json:"target_id,omitempty"`
	Zone     string      `json:"zone,omitempty"`
	Screen   *geom.Point `json:"screen,omitempty"`
}

// DropTarget is a classified descriptor. Point is in world space and only
// set for DropCanvas.
type DropTarget struct {
	Kind  DropKind
	ID    string
	Point geom.Point
}

// DropEvent is a completed drag: draggedID was released on Target. Aborted
// drags never produce an event.
type DropEvent struct {
	DraggedID string         `json:"dragged_id"`
	Target    DropDescriptor `json:"target"`
}

// Classify resolves a descriptor against the board and the session's
// viewport.
func (s *Session) Classify(d DropDescriptor) DropTarget {
	if d.Zone == ZoneArchive {
		return DropTarget{Kind: DropArchive}
	}

	if d.TargetID != "" {
		if _, err := s.board.Folder(d.TargetID); err == nil {
			return DropTarget{Kind: DropFolder, ID: d.TargetID}
		}
		if it, err := s.board.Item(d.TargetID); err == nil {
			switch it.Type {
			case TypeRoom:
				return DropTarget{Kind: DropRoomPortal, ID: d.TargetID}
			case TypeProject:
				return DropTarget{Kind: DropArea, ID: d.TargetID}
			}
		}
		return DropTarget{Kind: DropNone}
	}

	if d.Screen != nil && (d.Zone == "" || d.Zone == ZoneCanvas) {
		return DropTarget{Kind: DropCanvas, Point: s.ToWorld(*d.Screen)}
	}
	return DropTarget{Kind: DropNone}
}

// Drop commits a completed drag. It returns the classified target; a
// DropNone target performs no mutation.
func (s *Session) Drop(ev DropEvent) (DropTarget, error) {
	target := s.Classify(ev.Target)
	if target.ID != "" && target.ID == ev.DraggedID {
		return DropTarget{Kind: DropNone}, nil
	}

	var err error
	switch target.Kind {
	case DropFolder:
		err = s.board.MoveToFolder(ev.DraggedID, target.ID)
	case DropRoomPortal:
		err = s.board.MoveToRoom(ev.DraggedID, target.ID)
	case DropArea:
		err = s.board.MoveToArea(ev.DraggedID, target.ID)
	case DropArchive:
		err = s.board.SetArchived(ev.DraggedID)
	case DropCanvas:
		err = s.board.SetPosition(ev.DraggedID, target.Point, s.RoomID())
	}
	return target, err
}
