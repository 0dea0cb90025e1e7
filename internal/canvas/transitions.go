package canvas

import (
	"github.com/vonshlovens/roomboard/internal/geom"
)

// scope is a container level: at most one of folder and room is set.
type scope struct {
	folder string
	room   string
}

func (s scope) container() string {
	if s.folder != "" {
		return s.folder
	}
	return s.room
}

// place moves entity id into s. Items are activated per the filing rules;
// folders take s.folder as their parent. It validates before it mutates.
// Callers hold b.mu.
func (b *Board) place(op, id string, s scope, pos *geom.Point) error {
	if f, ok := b.folders[id]; ok {
		if b.wouldCycle(id, s.container()) {
			return opErr(op, id, ErrCycle)
		}
		f.ParentID = s.folder
		f.RoomID = s.room
		if pos != nil {
			f.Position = *pos
		}
		b.touchFolder(f)
		return nil
	}

	it, ok := b.items[id]
	if !ok {
		return opErr(op, id, notFound("entity", id))
	}
	status, ok := fileStatus(it.Status)
	if !ok {
		return opErr(op, id, ErrInvalidTransition)
	}
	if b.wouldCycle(id, s.container()) {
		return opErr(op, id, ErrCycle)
	}
	it.FolderID = s.folder
	it.RoomID = s.room
	it.Status = status
	if pos != nil {
		it.Position = *pos
	}
	b.touchItem(it)
	return nil
}

// MoveToFolder files an item or folder into folderID. Items are activated.
// Moving a folder into one of its own descendants fails with ErrCycle.
func (b *Board) MoveToFolder(id, folderID string) error {
	const op = "move_to_folder"
	return b.write(ChangeMove, op, func() ([]string, error) {
		if _, ok := b.folders[folderID]; !ok {
			return nil, opErr(op, id, notFound("folder", folderID))
		}
		if err := b.place(op, id, scope{folder: folderID}, nil); err != nil {
			return nil, err
		}
		return []string{id}, nil
	})
}

// MoveToRoom puts an item or folder directly inside roomID ("" is the root
// canvas). Moving a room into itself or one of its descendants fails with
// ErrCycle.
func (b *Board) MoveToRoom(id, roomID string) error {
	const op = "move_to_room"
	return b.write(ChangeMove, op, func() ([]string, error) {
		if roomID != "" {
			if _, err := b.room(roomID); err != nil {
				return nil, opErr(op, id, err)
			}
		}
		if err := b.place(op, id, scope{room: roomID}, nil); err != nil {
			return nil, err
		}
		return []string{id}, nil
	})
}

// MoveToArea drops an entity onto a project area. The entity is centred on
// the area, kept inside the area box, and placed at the area's own container
// level so that derived membership holds.
func (b *Board) MoveToArea(id, areaID string) error {
	const op = "move_to_area"
	return b.write(ChangeMove, op, func() ([]string, error) {
		area, err := b.area(areaID)
		if err != nil {
			return nil, opErr(op, id, err)
		}
		if id == areaID {
			return nil, opErr(op, id, ErrCycle)
		}

		var footprint geom.Size
		switch {
		case b.items[id] != nil:
			footprint = b.items[id].nominalFootprint()
		case b.folders[id] != nil:
			footprint = b.folders[id].Footprint()
		default:
			return nil, opErr(op, id, notFound("entity", id))
		}

		box := area.areaBox()
		pos := box.Clamp(box.Center().Sub(footprint.Half()))

		s := scope{folder: area.FolderID, room: area.RoomID}
		if err := b.place(op, id, s, &pos); err != nil {
			return nil, err
		}
		return []string{id}, nil
	})
}

// MoveOut lifts an entity from currentRoomID into that room's parent. The
// entity must sit directly in currentRoomID.
func (b *Board) MoveOut(id, currentRoomID string) error {
	const op = "move_out"
	return b.write(ChangeMove, op, func() ([]string, error) {
		if currentRoomID == "" {
			return nil, opErr(op, id, ErrOutOfScope)
		}
		current, err := b.room(currentRoomID)
		if err != nil {
			return nil, opErr(op, id, err)
		}

		var in string
		switch {
		case b.items[id] != nil:
			in = b.items[id].RoomID
		case b.folders[id] != nil:
			in = b.folders[id].RoomID
		default:
			return nil, opErr(op, id, notFound("entity", id))
		}
		if in != currentRoomID {
			return nil, opErr(op, id, ErrOutOfScope)
		}

		if err := b.place(op, id, scope{room: current.RoomID}, nil); err != nil {
			return nil, err
		}
		return []string{id}, nil
	})
}

// SetPosition drops an entity on free canvas at a world point inside
// roomID ("" is the root canvas), clearing any folder. Status is left as is.
func (b *Board) SetPosition(id string, p geom.Point, roomID string) error {
	const op = "set_position"
	return b.write(ChangeMove, op, func() ([]string, error) {
		if roomID != "" {
			if _, err := b.room(roomID); err != nil {
				return nil, opErr(op, id, err)
			}
		}
		if b.wouldCycle(id, roomID) {
			return nil, opErr(op, id, ErrCycle)
		}

		if f, ok := b.folders[id]; ok {
			f.Position = p
			f.ParentID = ""
			f.RoomID = roomID
			b.touchFolder(f)
			return []string{id}, nil
		}
		it, ok := b.items[id]
		if !ok {
			return nil, opErr(op, id, notFound("entity", id))
		}
		it.Position = p
		it.FolderID = ""
		it.RoomID = roomID
		b.touchItem(it)
		return []string{id}, nil
	})
}
