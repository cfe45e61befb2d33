package zobject

import (
	"zed/zcore"
	"zed/zstring"
)

const (
	defaultsTableWords = 31
	entrySize          = 9
	maxObjects         = 255
)

// Object is a decoded view of one 9 byte object table entry. The link fields
// are lookup relations into the table, not ownership edges; writes go back
// through the Set* methods so the view and memory stay in step.
type Object struct {
	BaseAddress     uint32
	Id              uint16
	Name            string
	Attributes      uint32
	Parent          uint16
	Sibling         uint16
	Child           uint16
	PropertyPointer uint16
}

func GetObject(objId uint16, core *zcore.Core) Object {
	if objId == 0 {
		zcore.Raise(zcore.FaultNullObject, "attempt to load object 0")
	}
	if objId > maxObjects {
		zcore.Raise(zcore.FaultOutOfBounds, "object id %d out of range, max is %d", objId, maxObjects)
	}

	objectBase := uint32(core.ObjectTableBase) + defaultsTableWords*2 + uint32(objId-1)*entrySize
	propertyPtr := core.ReadHalfWord(objectBase + 7)
	nameLength := core.ReadByte(uint32(propertyPtr))

	name := ""
	if nameLength > 0 {
		name, _ = zstring.Decode(core, uint32(propertyPtr)+1)
	}

	return Object{
		Id:              objId,
		Name:            name,
		Attributes:      uint32(core.ReadHalfWord(objectBase))<<16 | uint32(core.ReadHalfWord(objectBase+2)),
		Parent:          uint16(core.ReadByte(objectBase + 4)),
		Sibling:         uint16(core.ReadByte(objectBase + 5)),
		Child:           uint16(core.ReadByte(objectBase + 6)),
		PropertyPointer: propertyPtr,
		BaseAddress:     objectBase,
	}
}

// CountObjects estimates the number of objects by scanning entries until the
// next one would run into the lowest property table seen. The table carries no
// explicit count so every interpreter uses this heuristic.
func CountObjects(core *zcore.Core) uint16 {
	firstEntry := uint32(core.ObjectTableBase) + defaultsTableWords*2
	lowestPropertyTable := core.MemoryLength()

	count := uint16(0)
	for count < maxObjects {
		entryBase := firstEntry + uint32(count)*entrySize
		if entryBase+entrySize > lowestPropertyTable {
			break
		}

		propertyPtr := uint32(core.ReadHalfWord(entryBase + 7))
		if propertyPtr > 0 && propertyPtr < lowestPropertyTable {
			lowestPropertyTable = propertyPtr
		}

		count++
	}

	return count
}

func (o *Object) TestAttribute(attribute uint16) bool {
	mask := o.attributeMask(attribute)
	return o.Attributes&mask == mask
}

func (o *Object) SetAttribute(attribute uint16, core *zcore.Core) {
	o.Attributes |= o.attributeMask(attribute)
	o.writeAttributes(core)
}

func (o *Object) ClearAttribute(attribute uint16, core *zcore.Core) {
	o.Attributes &^= o.attributeMask(attribute)
	o.writeAttributes(core)
}

// Attribute 0 is the most significant bit of the first byte
func (o *Object) attributeMask(attribute uint16) uint32 {
	if attribute > 31 {
		zcore.Raise(zcore.FaultOutOfBounds, "attribute %d out of range on object %d", attribute, o.Id)
	}
	return uint32(1) << (31 - attribute)
}

func (o *Object) writeAttributes(core *zcore.Core) {
	core.WriteHalfWord(o.BaseAddress, uint16(o.Attributes>>16))
	core.WriteHalfWord(o.BaseAddress+2, uint16(o.Attributes))
}

func (o *Object) SetParent(parent uint16, core *zcore.Core) {
	core.WriteByte(o.BaseAddress+4, uint8(parent))
	o.Parent = parent
}

func (o *Object) SetSibling(sibling uint16, core *zcore.Core) {
	core.WriteByte(o.BaseAddress+5, uint8(sibling))
	o.Sibling = sibling
}

func (o *Object) SetChild(child uint16, core *zcore.Core) {
	core.WriteByte(o.BaseAddress+6, uint8(child))
	o.Child = child
}
