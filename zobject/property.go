package zobject

import (
	"encoding/binary"

	"zed/zcore"
)

// Property is one entry of an object's property table. DataAddress is 0 when
// the property wasn't present on the object and Data holds the global default.
type Property struct {
	Id          uint8
	Length      uint8
	Data        []uint8
	Address     uint32
	DataAddress uint32
}

func (p *Property) Word() uint16 {
	// get_prop on a size 1 property returns the byte zero-extended; anything
	// longer returns the first two bytes as a word
	if p.Length == 1 {
		return uint16(p.Data[0])
	}
	return binary.BigEndian.Uint16(p.Data[0:2])
}

// GetPropertyLength works back from the address of the first data byte to the
// size byte before it. Address 0 returns 0, a special case some story files
// rely on after a failed get_prop_addr.
func GetPropertyLength(core *zcore.Core, addr uint32) uint16 {
	if addr == 0 {
		return 0
	}

	sizeByte := core.ReadByte(addr - 1)
	return uint16(sizeByte>>5) + 1
}

// propertiesStart skips the short name at the front of the property table
func (o *Object) propertiesStart(core *zcore.Core) uint32 {
	nameLength := core.ReadByte(uint32(o.PropertyPointer))
	return uint32(o.PropertyPointer) + 1 + uint32(nameLength)*2
}

func (o *Object) GetProperty(propertyId uint8, core *zcore.Core) Property {
	currentPtr := o.propertiesStart(core)

	// Properties are stored in descending order of number, terminated by a
	// zero size byte
	for core.ReadByte(currentPtr) != 0 {
		property := getPropertyByAddress(currentPtr, core)

		if property.Id == propertyId {
			return property
		}
		if property.Id < propertyId {
			break
		}

		currentPtr = property.DataAddress + uint32(property.Length)
	}

	// Not present on the object, fall back to the global default
	defaultAddress := uint32(core.ObjectTableBase) + 2*uint32(propertyId-1)
	return Property{
		Id:   propertyId,
		Data: core.ReadSlice(defaultAddress, defaultAddress+2),
	}
}

func (o *Object) SetProperty(propertyId uint8, value uint16, core *zcore.Core) {
	currentPtr := o.propertiesStart(core)

	for core.ReadByte(currentPtr) != 0 {
		property := getPropertyByAddress(currentPtr, core)

		if property.Id == propertyId {
			switch property.Length {
			case 1:
				core.WriteByte(property.DataAddress, uint8(value))
			case 2:
				core.WriteHalfWord(property.DataAddress, value)
			default:
				zcore.Raise(zcore.FaultPropSize, "put_prop on property %d of object %d with size %d", propertyId, o.Id, property.Length)
			}
			return
		}

		currentPtr = property.DataAddress + uint32(property.Length)
	}

	zcore.Raise(zcore.FaultNoProp, "put_prop on missing property %d of object %d", propertyId, o.Id)
}

func (o *Object) GetNextProperty(propertyId uint8, core *zcore.Core) uint8 {
	if propertyId == 0 { // Special case, the first (highest numbered) property
		firstPtr := o.propertiesStart(core)
		if core.ReadByte(firstPtr) == 0 {
			return 0
		}
		return getPropertyByAddress(firstPtr, core).Id
	}

	property := o.GetProperty(propertyId, core)
	if property.DataAddress == 0 {
		zcore.Raise(zcore.FaultNoProp, "get_next_prop on missing property %d of object %d", propertyId, o.Id)
	}

	nextPtr := property.DataAddress + uint32(property.Length)
	if core.ReadByte(nextPtr) == 0 {
		return 0
	}
	return getPropertyByAddress(nextPtr, core).Id
}

// Size byte layout on v3: top 3 bits are length-1, low 5 bits the number
func getPropertyByAddress(propertyAddr uint32, core *zcore.Core) Property {
	sizeByte := core.ReadByte(propertyAddr)
	length := (sizeByte >> 5) + 1
	id := sizeByte & 0b1_1111
	dataAddress := propertyAddr + 1

	return Property{
		Id:          id,
		Length:      length,
		Data:        core.ReadSlice(dataAddress, dataAddress+uint32(length)),
		Address:     propertyAddr,
		DataAddress: dataAddress,
	}
}
