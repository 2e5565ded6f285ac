package adv

import "encoding/binary"

// Packet crafts or parses the AD structures of an advertising PDU or scan
// response. Each structure is Length(1) | Type(1) | Data(Length-1).
type Packet []byte

// Field is a single parsed AD structure.
type Field struct {
	Type byte
	Data []byte
}

// AppendField appends one AD structure.
func (p Packet) AppendField(typ byte, b []byte) Packet {
	p = append(p, byte(len(b)+1), typ)
	return append(p, b...)
}

func (p Packet) AppendFlags(f byte) Packet {
	return p.AppendField(TypeFlags, []byte{f})
}

func (p Packet) AppendCompleteName(n string) Packet {
	return p.AppendField(TypeCompleteName, []byte(n))
}

func (p Packet) AppendTxPower(dbm int8) Packet {
	return p.AppendField(TypeTxPower, []byte{uint8(dbm)})
}

// AppendManufacturerData appends raw manufacturer data. The company ID is
// expected to be the first two bytes of b, as in Frame.
func (p Packet) AppendManufacturerData(b []byte) Packet {
	return p.AppendField(TypeManufacturerData, b)
}

// AppendUUID16 appends a complete list of 16-bit service UUIDs.
func (p Packet) AppendUUID16(ids ...uint16) Packet {
	b := make([]byte, 2*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint16(b[2*i:], id)
	}
	return p.AppendField(TypeAllUUID16, b)
}

// AppendUUID128 appends a complete list of 128-bit service UUIDs. Each UUID
// is given in canonical (big-endian) order and written little-endian.
func (p Packet) AppendUUID128(ids ...[16]byte) Packet {
	b := make([]byte, 0, 16*len(ids))
	for _, id := range ids {
		for i := 15; i >= 0; i-- {
			b = append(b, id[i])
		}
	}
	return p.AppendField(TypeAllUUID128, b)
}

// Fields splits the packet into its AD structures. A zero length byte ends
// the significant part, as in a padded 31-byte buffer.
func (p Packet) Fields() ([]Field, error) {
	var out []Field
	b := p
	for len(b) > 0 {
		l := int(b[0])
		if l == 0 {
			break
		}
		if len(b) < 1+l {
			return out, ErrMalformedPacket
		}
		out = append(out, Field{Type: b[1], Data: b[2 : 1+l]})
		b = b[1+l:]
	}
	return out, nil
}

// Field returns the data of the first structure of the given type, or nil.
func (p Packet) Field(typ byte) []byte {
	fs, _ := p.Fields()
	for _, f := range fs {
		if f.Type == typ {
			return f.Data
		}
	}
	return nil
}

// Count returns how many structures of the given type the packet holds.
func (p Packet) Count(typ byte) int {
	fs, _ := p.Fields()
	n := 0
	for _, f := range fs {
		if f.Type == typ {
			n++
		}
	}
	return n
}

func (p Packet) Flags() (byte, bool) {
	b := p.Field(TypeFlags)
	if len(b) != 1 {
		return 0, false
	}
	return b[0], true
}

func (p Packet) LocalName() string {
	if b := p.Field(TypeCompleteName); b != nil {
		return string(b)
	}
	return string(p.Field(TypeShortName))
}

func (p Packet) ManufacturerData() []byte {
	return p.Field(TypeManufacturerData)
}

// Validate reports whether the packet fits a legacy PDU.
func (p Packet) Validate() error {
	if len(p) > MaxPacketLen {
		return ErrPacketTooLong
	}
	_, err := p.Fields()
	return err
}

func (p Packet) Len() int {
	return len(p)
}
