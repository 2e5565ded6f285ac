package adv

import (
	"bytes"
	"errors"
	"testing"
)

func TestPacket_FreePayloadFits(t *testing.T) {
	f := FreePayload(AppleCompanyID, []byte("HELLO"))
	p := Packet(nil).
		AppendFlags(FlagsGeneralDiscLEOnly).
		AppendManufacturerData(f.Bytes())

	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if p.Len() != 3+2+FrameLen {
		t.Fatalf("Len() = %d, want %d", p.Len(), 3+2+FrameLen)
	}
	flags, ok := p.Flags()
	if !ok || flags != 0x06 {
		t.Errorf("Flags() = %02X, %v; want 06, true", flags, ok)
	}
	if !bytes.Equal(p.ManufacturerData(), f.Bytes()) {
		t.Errorf("ManufacturerData() = % X", p.ManufacturerData())
	}
}

func TestPacket_NameDoesNotFitWithFrame(t *testing.T) {
	p := Packet(nil).
		AppendFlags(FlagsGeneralDiscLEOnly).
		AppendManufacturerData(NewFrame(AppleCompanyID).Bytes()).
		AppendCompleteName("Emisora01")

	if err := p.Validate(); !errors.Is(err, ErrPacketTooLong) {
		t.Fatalf("Validate() = %v, want ErrPacketTooLong", err)
	}
}

func TestPacket_Fields(t *testing.T) {
	p := Packet(nil).
		AppendCompleteName("node").
		AppendTxPower(-12).
		AppendUUID16(0x181A)

	fs, err := p.Fields()
	if err != nil {
		t.Fatalf("Fields() error = %v", err)
	}
	if len(fs) != 3 {
		t.Fatalf("len(Fields()) = %d, want 3", len(fs))
	}
	if p.LocalName() != "node" {
		t.Errorf("LocalName() = %q, want node", p.LocalName())
	}
	if got := p.Field(TypeTxPower); len(got) != 1 || int8(got[0]) != -12 {
		t.Errorf("tx power field = % X", got)
	}
	if got := p.Field(TypeAllUUID16); !bytes.Equal(got, []byte{0x1A, 0x18}) {
		t.Errorf("uuid16 field = % X, want 1A 18", got)
	}
	if p.Count(TypeManufacturerData) != 0 {
		t.Errorf("Count(manufacturer) = %d, want 0", p.Count(TypeManufacturerData))
	}
}

func TestPacket_Malformed(t *testing.T) {
	p := Packet{0x05, TypeCompleteName, 'a'}
	if _, err := p.Fields(); !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("Fields() error = %v, want ErrMalformedPacket", err)
	}
}

func TestPacket_ZeroPaddingStops(t *testing.T) {
	var buf [MaxPacketLen]byte
	copy(buf[:], Packet(nil).AppendFlags(FlagsGeneralDiscLEOnly))
	fs, err := Packet(buf[:]).Fields()
	if err != nil || len(fs) != 1 {
		t.Fatalf("Fields() = %v, %v; want one field", fs, err)
	}
}
