package adv

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewFrame_Header(t *testing.T) {
	f := NewFrame(AppleCompanyID)

	want := []byte{0x4C, 0x00, 0x02, 0x15}
	if !bytes.Equal(f[:4], want) {
		t.Fatalf("header = % X, want % X", f[:4], want)
	}
	for i := PayloadOffset; i < FrameLen; i++ {
		if f[i] != Filler {
			t.Fatalf("byte %d = %02X, want filler %02X", i, f[i], Filler)
		}
	}
	if f.CompanyID() != AppleCompanyID {
		t.Errorf("CompanyID() = %04X, want %04X", f.CompanyID(), AppleCompanyID)
	}
}

func TestNewFrame_CompanyIDLittleEndian(t *testing.T) {
	f := NewFrame(0xBEEF)
	if f[0] != 0xEF || f[1] != 0xBE {
		t.Fatalf("company id bytes = %02X %02X, want EF BE", f[0], f[1])
	}
}

func TestSetPayload(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		wantCopied int
	}{
		{name: "empty", payload: nil, wantCopied: 0},
		{name: "hello", payload: []byte("HELLO"), wantCopied: 5},
		{name: "exactly 21", payload: bytes.Repeat([]byte{0xAA}, PayloadLen), wantCopied: PayloadLen},
		{name: "22 truncated", payload: bytes.Repeat([]byte{0xBB}, PayloadLen+1), wantCopied: PayloadLen},
		{name: "much longer truncated", payload: bytes.Repeat([]byte{0xCC}, 200), wantCopied: PayloadLen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFrame(AppleCompanyID)
			got := f.SetPayload(tt.payload)
			if got != tt.wantCopied {
				t.Fatalf("SetPayload() = %d, want %d", got, tt.wantCopied)
			}

			if !bytes.Equal(f[PayloadOffset:PayloadOffset+got], tt.payload[:got]) {
				t.Errorf("copied prefix = % X, want % X", f[PayloadOffset:PayloadOffset+got], tt.payload[:got])
			}
			for i := PayloadOffset + got; i < FrameLen; i++ {
				if f[i] != Filler {
					t.Errorf("byte %d = %02X, want filler", i, f[i])
				}
			}
			if !bytes.Equal(f[:PayloadOffset], []byte{0x4C, 0x00, 0x02, 0x15}) {
				t.Errorf("header modified: % X", f[:PayloadOffset])
			}
		})
	}
}

func TestSetPayload_KeepsPriorBytes(t *testing.T) {
	f := NewFrame(AppleCompanyID)
	f.SetPayload(bytes.Repeat([]byte{'x'}, PayloadLen))
	f.SetPayload([]byte("ab"))

	want := append([]byte("ab"), bytes.Repeat([]byte{'x'}, PayloadLen-2)...)
	if !bytes.Equal(f.Payload(), want) {
		t.Fatalf("payload = %q, want %q", f.Payload(), want)
	}
}

func TestFreePayload_Hello(t *testing.T) {
	f := FreePayload(AppleCompanyID, []byte("HELLO"))

	if got := string(f[4:9]); got != "HELLO" {
		t.Fatalf("bytes 4-8 = %q, want HELLO", got)
	}
	if got := f[9:]; !bytes.Equal(got, bytes.Repeat([]byte{Filler}, 16)) {
		t.Fatalf("bytes 9-24 = %q, want filler", got)
	}
	if len(f.Bytes()) != FrameLen {
		t.Fatalf("len(Bytes()) = %d, want %d", len(f.Bytes()), FrameLen)
	}
}

func TestParseFrame(t *testing.T) {
	good := FreePayload(AppleCompanyID, []byte("O3")).Bytes()

	tests := []struct {
		name    string
		in      []byte
		wantErr error
	}{
		{name: "valid", in: good},
		{name: "valid with trailing bytes", in: append(append([]byte(nil), good...), 0x00, 0x01)},
		{name: "short", in: good[:10], wantErr: ErrShortFrame},
		{name: "wrong type", in: func() []byte { b := append([]byte(nil), good...); b[2] = 0x03; return b }(), wantErr: ErrNotBeaconShaped},
		{name: "wrong length marker", in: func() []byte { b := append([]byte(nil), good...); b[3] = 0x10; return b }(), wantErr: ErrNotBeaconShaped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFrame(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseFrame() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrame() error = %v", err)
			}
			if !bytes.Equal(f[:], good) {
				t.Errorf("frame = % X, want % X", f[:], good)
			}
		})
	}
}
