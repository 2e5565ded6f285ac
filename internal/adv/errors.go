package adv

import "errors"

var (
	ErrShortFrame      = errors.New("adv: frame shorter than 25 bytes")
	ErrNotBeaconShaped = errors.New("adv: frame does not carry the beacon type/length header")
	ErrPacketTooLong   = errors.New("adv: packet exceeds 31 bytes")
	ErrMalformedPacket = errors.New("adv: malformed AD structure")
)
