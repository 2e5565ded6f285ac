package adv

// MaxPacketLen is the maximum length of a legacy advertising or scan response
// payload.
const MaxPacketLen = 31

// AD types used by the node.
const (
	TypeFlags            = 0x01
	TypeSomeUUID16       = 0x02
	TypeAllUUID16        = 0x03
	TypeAllUUID128       = 0x07
	TypeShortName        = 0x08
	TypeCompleteName     = 0x09
	TypeTxPower          = 0x0A
	TypeManufacturerData = 0xFF
)

// Advertising flags.
const (
	FlagLimitedDisc = 0x01
	FlagGeneralDisc = 0x02
	FlagLEOnly      = 0x04

	// FlagsGeneralDiscLEOnly is what the node advertises. FlagGeneralDisc on
	// its own is not picked up by the scanners in the field.
	FlagsGeneralDiscLEOnly = FlagGeneralDisc | FlagLEOnly
)

// Manufacturer-specific frame layout:
// CompanyID(2, LE) | BeaconType(1) | BeaconDataLen(1) | Payload(21)
const (
	FrameLen      = 25
	PayloadOffset = 4
	PayloadLen    = 21

	BeaconType    = 0x02
	BeaconDataLen = 0x15

	AppleCompanyID = 0x004C

	// Filler occupies payload bytes the caller did not supply.
	Filler = '-'
)

// Interval values are in 0.625 ms radio ticks.
const (
	TickMicros      = 625
	DefaultInterval = 100
)
