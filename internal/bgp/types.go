package bgp

// BGP path attribute type codes.
const (
	AttrTypeOrigin          uint8 = 1
	AttrTypeASPath          uint8 = 2
	AttrTypeNextHop         uint8 = 3
	AttrTypeMED             uint8 = 4
	AttrTypeLocalPref       uint8 = 5
	AttrTypeAtomicAggregate uint8 = 6
	AttrTypeAggregator      uint8 = 7
	AttrTypeCommunity       uint8 = 8
)

// Path attribute flag bits.
const (
	AttrFlagOptional   uint8 = 0x80
	AttrFlagTransitive uint8 = 0x40
	AttrFlagExtLen     uint8 = 0x10
)

// AS_PATH segment types.
const (
	ASPathSegmentSet      uint8 = 1
	ASPathSegmentSequence uint8 = 2
)

// Origin codes.
const (
	OriginIGP        uint8 = 0
	OriginEGP        uint8 = 1
	OriginIncomplete uint8 = 2
)

// OriginValues maps origin codes to their conventional names.
var OriginValues = map[uint8]string{
	OriginIGP:        "IGP",
	OriginEGP:        "EGP",
	OriginIncomplete: "INCOMPLETE",
}

// OriginCode maps an origin token from a dump record to its wire code.
// Anything unrecognized (including "INCOMPLETE") maps to 2.
func OriginCode(token string) uint8 {
	switch token {
	case "IGP":
		return OriginIGP
	case "EGP":
		return OriginEGP
	default:
		return OriginIncomplete
	}
}

// BGP message types.
const (
	MsgTypeUpdate uint8 = 2
)

// RouteEvent is one advertised or received route update as handed to the
// journal and export sinks. Raw carries the wire-format UPDATE when one was
// actually sent or received (empty in dry-run).
type RouteEvent struct {
	Direction string // "sent", "would-send" or "received"
	Prefixes  []string
	Withdrawn []string
	Attrs     Attributes
	Raw       []byte
}

// BGP message header size: marker(16) + length(2) + type(1) = 19
const HeaderSize = 19
