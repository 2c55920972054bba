package bgp

// errorCategory is one NOTIFICATION error code with its subcode texts.
type errorCategory struct {
	name     string
	subcodes map[uint8]string
}

// errorTaxonomy is the static NOTIFICATION code/subcode table from RFC 4271
// and RFC 4486. Built once, read-only.
var errorTaxonomy = map[uint8]errorCategory{
	1: {
		name: "Message Header Error",
		subcodes: map[uint8]string{
			1: "Connection Not Synchronized",
			2: "Bad Message Length",
			3: "Bad Message Type",
		},
	},
	2: {
		name: "OPEN Message Error",
		subcodes: map[uint8]string{
			1: "Unsupported Version Number",
			2: "Bad Peer AS",
			3: "Bad BGP Identifier",
			4: "Unsupported Optional Parameter",
			5: "Authentication Failure",
			6: "Unacceptable Hold Time",
			7: "Unsupported Capability",
		},
	},
	3: {
		name: "UPDATE Message Error",
		subcodes: map[uint8]string{
			1:  "Malformed Attribute List",
			2:  "Unrecognized Well-known Attribute",
			3:  "Missing Well-known Attribute",
			4:  "Attribute Flags Error",
			5:  "Attribute Length Error",
			6:  "Invalid ORIGIN Attribute",
			7:  "AS Routing Loop",
			8:  "Invalid NEXT_HOP Attribute",
			9:  "Optional Attribute Error",
			10: "Invalid Network Field",
			11: "Malformed AS_PATH",
		},
	},
	4: {name: "Hold Timer Expired"},
	5: {name: "Finite State Machine Error"},
	6: {
		name: "Cease",
		subcodes: map[uint8]string{
			1: "Maximum Number of Prefixes Reached",
			2: "Administrative Shutdown",
			3: "Peer De-configured",
			4: "Administrative Reset",
			5: "Connection Rejected",
			6: "Other Configuration Change",
			7: "Connection Collision Resolution",
			8: "Out of Resources",
		},
	},
}

// Describe resolves a NOTIFICATION code/subcode pair to its category name
// and subcode text. Absent codes and subcodes resolve to "unknown"; Describe
// never fails.
func Describe(code, subcode uint8) (category, text string) {
	cat, ok := errorTaxonomy[code]
	if !ok {
		return "unknown", "unknown"
	}
	txt, ok := cat.subcodes[subcode]
	if !ok {
		return cat.name, "unknown"
	}
	return cat.name, txt
}
