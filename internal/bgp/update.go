package bgp

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Received is a decoded inbound UPDATE: announced and withdrawn prefixes
// plus the shared attribute set.
type Received struct {
	Prefixes  []string
	Withdrawn []string
	Attrs     Attributes
}

// MarshalUpdate builds a complete UPDATE message (including the 19-byte
// header) announcing the given prefixes with the given attributes. AS
// numbers are encoded as 2 octets; sessions negotiated by this process do
// not advertise the 4-octet AS capability.
func MarshalUpdate(attrs *Attributes, prefixes []string) ([]byte, error) {
	pathAttrs, err := marshalPathAttributes(attrs)
	if err != nil {
		return nil, err
	}

	var nlri []byte
	for _, p := range prefixes {
		b, err := marshalPrefix(p)
		if err != nil {
			return nil, err
		}
		nlri = append(nlri, b...)
	}

	bodyLen := 2 + 2 + len(pathAttrs) + len(nlri)
	totalLen := HeaderSize + bodyLen
	if totalLen > 4096 {
		return nil, fmt.Errorf("bgp: update too large (%d bytes)", totalLen)
	}

	msg := make([]byte, totalLen)
	for i := 0; i < 16; i++ {
		msg[i] = 0xFF
	}
	binary.BigEndian.PutUint16(msg[16:18], uint16(totalLen))
	msg[18] = MsgTypeUpdate

	offset := HeaderSize
	binary.BigEndian.PutUint16(msg[offset:offset+2], 0) // no withdrawn routes
	offset += 2
	binary.BigEndian.PutUint16(msg[offset:offset+2], uint16(len(pathAttrs)))
	offset += 2
	copy(msg[offset:], pathAttrs)
	offset += len(pathAttrs)
	copy(msg[offset:], nlri)

	return msg, nil
}

func marshalPathAttributes(attrs *Attributes) ([]byte, error) {
	var out []byte

	out = appendAttr(out, AttrFlagTransitive, AttrTypeOrigin, []byte{attrs.Origin})

	segments, err := splitASPath(attrs.ASPath)
	if err != nil {
		return nil, err
	}
	var pathData []byte
	for _, seg := range segments {
		pathData = append(pathData, seg.segType, uint8(len(seg.asns)))
		for _, asn := range seg.asns {
			pathData = binary.BigEndian.AppendUint16(pathData, asn)
		}
	}
	out = appendAttr(out, AttrFlagTransitive, AttrTypeASPath, pathData)

	nh := net.ParseIP(attrs.NextHop).To4()
	if nh == nil {
		return nil, fmt.Errorf("bgp: bad next hop %q", attrs.NextHop)
	}
	out = appendAttr(out, AttrFlagTransitive, AttrTypeNextHop, nh)

	if attrs.MED != nil {
		out = appendAttr(out, AttrFlagOptional, AttrTypeMED,
			binary.BigEndian.AppendUint32(nil, *attrs.MED))
	}
	if attrs.LocalPref != nil {
		out = appendAttr(out, AttrFlagTransitive, AttrTypeLocalPref,
			binary.BigEndian.AppendUint32(nil, *attrs.LocalPref))
	}
	if attrs.AtomicAggregate {
		out = appendAttr(out, AttrFlagTransitive, AttrTypeAtomicAggregate, nil)
	}
	if attrs.Aggregator != nil {
		ip := net.ParseIP(attrs.Aggregator.IP).To4()
		if ip == nil {
			return nil, fmt.Errorf("bgp: bad aggregator address %q", attrs.Aggregator.IP)
		}
		data := binary.BigEndian.AppendUint16(nil, attrs.Aggregator.AS)
		data = append(data, ip...)
		out = appendAttr(out, AttrFlagOptional|AttrFlagTransitive, AttrTypeAggregator, data)
	}
	if len(attrs.Communities) > 0 {
		var data []byte
		for _, c := range attrs.Communities {
			hi, lo, err := splitCommunity(c)
			if err != nil {
				return nil, err
			}
			data = binary.BigEndian.AppendUint16(data, hi)
			data = binary.BigEndian.AppendUint16(data, lo)
		}
		out = appendAttr(out, AttrFlagOptional|AttrFlagTransitive, AttrTypeCommunity, data)
	}

	return out, nil
}

func appendAttr(out []byte, flags, typeCode uint8, data []byte) []byte {
	if len(data) > 255 {
		out = append(out, flags|AttrFlagExtLen, typeCode)
		out = binary.BigEndian.AppendUint16(out, uint16(len(data)))
	} else {
		out = append(out, flags, typeCode, uint8(len(data)))
	}
	return append(out, data...)
}

func marshalPrefix(prefix string) ([]byte, error) {
	addr, maskStr, ok := strings.Cut(prefix, "/")
	if !ok {
		return nil, fmt.Errorf("bgp: bad prefix %q", prefix)
	}
	mask, err := strconv.Atoi(maskStr)
	if err != nil || mask < 0 || mask > 32 {
		return nil, fmt.Errorf("bgp: bad prefix length in %q", prefix)
	}
	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return nil, fmt.Errorf("bgp: bad prefix address in %q", prefix)
	}
	byteLen := (mask + 7) / 8
	out := make([]byte, 1+byteLen)
	out[0] = uint8(mask)
	copy(out[1:], ip[:byteLen])
	return out, nil
}

func splitCommunity(c string) (uint16, uint16, error) {
	asStr, valStr, ok := strings.Cut(c, ":")
	if !ok {
		return 0, 0, fmt.Errorf("bgp: bad community %q", c)
	}
	asn, err := strconv.ParseUint(asStr, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bgp: bad community %q: %w", c, err)
	}
	val, err := strconv.ParseUint(valStr, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bgp: bad community %q: %w", c, err)
	}
	return uint16(asn), uint16(val), nil
}

// ParseUpdate parses an inbound UPDATE message, including the 19-byte
// header. Non-UPDATE messages return (nil, nil). Only IPv4 unicast NLRI is
// decoded; this process never negotiates multiprotocol extensions.
func ParseUpdate(msg []byte) (*Received, error) {
	if len(msg) < HeaderSize {
		return nil, fmt.Errorf("bgp: update too short (%d bytes)", len(msg))
	}
	if msg[18] != MsgTypeUpdate {
		return nil, nil
	}

	data := msg[HeaderSize:]
	if len(data) < 4 {
		return nil, fmt.Errorf("bgp: update payload too short (%d bytes)", len(data))
	}

	offset := 0
	withdrawnLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if offset+withdrawnLen > len(data) {
		return nil, fmt.Errorf("bgp: withdrawn length %d exceeds data", withdrawnLen)
	}

	rcv := &Received{}
	var err error
	rcv.Withdrawn, err = parsePrefixes(data[offset : offset+withdrawnLen])
	if err != nil {
		return nil, fmt.Errorf("bgp: parse withdrawn: %w", err)
	}
	offset += withdrawnLen

	if offset+2 > len(data) {
		return nil, fmt.Errorf("bgp: no room for path attr length")
	}
	attrLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if offset+attrLen > len(data) {
		return nil, fmt.Errorf("bgp: path attr length %d exceeds data", attrLen)
	}

	if err := parsePathAttributes(data[offset:offset+attrLen], &rcv.Attrs); err != nil {
		return nil, fmt.Errorf("bgp: parse path attrs: %w", err)
	}
	offset += attrLen

	rcv.Prefixes, err = parsePrefixes(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("bgp: parse nlri: %w", err)
	}

	return rcv, nil
}

func parsePathAttributes(data []byte, attrs *Attributes) error {
	offset := 0
	for offset < len(data) {
		if offset+2 > len(data) {
			return fmt.Errorf("attr header truncated at offset %d", offset)
		}
		flags := data[offset]
		typeCode := data[offset+1]
		offset += 2

		var attrLen int
		if flags&AttrFlagExtLen != 0 {
			if offset+2 > len(data) {
				return fmt.Errorf("extended attr length truncated")
			}
			attrLen = int(binary.BigEndian.Uint16(data[offset : offset+2]))
			offset += 2
		} else {
			if offset+1 > len(data) {
				return fmt.Errorf("attr length truncated")
			}
			attrLen = int(data[offset])
			offset++
		}

		if offset+attrLen > len(data) {
			return fmt.Errorf("attr data truncated (type %d, need %d, have %d)",
				typeCode, attrLen, len(data)-offset)
		}
		attrData := data[offset : offset+attrLen]
		offset += attrLen

		switch typeCode {
		case AttrTypeOrigin:
			if len(attrData) == 1 {
				attrs.Origin = attrData[0]
			}
		case AttrTypeASPath:
			attrs.ASPath = parseASPath(attrData)
		case AttrTypeNextHop:
			if len(attrData) == 4 {
				attrs.NextHop = net.IP(attrData).String()
			}
		case AttrTypeMED:
			if len(attrData) == 4 {
				v := binary.BigEndian.Uint32(attrData)
				attrs.MED = &v
			}
		case AttrTypeLocalPref:
			if len(attrData) == 4 {
				v := binary.BigEndian.Uint32(attrData)
				attrs.LocalPref = &v
			}
		case AttrTypeAtomicAggregate:
			attrs.AtomicAggregate = true
		case AttrTypeAggregator:
			if len(attrData) == 6 {
				attrs.Aggregator = &Aggregator{
					AS: binary.BigEndian.Uint16(attrData[0:2]),
					IP: net.IP(attrData[2:6]).String(),
				}
			}
		case AttrTypeCommunity:
			for i := 0; i+4 <= len(attrData); i += 4 {
				hi := binary.BigEndian.Uint16(attrData[i : i+2])
				lo := binary.BigEndian.Uint16(attrData[i+2 : i+4])
				attrs.Communities = append(attrs.Communities, fmt.Sprintf("%d:%d", hi, lo))
			}
		}
	}
	return nil
}

func parseASPath(data []byte) string {
	var segments []pathSegment
	offset := 0
	for offset+2 <= len(data) {
		segType := data[offset]
		segLen := int(data[offset+1])
		offset += 2

		if offset+segLen*2 > len(data) {
			break
		}
		asns := make([]uint16, segLen)
		for i := 0; i < segLen; i++ {
			asns[i] = binary.BigEndian.Uint16(data[offset : offset+2])
			offset += 2
		}
		segments = append(segments, pathSegment{segType: segType, asns: asns})
	}
	return joinASPath(segments)
}

func parsePrefixes(data []byte) ([]string, error) {
	var prefixes []string
	offset := 0
	for offset < len(data) {
		prefixLen := int(data[offset])
		offset++
		if prefixLen > 32 {
			return prefixes, fmt.Errorf("prefix length %d out of range at offset %d", prefixLen, offset)
		}
		byteLen := (prefixLen + 7) / 8
		if offset+byteLen > len(data) {
			return prefixes, fmt.Errorf("prefix data truncated at offset %d", offset)
		}
		ipBytes := make([]byte, 4)
		copy(ipBytes, data[offset:offset+byteLen])
		offset += byteLen
		prefixes = append(prefixes, fmt.Sprintf("%s/%d", net.IP(ipBytes).String(), prefixLen))
	}
	return prefixes, nil
}
