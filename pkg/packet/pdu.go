// Package packet defines the proxy PDU types and the one-byte SAR segment header.
package packet

import (
	"fmt"
	"strconv"
)

// PduType tags the logical packet category carried in the low 6 bits of a
// segment header.
type PduType uint8

const (
	PduNetwork            PduType = 0x00
	PduMeshBeacon         PduType = 0x01
	PduProxyConfiguration PduType = 0x02
	PduProvisioning       PduType = 0x03
)

// MaxPduType is the largest value representable in the 6-bit type field.
const MaxPduType PduType = 0x3F

var pduTypeNames = map[PduType]string{
	PduNetwork:            "NetworkPdu",
	PduMeshBeacon:         "MeshBeacon",
	PduProxyConfiguration: "ProxyConfiguration",
	PduProvisioning:       "ProvisioningPdu",
}

// Defined reports whether t is one of the assigned PDU types.
func (t PduType) Defined() bool {
	_, ok := pduTypeNames[t]
	return ok
}

func (t PduType) String() string {
	if name, ok := pduTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PduType(0x%02x)", uint8(t))
}

// ParsePduType accepts either a PDU type name (case sensitive, as printed by
// String) or a decimal value in the 6-bit range.
func ParsePduType(s string) (PduType, error) {
	for t, name := range pduTypeNames {
		if name == s {
			return t, nil
		}
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid PDU type %q", s)
	}
	if v > uint64(MaxPduType) {
		return 0, fmt.Errorf("PDU type %d exceeds 6-bit range", v)
	}
	return PduType(v), nil
}

// SarFlag is the 2-bit fragmentation role of a segment.
type SarFlag uint8

const (
	SarComplete     SarFlag = 0b00
	SarFirst        SarFlag = 0b01
	SarContinuation SarFlag = 0b10
	SarLast         SarFlag = 0b11
)

func (f SarFlag) String() string {
	switch f {
	case SarComplete:
		return "Complete"
	case SarFirst:
		return "First"
	case SarContinuation:
		return "Continuation"
	case SarLast:
		return "Last"
	default:
		return fmt.Sprintf("SarFlag(%d)", uint8(f))
	}
}
