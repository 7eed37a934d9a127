package model

import "fmt"

// InfluenceChannel is the sensor channel a special block feeds. The set is
// closed; genotype maps each channel to a fixed effect type.
type InfluenceChannel uint8

const (
	InfluenceNone InfluenceChannel = iota
	InfluenceLight
	InfluenceContact
	InfluenceHeight
	InfluenceVelocity
	InfluenceProximity
	InfluenceRhythm
)

// InfluenceChannels lists every real channel in enum order.
var InfluenceChannels = []InfluenceChannel{
	InfluenceLight,
	InfluenceContact,
	InfluenceHeight,
	InfluenceVelocity,
	InfluenceProximity,
	InfluenceRhythm,
}

var influenceNames = map[InfluenceChannel]string{
	InfluenceNone:      "none",
	InfluenceLight:     "light",
	InfluenceContact:   "contact",
	InfluenceHeight:    "height",
	InfluenceVelocity:  "velocity",
	InfluenceProximity: "proximity",
	InfluenceRhythm:    "rhythm",
}

func (c InfluenceChannel) String() string {
	if name, ok := influenceNames[c]; ok {
		return name
	}
	return fmt.Sprintf("influence(%d)", uint8(c))
}

func ParseInfluenceChannel(name string) (InfluenceChannel, error) {
	for ch, n := range influenceNames {
		if n == name {
			return ch, nil
		}
	}
	return InfluenceNone, fmt.Errorf("unknown influence channel: %s", name)
}

// specialThreshold is the lowest special code that maps to a channel.
const specialThreshold = 192

// InfluenceForCode maps a gene's special code onto a channel.
func InfluenceForCode(code uint8) InfluenceChannel {
	if code < specialThreshold {
		return InfluenceNone
	}
	return InfluenceChannels[int(code-specialThreshold)%len(InfluenceChannels)]
}
