package xinput

import (
	"fmt"
	"strings"
)

// DeviceType identifies the kind of device a virtual controller reports.
type DeviceType uint8

const (
	DeviceTypeGamepad DeviceType = 0x01
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeGamepad:
		return "gamepad"
	default:
		return fmt.Sprintf("type(0x%02x)", uint8(t))
	}
}

// DeviceSubType refines DeviceType.
type DeviceSubType uint8

const (
	DeviceSubTypeUnknown     DeviceSubType = 0x00
	DeviceSubTypeGamepad     DeviceSubType = 0x01
	DeviceSubTypeWheel       DeviceSubType = 0x02
	DeviceSubTypeArcadeStick DeviceSubType = 0x03
	DeviceSubTypeFlightStick DeviceSubType = 0x04
	DeviceSubTypeDancePad    DeviceSubType = 0x05
	DeviceSubTypeGuitar      DeviceSubType = 0x06
	DeviceSubTypeGuitarAlt   DeviceSubType = 0x07
	DeviceSubTypeDrumKit     DeviceSubType = 0x08
	DeviceSubTypeGuitarBass  DeviceSubType = 0x0B
	DeviceSubTypeArcadePad   DeviceSubType = 0x13
)

var subTypeNames = map[DeviceSubType]string{
	DeviceSubTypeUnknown:     "unknown",
	DeviceSubTypeGamepad:     "gamepad",
	DeviceSubTypeWheel:       "wheel",
	DeviceSubTypeArcadeStick: "arcade-stick",
	DeviceSubTypeFlightStick: "flight-stick",
	DeviceSubTypeDancePad:    "dance-pad",
	DeviceSubTypeGuitar:      "guitar",
	DeviceSubTypeGuitarAlt:   "guitar-alt",
	DeviceSubTypeDrumKit:     "drum-kit",
	DeviceSubTypeGuitarBass:  "guitar-bass",
	DeviceSubTypeArcadePad:   "arcade-pad",
}

func (t DeviceSubType) String() string {
	if name, ok := subTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("subtype(0x%02x)", uint8(t))
}

// DeviceFeatures is a set of optional capabilities of the device.
type DeviceFeatures uint16

const (
	FeatureForceFeedback DeviceFeatures = 0x0001
	FeatureWireless      DeviceFeatures = 0x0002
	FeatureVoice         DeviceFeatures = 0x0004
	FeaturePluginModules DeviceFeatures = 0x0008
	FeatureNoNavigation  DeviceFeatures = 0x0010
)

func (f DeviceFeatures) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, e := range []struct {
		flag DeviceFeatures
		name string
	}{
		{FeatureForceFeedback, "ffb"},
		{FeatureWireless, "wireless"},
		{FeatureVoice, "voice"},
		{FeaturePluginModules, "plugin-modules"},
		{FeatureNoNavigation, "no-navigation"},
	} {
		if f&e.flag != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, "|")
}

// Buttons is the digital button mask of a gamepad.
type Buttons uint16

const (
	ButtonDPadUp        Buttons = 0x0001
	ButtonDPadDown      Buttons = 0x0002
	ButtonDPadLeft      Buttons = 0x0004
	ButtonDPadRight     Buttons = 0x0008
	ButtonStart         Buttons = 0x0010
	ButtonBack          Buttons = 0x0020
	ButtonLeftThumb     Buttons = 0x0040
	ButtonRightThumb    Buttons = 0x0080
	ButtonLeftShoulder  Buttons = 0x0100
	ButtonRightShoulder Buttons = 0x0200
	ButtonGuide         Buttons = 0x0400
	ButtonA             Buttons = 0x1000
	ButtonB             Buttons = 0x2000
	ButtonX             Buttons = 0x4000
	ButtonY             Buttons = 0x8000
)

// ButtonNames maps the short script-facing name of every button to its bit.
var ButtonNames = map[string]Buttons{
	"DPAD_UP":        ButtonDPadUp,
	"DPAD_DOWN":      ButtonDPadDown,
	"DPAD_LEFT":      ButtonDPadLeft,
	"DPAD_RIGHT":     ButtonDPadRight,
	"START":          ButtonStart,
	"BACK":           ButtonBack,
	"LEFT_THUMB":     ButtonLeftThumb,
	"RIGHT_THUMB":    ButtonRightThumb,
	"LEFT_SHOULDER":  ButtonLeftShoulder,
	"RIGHT_SHOULDER": ButtonRightShoulder,
	"GUIDE":          ButtonGuide,
	"A":              ButtonA,
	"B":              ButtonB,
	"X":              ButtonX,
	"Y":              ButtonY,
}

// Has reports whether every bit of mask is pressed.
func (b Buttons) Has(mask Buttons) bool { return b&mask == mask }

// Set returns b with mask pressed.
func (b Buttons) Set(mask Buttons) Buttons { return b | mask }

// Clear returns b with mask released.
func (b Buttons) Clear(mask Buttons) Buttons { return b &^ mask }

func (b Buttons) String() string {
	return fmt.Sprintf("0x%04x", uint16(b))
}

// Capabilities is the state a virtual controller reports at one point in
// time. It is a plain value: copy it freely, never share it across
// goroutines. Ranges are not enforced here; triggers and motors are expected
// in [0,1], thumbsticks in [-1,1].
type Capabilities struct {
	DeviceType     DeviceType     `cbor:"1,keyasint" json:"device_type"`
	DeviceSubType  DeviceSubType  `cbor:"2,keyasint" json:"device_sub_type"`
	DeviceFeatures DeviceFeatures `cbor:"3,keyasint" json:"device_features"`
	Buttons        Buttons        `cbor:"4,keyasint" json:"buttons"`
	LeftTrigger    float32        `cbor:"5,keyasint" json:"left_trigger"`
	RightTrigger   float32        `cbor:"6,keyasint" json:"right_trigger"`
	ThumbLX        float32        `cbor:"7,keyasint" json:"thumb_lx"`
	ThumbLY        float32        `cbor:"8,keyasint" json:"thumb_ly"`
	ThumbRX        float32        `cbor:"9,keyasint" json:"thumb_rx"`
	ThumbRY        float32        `cbor:"10,keyasint" json:"thumb_ry"`
	LeftMotor      float32        `cbor:"11,keyasint" json:"left_motor"`
	RightMotor     float32        `cbor:"12,keyasint" json:"right_motor"`
}

// Default returns a gamepad snapshot with every input released.
func Default() Capabilities {
	return Capabilities{
		DeviceType:    DeviceTypeGamepad,
		DeviceSubType: DeviceSubTypeGamepad,
	}
}

// NewCapabilities builds a fully parameterized snapshot.
func NewCapabilities(
	deviceType DeviceType,
	deviceSubType DeviceSubType,
	deviceFeatures DeviceFeatures,
	buttons Buttons,
	leftTrigger, rightTrigger float32,
	thumbLX, thumbLY, thumbRX, thumbRY float32,
	leftMotor, rightMotor float32,
) Capabilities {
	return Capabilities{
		DeviceType:     deviceType,
		DeviceSubType:  deviceSubType,
		DeviceFeatures: deviceFeatures,
		Buttons:        buttons,
		LeftTrigger:    leftTrigger,
		RightTrigger:   rightTrigger,
		ThumbLX:        thumbLX,
		ThumbLY:        thumbLY,
		ThumbRX:        thumbRX,
		ThumbRY:        thumbRY,
		LeftMotor:      leftMotor,
		RightMotor:     rightMotor,
	}
}

func (c Capabilities) String() string {
	return fmt.Sprintf("%s/%s buttons=%s lt=%.2f rt=%.2f l=(%.2f,%.2f) r=(%.2f,%.2f) rumble=(%.2f,%.2f)",
		c.DeviceType, c.DeviceSubType, c.Buttons,
		c.LeftTrigger, c.RightTrigger,
		c.ThumbLX, c.ThumbLY, c.ThumbRX, c.ThumbRY,
		c.LeftMotor, c.RightMotor)
}
