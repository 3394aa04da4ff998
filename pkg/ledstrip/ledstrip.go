package ledstrip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tfp-protocol/tfp-go/pkg/ipcon"
	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// DeviceIdentifier is the device type reported by the LED Strip bricklet.
const DeviceIdentifier uint16 = 231

// Strip limits.
const (
	// ChunkSize is the number of LEDs one SetRGBValues call carries.
	ChunkSize = 16

	// MaxLEDs is the largest strip the bricklet can drive.
	MaxLEDs = 320
)

// Function IDs.
const (
	FunctionSetRGBValues                   uint8 = 1
	FunctionGetRGBValues                   uint8 = 2
	FunctionSetFrameDuration               uint8 = 3
	FunctionGetFrameDuration               uint8 = 4
	FunctionGetSupplyVoltage               uint8 = 5
	CallbackFrameRendered                  uint8 = 6
	FunctionSetClockFrequency              uint8 = 7
	FunctionGetClockFrequency              uint8 = 8
	FunctionSetChipType                    uint8 = 9
	FunctionGetChipType                    uint8 = 10
	FunctionSetChannelMapping              uint8 = 11
	FunctionGetChannelMapping              uint8 = 12
	FunctionEnableFrameRenderedCallback    uint8 = 13
	FunctionDisableFrameRenderedCallback   uint8 = 14
	FunctionIsFrameRenderedCallbackEnabled uint8 = 15
)

// ChipType selects the LED driver chip.
type ChipType uint16

const (
	ChipWS2801  ChipType = 2801
	ChipWS2811  ChipType = 2811
	ChipWS2812  ChipType = 2812
	ChipLPD8806 ChipType = 8806
	ChipAPA102  ChipType = 102
)

// String returns the chip name.
func (c ChipType) String() string {
	switch c {
	case ChipWS2801:
		return "WS2801"
	case ChipWS2811:
		return "WS2811"
	case ChipWS2812:
		return "WS2812"
	case ChipLPD8806:
		return "LPD8806"
	case ChipAPA102:
		return "APA102"
	default:
		return fmt.Sprintf("ChipType(%d)", uint16(c))
	}
}

// ParseChipType parses a chip name as printed by String.
func ParseChipType(s string) (ChipType, error) {
	for _, c := range []ChipType{ChipWS2801, ChipWS2811, ChipWS2812, ChipLPD8806, ChipAPA102} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown chip type %q", s)
}

// ChannelMapping is the order in which the chip expects color channels.
type ChannelMapping uint8

const (
	MappingRGB ChannelMapping = 6
	MappingRBG ChannelMapping = 9
	MappingBRG ChannelMapping = 33
	MappingBGR ChannelMapping = 36
	MappingGRB ChannelMapping = 18
	MappingGBR ChannelMapping = 24
)

// ErrFrameTooLong is returned by WriteFrame for frames above MaxLEDs.
var ErrFrameTooLong = errors.New("frame exceeds strip length")

// Color is one LED value.
type Color struct {
	R, G, B uint8
}

// Chunk is the color data of up to ChunkSize consecutive LEDs.
type Chunk struct {
	R, G, B [ChunkSize]uint8
}

// LEDStrip is a handle for one LED Strip bricklet.
type LEDStrip struct {
	device *ipcon.Device
}

// New binds an LED strip with the given UID to conn.
func New(conn *ipcon.Connection, uid string) (*LEDStrip, error) {
	d, err := ipcon.NewDevice(conn, uid, DeviceIdentifier)
	if err != nil {
		return nil, err
	}

	getters := []uint8{
		FunctionGetRGBValues,
		FunctionGetFrameDuration,
		FunctionGetSupplyVoltage,
		FunctionGetClockFrequency,
		FunctionGetChipType,
		FunctionGetChannelMapping,
		FunctionIsFrameRenderedCallbackEnabled,
	}
	for _, fid := range getters {
		d.DefineFunction(fid, ipcon.ResponseExpectedAlwaysTrue)
	}
	setters := []uint8{
		FunctionSetRGBValues,
		FunctionSetFrameDuration,
		FunctionSetClockFrequency,
		FunctionSetChipType,
		FunctionSetChannelMapping,
	}
	for _, fid := range setters {
		d.DefineFunction(fid, ipcon.ResponseExpectedFalse)
	}
	d.DefineFunction(FunctionEnableFrameRenderedCallback, ipcon.ResponseExpectedTrue)
	d.DefineFunction(FunctionDisableFrameRenderedCallback, ipcon.ResponseExpectedTrue)
	d.DefineFunction(CallbackFrameRendered, ipcon.ResponseExpectedAlwaysFalse)

	return &LEDStrip{device: d}, nil
}

// Device returns the underlying device handle.
func (s *LEDStrip) Device() *ipcon.Device { return s.device }

// Release unbinds the strip from its connection.
func (s *LEDStrip) Release() { s.device.Release() }

// SetRGBValues writes length LEDs starting at index. Only the first length
// entries of the chunk are used.
func (s *LEDStrip) SetRGBValues(ctx context.Context, index uint16, length uint8, c Chunk) error {
	if length > ChunkSize || int(index)+int(length) > MaxLEDs {
		return fmt.Errorf("%w: index %d length %d", ipcon.ErrInvalidParameter, index, length)
	}
	payload := wire.NewPayloadWriter().
		Uint16(index).
		Uint8(length).
		Bytes(c.R[:]).
		Bytes(c.G[:]).
		Bytes(c.B[:]).
		Payload()
	_, err := s.device.Invoke(ctx, FunctionSetRGBValues, payload)
	return err
}

// GetRGBValues reads length LEDs starting at index.
func (s *LEDStrip) GetRGBValues(ctx context.Context, index uint16, length uint8) (Chunk, error) {
	payload := wire.NewPayloadWriter().Uint16(index).Uint8(length).Payload()
	resp, err := s.device.Get(ctx, FunctionGetRGBValues, payload, 3*ChunkSize)
	if err != nil {
		return Chunk{}, err
	}
	var c Chunk
	r := wire.NewPayloadReader(resp)
	copy(c.R[:], r.Bytes(ChunkSize))
	copy(c.G[:], r.Bytes(ChunkSize))
	copy(c.B[:], r.Bytes(ChunkSize))
	return c, r.Err()
}

// WriteFrame writes colors to the strip starting at LED 0, ChunkSize LEDs
// per request. The first failing chunk aborts the frame.
func (s *LEDStrip) WriteFrame(ctx context.Context, colors []Color) error {
	if len(colors) > MaxLEDs {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLong, len(colors), MaxLEDs)
	}
	for start := 0; start < len(colors); start += ChunkSize {
		end := min(start+ChunkSize, len(colors))
		var c Chunk
		for i, col := range colors[start:end] {
			c.R[i], c.G[i], c.B[i] = col.R, col.G, col.B
		}
		if err := s.SetRGBValues(ctx, uint16(start), uint8(end-start), c); err != nil {
			return fmt.Errorf("chunk at %d: %w", start, err)
		}
	}
	return nil
}

// Fill sets the first n LEDs to c.
func (s *LEDStrip) Fill(ctx context.Context, n int, c Color) error {
	frame := make([]Color, n)
	for i := range frame {
		frame[i] = c
	}
	return s.WriteFrame(ctx, frame)
}

// SetFrameDuration sets the render period.
func (s *LEDStrip) SetFrameDuration(ctx context.Context, d time.Duration) error {
	ms := d.Milliseconds()
	if ms < 0 || ms > 0xFFFF {
		return fmt.Errorf("%w: frame duration %s", ipcon.ErrInvalidParameter, d)
	}
	_, err := s.device.Invoke(ctx, FunctionSetFrameDuration, wire.NewPayloadWriter().Uint16(uint16(ms)).Payload())
	return err
}

// FrameDuration returns the render period.
func (s *LEDStrip) FrameDuration(ctx context.Context) (time.Duration, error) {
	v, err := s.getUint16(ctx, FunctionGetFrameDuration)
	return time.Duration(v) * time.Millisecond, err
}

// SupplyVoltage returns the strip supply voltage in millivolts.
func (s *LEDStrip) SupplyVoltage(ctx context.Context) (uint16, error) {
	return s.getUint16(ctx, FunctionGetSupplyVoltage)
}

// SetClockFrequency sets the SPI clock in Hz.
func (s *LEDStrip) SetClockFrequency(ctx context.Context, hz uint32) error {
	_, err := s.device.Invoke(ctx, FunctionSetClockFrequency, wire.NewPayloadWriter().Uint32(hz).Payload())
	return err
}

// ClockFrequency returns the SPI clock in Hz.
func (s *LEDStrip) ClockFrequency(ctx context.Context) (uint32, error) {
	resp, err := s.device.Get(ctx, FunctionGetClockFrequency, nil, 4)
	if err != nil {
		return 0, err
	}
	return wire.NewPayloadReader(resp).Uint32(), nil
}

// SetChipType selects the LED driver chip.
func (s *LEDStrip) SetChipType(ctx context.Context, c ChipType) error {
	_, err := s.device.Invoke(ctx, FunctionSetChipType, wire.NewPayloadWriter().Uint16(uint16(c)).Payload())
	return err
}

// ChipType returns the configured driver chip.
func (s *LEDStrip) ChipType(ctx context.Context) (ChipType, error) {
	v, err := s.getUint16(ctx, FunctionGetChipType)
	return ChipType(v), err
}

// SetChannelMapping sets the color channel order.
func (s *LEDStrip) SetChannelMapping(ctx context.Context, m ChannelMapping) error {
	_, err := s.device.Invoke(ctx, FunctionSetChannelMapping, []byte{uint8(m)})
	return err
}

// ChannelMapping returns the color channel order.
func (s *LEDStrip) ChannelMapping(ctx context.Context) (ChannelMapping, error) {
	resp, err := s.device.Get(ctx, FunctionGetChannelMapping, nil, 1)
	if err != nil {
		return 0, err
	}
	return ChannelMapping(resp[0]), nil
}

// EnableFrameRenderedCallback turns frame-rendered callbacks on.
func (s *LEDStrip) EnableFrameRenderedCallback(ctx context.Context) error {
	_, err := s.device.Invoke(ctx, FunctionEnableFrameRenderedCallback, nil)
	return err
}

// DisableFrameRenderedCallback turns frame-rendered callbacks off.
func (s *LEDStrip) DisableFrameRenderedCallback(ctx context.Context) error {
	_, err := s.device.Invoke(ctx, FunctionDisableFrameRenderedCallback, nil)
	return err
}

// FrameRenderedCallbackEnabled reports whether frame-rendered callbacks
// are on.
func (s *LEDStrip) FrameRenderedCallbackEnabled(ctx context.Context) (bool, error) {
	resp, err := s.device.Get(ctx, FunctionIsFrameRenderedCallbackEnabled, nil, 1)
	if err != nil {
		return false, err
	}
	return resp[0] != 0, nil
}

// OnFrameRendered sets the handler for frame-rendered callbacks. length is
// the number of LEDs in the rendered frame. A nil handler removes it.
func (s *LEDStrip) OnFrameRendered(handler func(length uint16)) {
	if handler == nil {
		s.device.RegisterCallback(CallbackFrameRendered, nil)
		return
	}
	s.device.RegisterCallback(CallbackFrameRendered, func(payload []byte) {
		r := wire.NewPayloadReader(payload)
		length := r.Uint16()
		if r.Err() != nil {
			return
		}
		handler(length)
	})
}

func (s *LEDStrip) getUint16(ctx context.Context, fid uint8) (uint16, error) {
	resp, err := s.device.Get(ctx, fid, nil, 2)
	if err != nil {
		return 0, err
	}
	return wire.NewPayloadReader(resp).Uint16(), nil
}
