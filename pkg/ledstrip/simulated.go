package ledstrip

import (
	"context"
	"sync"
	"time"

	"github.com/tfp-protocol/tfp-go/pkg/wire"
)

// Power-on defaults of the bricklet.
const (
	DefaultFrameDuration  = 100 * time.Millisecond
	DefaultClockFrequency = 1666666
	DefaultSupplyVoltage  = 5000
)

// SimulatedStrip models an LED Strip bricklet. It keeps the color buffer
// and settings in memory and emits frame-rendered callbacks on Render.
type SimulatedStrip struct {
	mu              sync.Mutex
	leds            [MaxLEDs]Color
	highest         int
	frameDuration   uint16
	clockFrequency  uint32
	chipType        ChipType
	channelMapping  ChannelMapping
	supplyVoltage   uint16
	callbackEnabled bool
	frames          int

	push func(functionID uint8, payload []byte)
}

// NewSimulatedStrip returns a strip with power-on defaults.
func NewSimulatedStrip() *SimulatedStrip {
	return &SimulatedStrip{
		frameDuration:   uint16(DefaultFrameDuration.Milliseconds()),
		clockFrequency:  DefaultClockFrequency,
		chipType:        ChipWS2801,
		channelMapping:  MappingBGR,
		supplyVoltage:   DefaultSupplyVoltage,
		callbackEnabled: true,
	}
}

// DeviceIdentifier reports the LED Strip device type.
func (s *SimulatedStrip) DeviceIdentifier() uint16 { return DeviceIdentifier }

// Attach stores the callback sender.
func (s *SimulatedStrip) Attach(push func(functionID uint8, payload []byte)) {
	s.mu.Lock()
	s.push = push
	s.mu.Unlock()
}

// Handle answers one request.
func (s *SimulatedStrip) Handle(fid uint8, payload []byte) ([]byte, wire.ErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := wire.NewPayloadReader(payload)
	w := wire.NewPayloadWriter()

	switch fid {
	case FunctionSetRGBValues:
		index, length := int(r.Uint16()), int(r.Uint8())
		red, green, blue := r.Bytes(ChunkSize), r.Bytes(ChunkSize), r.Bytes(ChunkSize)
		if r.Err() != nil || length > ChunkSize || index+length > MaxLEDs {
			return nil, wire.ErrorCodeInvalidParameter
		}
		for i := 0; i < length; i++ {
			s.leds[index+i] = Color{R: red[i], G: green[i], B: blue[i]}
		}
		s.highest = max(s.highest, index+length)
		return nil, wire.ErrorCodeOK

	case FunctionGetRGBValues:
		index, length := int(r.Uint16()), int(r.Uint8())
		if r.Err() != nil || length > ChunkSize || index+length > MaxLEDs {
			return nil, wire.ErrorCodeInvalidParameter
		}
		var c Chunk
		for i := 0; i < length; i++ {
			led := s.leds[index+i]
			c.R[i], c.G[i], c.B[i] = led.R, led.G, led.B
		}
		return w.Bytes(c.R[:]).Bytes(c.G[:]).Bytes(c.B[:]).Payload(), wire.ErrorCodeOK

	case FunctionSetFrameDuration:
		v := r.Uint16()
		if r.Err() != nil {
			return nil, wire.ErrorCodeInvalidParameter
		}
		s.frameDuration = v
		return nil, wire.ErrorCodeOK

	case FunctionGetFrameDuration:
		return w.Uint16(s.frameDuration).Payload(), wire.ErrorCodeOK

	case FunctionGetSupplyVoltage:
		return w.Uint16(s.supplyVoltage).Payload(), wire.ErrorCodeOK

	case FunctionSetClockFrequency:
		v := r.Uint32()
		if r.Err() != nil || v < 10000 || v > 2000000 {
			return nil, wire.ErrorCodeInvalidParameter
		}
		s.clockFrequency = v
		return nil, wire.ErrorCodeOK

	case FunctionGetClockFrequency:
		return w.Uint32(s.clockFrequency).Payload(), wire.ErrorCodeOK

	case FunctionSetChipType:
		v := ChipType(r.Uint16())
		if r.Err() != nil {
			return nil, wire.ErrorCodeInvalidParameter
		}
		if _, err := ParseChipType(v.String()); err != nil {
			return nil, wire.ErrorCodeInvalidParameter
		}
		s.chipType = v
		return nil, wire.ErrorCodeOK

	case FunctionGetChipType:
		return w.Uint16(uint16(s.chipType)).Payload(), wire.ErrorCodeOK

	case FunctionSetChannelMapping:
		v := r.Uint8()
		if r.Err() != nil {
			return nil, wire.ErrorCodeInvalidParameter
		}
		s.channelMapping = ChannelMapping(v)
		return nil, wire.ErrorCodeOK

	case FunctionGetChannelMapping:
		return w.Uint8(uint8(s.channelMapping)).Payload(), wire.ErrorCodeOK

	case FunctionEnableFrameRenderedCallback:
		s.callbackEnabled = true
		return nil, wire.ErrorCodeOK

	case FunctionDisableFrameRenderedCallback:
		s.callbackEnabled = false
		return nil, wire.ErrorCodeOK

	case FunctionIsFrameRenderedCallbackEnabled:
		return w.Bool(s.callbackEnabled).Payload(), wire.ErrorCodeOK

	default:
		return nil, wire.ErrorCodeNotSupported
	}
}

// Render completes one frame. If callbacks are enabled it reports the
// number of LEDs written so far.
func (s *SimulatedStrip) Render() {
	s.mu.Lock()
	s.frames++
	push := s.push
	enabled := s.callbackEnabled
	length := uint16(s.highest)
	s.mu.Unlock()

	if enabled && push != nil {
		push(CallbackFrameRendered, wire.NewPayloadWriter().Uint16(length).Payload())
	}
}

// Run renders a frame every frame duration until ctx is done.
func (s *SimulatedStrip) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		d := time.Duration(s.frameDuration) * time.Millisecond
		s.mu.Unlock()
		if d <= 0 {
			d = DefaultFrameDuration
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
			s.Render()
		}
	}
}

// Colors returns a copy of the first n LEDs.
func (s *SimulatedStrip) Colors(n int) []Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = min(n, MaxLEDs)
	out := make([]Color, n)
	copy(out, s.leds[:n])
	return out
}

// Frames returns the number of rendered frames.
func (s *SimulatedStrip) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
