// Package ledstrip drives the LED Strip bricklet, the output device of the
// ambient-lighting pipeline.
//
// A strip is a Device on an ipcon.Connection. Colors are written in chunks
// of up to ChunkSize LEDs; WriteFrame splits a whole frame for you:
//
//	strip, err := ledstrip.New(conn, "jGy")
//	if err != nil {
//	    return err
//	}
//	frame := make([]ledstrip.Color, 50)
//	for i := range frame {
//	    frame[i] = ledstrip.Color{R: 255}
//	}
//	err = strip.WriteFrame(ctx, frame)
//
// The bricklet renders the buffered colors once per frame duration and
// reports each rendered frame through OnFrameRendered.
//
// SimulatedStrip models the bricklet for the in-process simulator.
package ledstrip
