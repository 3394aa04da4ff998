package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tfp-protocol/tfp-go/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

var csvHeader = []string{
	"timestamp", "connection_id", "direction", "layer", "category", "device_uid",
	"type", "function_id", "sequence", "error_code", "length", "rtt_us",
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := cw.Write(csvRow(event)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(event log.Event) []string {
	eventType := "unknown"
	var fid, seq, code, length, rtt string
	switch {
	case event.Frame != nil:
		eventType = "frame"
		length = strconv.Itoa(event.Frame.Size)
	case event.Packet != nil:
		p := event.Packet
		eventType = p.Kind.String()
		fid = strconv.Itoa(int(p.FunctionID))
		seq = strconv.Itoa(int(p.SequenceNumber))
		length = strconv.Itoa(p.Length)
		if p.Kind == log.PacketKindResponse {
			code = strconv.Itoa(int(p.ErrorCode))
		}
		if p.RoundTrip != nil {
			rtt = strconv.FormatInt(p.RoundTrip.Microseconds(), 10)
		}
	case event.StateChange != nil:
		eventType = "state"
	case event.ControlMsg != nil:
		eventType = event.ControlMsg.Type.String()
	case event.Error != nil:
		eventType = "error"
	}

	return []string{
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		event.ConnectionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		event.DeviceUID,
		eventType,
		fid,
		seq,
		code,
		length,
		rtt,
	}
}
