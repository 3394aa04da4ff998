package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/tfp-protocol/tfp-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	PacketsByKind     map[log.PacketKind]int
	Functions         map[FunctionKey]*FunctionStats
	Connections       map[string]*ConnectionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// FunctionKey identifies one function of one device.
type FunctionKey struct {
	DeviceUID  string
	FunctionID uint8
}

// FunctionStats holds request/response figures for one function.
type FunctionStats struct {
	Requests     int
	Responses    int
	Callbacks    int
	DeviceErrors int
	TotalRTT     time.Duration
	MaxRTT       time.Duration
	rttSamples   int
}

// MeanRTT returns the average round trip over responses that carried one.
func (f *FunctionStats) MeanRTT() time.Duration {
	if f.rttSamples == 0 {
		return 0
	}
	return f.TotalRTT / time.Duration(f.rttSamples)
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	RemoteAddr string
	Devices    map[string]struct{}
	LastState  string
}

// CollectStats reads every event in the file.
func CollectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		PacketsByKind:     make(map[log.PacketKind]int),
		Functions:         make(map[FunctionKey]*FunctionStats),
		Connections:       make(map[string]*ConnectionStats),
	}

	for event, err := range reader.Events() {
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Devices:   make(map[string]struct{}),
		}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if event.RemoteAddr != "" && conn.RemoteAddr == "" {
		conn.RemoteAddr = event.RemoteAddr
	}
	if event.DeviceUID != "" {
		conn.Devices[event.DeviceUID] = struct{}{}
	}
	if event.StateChange != nil && event.StateChange.Entity == log.StateEntityConnection {
		conn.LastState = event.StateChange.NewState
	}

	if p := event.Packet; p != nil {
		s.PacketsByKind[p.Kind]++
		key := FunctionKey{DeviceUID: event.DeviceUID, FunctionID: p.FunctionID}
		fs, ok := s.Functions[key]
		if !ok {
			fs = &FunctionStats{}
			s.Functions[key] = fs
		}
		switch p.Kind {
		case log.PacketKindRequest:
			fs.Requests++
		case log.PacketKindResponse:
			fs.Responses++
			if p.ErrorCode != 0 {
				fs.DeviceErrors++
			}
			if p.RoundTrip != nil {
				fs.TotalRTT += *p.RoundTrip
				fs.rttSamples++
				if *p.RoundTrip > fs.MaxRTT {
					fs.MaxRTT = *p.RoundTrip
				}
			}
		case log.PacketKindCallback:
			fs.Callbacks++
		}
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== TFP Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerConnection} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.PacketsByKind) > 0 {
		fmt.Fprintln(w, "Packets by Kind:")
		for _, kind := range []log.PacketKind{log.PacketKindRequest, log.PacketKindResponse, log.PacketKindCallback} {
			if count := stats.PacketsByKind[kind]; count > 0 {
				fmt.Fprintf(w, "  %-12s %d\n", kind.String()+":", count)
			}
		}
		fmt.Fprintln(w)
		printFunctions(w, stats.Functions)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "           Peer: %s\n", c.stats.RemoteAddr)
			}
			if n := len(c.stats.Devices); n > 0 {
				fmt.Fprintf(w, "           Devices: %d\n", n)
			}
			if c.stats.LastState != "" {
				fmt.Fprintf(w, "           Last state: %s\n", c.stats.LastState)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}

func printFunctions(w io.Writer, funcs map[FunctionKey]*FunctionStats) {
	keys := make([]FunctionKey, 0, len(funcs))
	for k := range funcs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].DeviceUID != keys[j].DeviceUID {
			return keys[i].DeviceUID < keys[j].DeviceUID
		}
		return keys[i].FunctionID < keys[j].FunctionID
	})

	fmt.Fprintln(w, "Functions:")
	for _, k := range keys {
		f := funcs[k]
		uid := k.DeviceUID
		if uid == "" {
			uid = "-"
		}
		fmt.Fprintf(w, "  %-8s %-24s req=%d resp=%d cb=%d", uid, functionName(k.FunctionID), f.Requests, f.Responses, f.Callbacks)
		if f.DeviceErrors > 0 {
			fmt.Fprintf(w, " errors=%d", f.DeviceErrors)
		}
		if f.MaxRTT > 0 {
			fmt.Fprintf(w, " rtt avg=%s max=%s", formatDuration(f.MeanRTT()), formatDuration(f.MaxRTT))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}
