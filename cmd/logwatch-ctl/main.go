// Command logwatch-ctl sends a single control request to a running
// LogWatch server: place a marker, inject stdin into one endpoint, or stop
// every action.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"logwatch/internal/app/cli"
	"logwatch/internal/app/wire"
)

func main() {
	opts, err := cli.ParseControlArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "logwatch-ctl: %v\n", err)
		os.Exit(1)
	}

	frame, err := buildFrame(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logwatch-ctl: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logwatch-ctl: connect to %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	if _, err := conn.Write(frame); err != nil {
		fmt.Fprintf(os.Stderr, "logwatch-ctl: send: %v\n", err)
		os.Exit(1)
	}
}

func buildFrame(opts *cli.ControlOptions) ([]byte, error) {
	switch {
	case opts.StopAll:
		return wire.Encode(wire.StopAllControl{Type: wire.TypeStopAll})

	case opts.SetMarker:
		return wire.Encode(wire.SetMarkerControl{Type: wire.TypeSetMarker, Name: opts.MarkerName})

	case opts.SendStdin:
		return wire.Encode(wire.SendStdinControl{
			Type:             wire.TypeSendStdin,
			EndpointRegister: opts.StdinRegister,
			Data:             opts.StdinData,
		})

	default:
		return nil, fmt.Errorf("one of --stop-all, --set-marker or --send-stdin is required")
	}
}
