// Package sysinfo probes basic host-platform information for heartbeats.
//
// It deliberately sticks to values obtainable from the standard library
// (hostname, outbound IP, OS/arch) rather than pulling in a full metrics
// library: the heartbeat payload in spec.md only ever needs these fields.
package sysinfo

import (
	"net"
	"os"
	"runtime"
)

// Info is the snapshot of host information sent with every heartbeat.
type Info struct {
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	IP       string `json:"ip"`
	NumCPU   int    `json:"numCpu"`
}

// Probe collects a fresh Info snapshot. It never fails: any individual
// lookup that errors is left at its zero value rather than aborting the
// whole probe, since a heartbeat with partial system info is still useful.
func Probe() Info {
	hostname, _ := os.Hostname()
	return Info{
		Hostname: hostname,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		IP:       outboundIP(),
		NumCPU:   runtime.NumCPU(),
	}
}

// outboundIP returns the local address that would be used to reach the
// public internet, without actually sending any packets (UDP "connect" only
// resolves a route).
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}

// SanitizeHostname strips characters that are unsafe in an agent ID from a
// raw hostname, lower-casing it and keeping only [a-z0-9-].
func SanitizeHostname(hostname string) string {
	out := make([]rune, 0, len(hostname))
	for _, r := range hostname {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r-'A'+'a')
		case r == '_' || r == '.' || r == ' ':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "host"
	}
	return string(out)
}
