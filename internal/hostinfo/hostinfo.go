package hostinfo

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// Facts describes the machine a forwarder runs on.
type Facts struct {
	Hostname     string `json:"hostname"`
	OS           string `json:"os"`
	Platform     string `json:"platform,omitempty"`
	Arch         string `json:"arch"`
	CPUs         int    `json:"cpus"`
	GoVersion    string `json:"go_version"`
	AgentVersion string `json:"agent_version"`
}

// osReleasePath is read for a human-readable platform name on Linux.
var osReleasePath = "/etc/os-release"

var hostname = os.Hostname

// Collect returns the facts for the current host. Lookups that fail are
// logged and left empty; Collect never fails.
func Collect(agentVersion string) Facts {
	f := Facts{
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		CPUs:         runtime.NumCPU(),
		GoVersion:    runtime.Version(),
		AgentVersion: agentVersion,
	}

	name, err := hostname()
	if err != nil {
		slog.Warn("hostinfo: hostname lookup failed", "err", err)
	}
	f.Hostname = name

	if file, err := os.Open(osReleasePath); err == nil {
		f.Platform = parseOSRelease(file)
		file.Close()
	}
	return f
}

// parseOSRelease extracts PRETTY_NAME (falling back to NAME) from an
// os-release(5) document.
func parseOSRelease(r io.Reader) string {
	var name, pretty string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		val = strings.Trim(val, `"'`)
		switch key {
		case "PRETTY_NAME":
			pretty = val
		case "NAME":
			name = val
		}
	}
	if pretty != "" {
		return pretty
	}
	return name
}
