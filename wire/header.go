package wire

import (
	"fmt"
	"os"
	"strconv"
)

// Nil is the syslog NILVALUE written in place of an empty header field.
const Nil = "-"

// Header field limits, in bytes.
const (
	_maxHostname = 255
	_maxAppName  = 48
	_maxProcID   = 128
	_maxMsgID    = 32
)

// Header is the fixed identifier block written in front of every message.
type Header struct {
	Priority int    `mapstructure:"priority"`
	Version  int    `mapstructure:"version"`
	Hostname string `mapstructure:"hostname"`
	AppName  string `mapstructure:"appName"`
	ProcID   string `mapstructure:"procID"`
	MsgID    string `mapstructure:"msgID"`
}

// DefaultHeader returns the header used when nothing is configured: priority
// 220, version 1, the local hostname, app "logship" and the current pid.
func DefaultHeader() Header {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = Nil
	}
	return Header{
		Priority: 220,
		Version:  1,
		Hostname: host,
		AppName:  "logship",
		ProcID:   strconv.Itoa(os.Getpid()),
		MsgID:    Nil,
	}
}

// Validate checks priority and version ranges. Identifier fields are
// sanitized rather than rejected.
func (h *Header) Validate() error {
	// PRI is one to three digits on the wire.
	if h.Priority < 0 || h.Priority > 999 {
		return fmt.Errorf("priority out of range: %d", h.Priority)
	}
	if h.Version < 1 || h.Version > 999 {
		return fmt.Errorf("version out of range: %d", h.Version)
	}
	return nil
}

// sanitizeField renders v as a header token: printable ASCII without
// spaces, truncated to max bytes, or Nil when nothing is left.
func sanitizeField(v string, max int) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v) && len(out) < max; i++ {
		c := v[i]
		if c < '!' || c > '~' {
			c = '_'
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return Nil
	}
	return string(out)
}
