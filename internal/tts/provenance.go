package tts

import (
	"os"
	"os/user"
	"strings"

	"github.com/google/uuid"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

// Provenance describes the process issuing requests. It is stored with
// every cache entry the controller writes.
type Provenance struct {
	SessionID   string
	Source      ttypes.Source
	PID         int
	Hostname    string
	User        string
	WorkingDir  string
	CommandLine string
}

// NewProvenance captures the current process with a fresh session id.
// Lookups that fail leave their field empty.
func NewProvenance(source ttypes.Source) Provenance {
	p := Provenance{
		SessionID:   uuid.NewString(),
		Source:      source,
		PID:         os.Getpid(),
		CommandLine: strings.Join(os.Args, " "),
	}
	if host, err := os.Hostname(); err == nil {
		p.Hostname = host
	}
	if u, err := user.Current(); err == nil {
		p.User = u.Username
	}
	if wd, err := os.Getwd(); err == nil {
		p.WorkingDir = wd
	}
	return p
}
