package util

import (
	"log"

	"github.com/coreos/go-systemd/v22/journal"
)

// journalWriter forwards log output to systemd-journald.
type journalWriter struct{}

func (journalWriter) Write(p []byte) (int, error) {
	if err := journal.Send(string(p), journal.PriInfo, nil); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetupLogging routes the standard logger to journald when configured and
// journald is reachable; otherwise it leaves stderr logging untouched.
func SetupLogging(conf *AppConfig) {
	if !conf.Conf.WithJournald {
		return
	}
	if !journal.Enabled() {
		log.Printf("journald logging requested but journald is not available")
		return
	}
	log.SetFlags(0) // journald adds its own timestamps
	log.SetOutput(journalWriter{})
}
