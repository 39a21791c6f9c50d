package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// NewWorkerID builds a report worker identifier from hostname, pid and a random suffix.
func NewWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "report-worker"
	}
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), randomHex(6))
}

// NewSessionID returns 32 hex characters of crypto randomness.
func NewSessionID() string {
	return randomHex(16)
}

// NewRecordID is used for properties, clients, showings, reports and audit entries.
func NewRecordID() string {
	return uuid.NewString()
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS source is broken; fall back to uuid entropy.
		u := uuid.New()
		for i := range b {
			b[i] = u[i%len(u)]
		}
	}
	return hex.EncodeToString(b)
}
