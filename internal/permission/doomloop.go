package permission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// DoomLoopThreshold is the number of identical calls before triggering.
const DoomLoopThreshold = 3

// historyLimit bounds per-session history growth.
const historyLimit = 10

// DoomLoopDetector tracks repeated tool calls to detect infinite loops. A
// trip is reported as its own action type so operators can configure a rule
// for it like any other guarded action.
type DoomLoopDetector struct {
	mu      sync.Mutex
	history map[string][]string // sessionID -> recent call hashes
}

// NewDoomLoopDetector creates a new doom loop detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{
		history: make(map[string][]string),
	}
}

// Check records a tool call and reports whether it completes a run of
// DoomLoopThreshold identical calls for the session.
func (d *DoomLoopDetector) Check(sessionID, toolName string, input any) bool {
	hash := hashCall(toolName, input)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := d.history[sessionID]
	tripped := runLength(history, hash) >= DoomLoopThreshold-1

	history = append(history, hash)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	d.history[sessionID] = history

	return tripped
}

// runLength counts how many trailing entries equal hash.
func runLength(history []string, hash string) int {
	n := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i] != hash {
			break
		}
		n++
	}
	return n
}

func hashCall(toolName string, input any) string {
	data, _ := json.Marshal(map[string]any{
		"tool":  toolName,
		"input": input,
	})
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Clear drops the history for a session.
func (d *DoomLoopDetector) Clear(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, sessionID)
}
