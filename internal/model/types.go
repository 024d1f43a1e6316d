package model

import "time"

// ComponentStatus represents the current status of a component
type ComponentStatus string

const (
	// StatusUninitialized indicates the component has not been initialized
	StatusUninitialized ComponentStatus = "UNINITIALIZED"
	// StatusInitialized indicates the component has been initialized but not started
	StatusInitialized ComponentStatus = "INITIALIZED"
	// StatusRunning indicates the component is currently running
	StatusRunning ComponentStatus = "RUNNING"
	// StatusStopped indicates the component has been stopped
	StatusStopped ComponentStatus = "STOPPED"
	// StatusError indicates the component is in an error state
	StatusError ComponentStatus = "ERROR"
)

// CaptureStats counts flow events as they move through the capture path.
type CaptureStats struct {
	Observed uint64 `json:"observed"`
	Excluded uint64 `json:"excluded"`
	Recorded uint64 `json:"recorded"`
}

// QueueStatus represents the state of the persistence queue
type QueueStatus struct {
	Status     ComponentStatus `json:"status"`
	Depth      int             `json:"depth"`
	Capacity   int             `json:"capacity"`
	Persisted  uint64          `json:"persisted"`
	Failed     uint64          `json:"failed"`
	Dropped    uint64          `json:"dropped"`
	LastUpdate time.Time       `json:"last_update"`
}

// FetchStats reports the outcome of a bulk fetch from the remote store.
type FetchStats struct {
	Listed     int `json:"listed"`
	Fetched    int `json:"fetched"`
	Failed     int `json:"failed"`
	Partitions int `json:"partitions"`
}

// ScanStats reports the outcome of decoding a local snapshot.
type ScanStats struct {
	Scanned   int `json:"scanned"`
	Parsed    int `json:"parsed"`
	Malformed int `json:"malformed"`
}
