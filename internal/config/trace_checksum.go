package config

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

type traceChecksumPayload struct {
	DeviceSectors uint64         `json:"device_sectors"`
	Requests      []TraceRequest `json:"requests"`
}

// TraceChecksum returns a short, stable checksum that identifies the effective
// trace (the concrete request stream that was replayed), independent of the
// scheduling policy, so runs of different policies can be grouped.
//
// It computes MD5 over a canonical JSON representation and returns the first 6 hex
// characters (equivalent to `md5sum | cut -c1-6`).
func TraceChecksum(cfg *SimulationConfig) (string, error) {
	if cfg == nil {
		return "", nil
	}

	requests, err := ExpandTrace(cfg)
	if err != nil {
		return "", err
	}

	payload := traceChecksumPayload{
		DeviceSectors: cfg.Simulation.Device.Sectors,
		Requests:      requests,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(b)
	hexStr := hex.EncodeToString(sum[:])
	if len(hexStr) > 6 {
		hexStr = hexStr[:6]
	}
	return hexStr, nil
}
