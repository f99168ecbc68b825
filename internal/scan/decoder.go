// Package scan interprets decoded QR payloads as student identity claims.
package scan

import (
	"encoding/json"
	"strings"
)

// fallbackPrefix names subjects whose payload carried no display name.
const fallbackPrefix = "Student "

// unknownSubject stands in when a frame decodes to nothing usable at all.
const unknownSubject = "unknown-scan"

// Identity is the claim extracted from one scanned payload.
type Identity struct {
	SubjectID   string `json:"id"`
	DisplayName string `json:"name"`
}

// Decode interprets raw scanned text as an identity claim. The expected shape
// is `{"id":"...","name":"..."}`. Scanned payloads are untrusted input, so any
// malformed payload degrades to a synthesized identity instead of an error:
// the raw text becomes the subject id and the display name is a fixed prefix
// plus the first 6 characters of the text.
func Decode(raw string) Identity {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identity{SubjectID: unknownSubject, DisplayName: fallbackPrefix + unknownSubject[:6]}
	}

	var claim Identity
	if err := json.Unmarshal([]byte(trimmed), &claim); err == nil && claim.SubjectID != "" {
		if claim.DisplayName == "" {
			claim.DisplayName = fallbackPrefix + head(claim.SubjectID, 6)
		}
		return claim
	}

	return Identity{
		SubjectID:   trimmed,
		DisplayName: fallbackPrefix + head(trimmed, 6),
	}
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
