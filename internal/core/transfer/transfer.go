// Package transfer decides whether an artifact must be re-sent to a remote
// target. The decision is pure: it looks only at the local content hash and
// the outcome of a caller-supplied remote hash probe.
package transfer

import "regexp"

// digestPattern matches a full SHA-256 digest in lowercase hex.
var digestPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Probe attempts to read the hash previously stored next to the remote copy
// of an artifact. It may fail on connectivity or a missing file, and its
// output may be arbitrary garbage.
type Probe func() (string, error)

// ValidDigest reports whether s is a well-formed SHA-256 hex digest.
func ValidDigest(s string) bool {
	return digestPattern.MatchString(s)
}

// ShouldSkip reports whether the artifact transfer can be skipped.
//
// The transfer is skipped iff the probe succeeds, returns a well-formed
// digest, and that digest equals localHash byte-for-byte. Every other outcome
// (probe error, empty or malformed output, mismatch) forces a full transfer:
// an ambiguous probe must never silently leave a stale artifact deployed.
func ShouldSkip(localHash string, probe Probe) bool {
	if !ValidDigest(localHash) {
		return false
	}

	remote, err := probe()
	if err != nil {
		return false
	}
	if !ValidDigest(remote) {
		return false
	}

	return remote == localHash
}
