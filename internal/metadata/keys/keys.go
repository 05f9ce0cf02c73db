// Package keys builds the metadata keys Horizon writes.
//
//	/horizon/v1/retention/leases/<archiveId>
package keys

import (
	"errors"
	"strings"
)

const (
	// Prefix is the root of every Horizon key.
	Prefix = "/horizon/v1"

	// RetentionLeasesPrefix holds one lease per archive.
	RetentionLeasesPrefix = Prefix + "/retention/leases"
)

// ErrInvalidArchiveID is returned for empty IDs or IDs containing '/'.
var ErrInvalidArchiveID = errors.New("keys: invalid archive id")

// RetentionLeaseKeyPath returns the lease key for an archive.
func RetentionLeaseKeyPath(archiveID string) (string, error) {
	if archiveID == "" || strings.Contains(archiveID, "/") {
		return "", ErrInvalidArchiveID
	}
	return RetentionLeasesPrefix + "/" + archiveID, nil
}
