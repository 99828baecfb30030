// Package parsing contains the domain model for remote parse jobs: the
// collections they run against, their lifecycle state machine, status
// snapshots reported by the parsing service, and the results they produce.
package parsing

import "fmt"

// Collection identifies a remote resource collection that parse jobs run
// against and results are stored under.
type Collection string

const (
	// CollectionGroups holds parsed group results.
	CollectionGroups Collection = "groups"

	// CollectionChannels holds parsed channel results.
	CollectionChannels Collection = "channels"
)

func (c Collection) String() string { return string(c) }

// ParseCollection converts a string to a Collection, returning an error for
// anything outside the known set.
func ParseCollection(s string) (Collection, error) {
	switch Collection(s) {
	case CollectionGroups:
		return CollectionGroups, nil
	case CollectionChannels:
		return CollectionChannels, nil
	default:
		return "", fmt.Errorf("unknown collection: %q", s)
	}
}
