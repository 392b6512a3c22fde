// Package room derives opaque channel room identifiers from entity IDs.
package room

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Namespace is a logical real-time channel namespace.
type Namespace string

const (
	NamespaceDrone   Namespace = "drone"
	NamespaceMission Namespace = "mission"
)

// Addresser computes room IDs as namespace_hex(HMAC-SHA256(secret, entityID)).
// It is safe for concurrent use.
type Addresser struct {
	secret []byte
}

// NewAddresser returns an Addresser keyed by secret. The secret must not be empty.
func NewAddresser(secret string) (*Addresser, error) {
	if secret == "" {
		return nil, errors.New("room secret is empty")
	}
	return &Addresser{secret: []byte(secret)}, nil
}

// ID returns the room of entityID in namespace ns.
func (a *Addresser) ID(entityID string, ns Namespace) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(entityID))
	return string(ns) + "_" + hex.EncodeToString(mac.Sum(nil))
}

// Drone returns the drone-namespace room of a drone.
func (a *Addresser) Drone(droneID string) string {
	return a.ID(droneID, NamespaceDrone)
}

// Mission returns the mission-namespace room of a mission.
func (a *Addresser) Mission(missionID string) string {
	return a.ID(missionID, NamespaceMission)
}
