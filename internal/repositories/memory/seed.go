package memory

import (
	"encoding/json"
	"fmt"

	"geowatch/internal/models"

	"github.com/goccy/go-yaml"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Seed is the fixture format read by LoadSeed. Field names follow the JSON
// form of the models; ids are quoted hex ObjectIDs.
type Seed struct {
	Sessions  []SeedSession      `json:"sessions"`
	Geofences []*models.Geofence `json:"geofences"`
}

type SeedSession struct {
	ID           primitive.ObjectID    `json:"id"`
	Participants []*models.Participant `json:"participants"`
}

// LoadSeed adds the sessions and geofences described by a YAML document.
// Nothing is added when the document is invalid.
func (s *Store) LoadSeed(data []byte) error {
	raw, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("failed to parse seed: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("failed to decode seed: %w", err)
	}

	known := make(map[primitive.ObjectID]bool, len(seed.Sessions))
	for _, session := range seed.Sessions {
		if session.ID.IsZero() {
			return fmt.Errorf("seed session without id")
		}
		known[session.ID] = true
	}
	for _, geofence := range seed.Geofences {
		if !known[geofence.SessionID] {
			return fmt.Errorf("seed geofence %q references unknown session %s", geofence.Name, geofence.SessionID.Hex())
		}
	}

	for _, session := range seed.Sessions {
		s.AddSession(session.ID, session.Participants...)
	}
	for _, geofence := range seed.Geofences {
		s.AddGeofence(geofence)
	}
	return nil
}
