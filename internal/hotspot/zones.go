package hotspot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/shenikar/road_incident_triage/internal/geo"
	"github.com/shenikar/road_incident_triage/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Zone - описание зоны в YAML файле
type Zone struct {
	Name         string  `yaml:"name"`
	Description  string  `yaml:"description"`
	Latitude     float64 `yaml:"latitude"`
	Longitude    float64 `yaml:"longitude"`
	RadiusMeters int     `yaml:"radius_meters"`
	Active       *bool   `yaml:"active"`
}

// ZoneFile - корень YAML файла зон
type ZoneFile struct {
	Zones []Zone `yaml:"zones"`
}

// LoadedZones - зоны и sha256 файла, из которого они прочитаны
type LoadedZones struct {
	Zones  []Zone
	SHA256 string
}

// LoadZones читает и проверяет файл зон
func LoadZones(path string) (*LoadedZones, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hotspot zones: %w", err)
	}
	return ParseZones(raw)
}

func ParseZones(raw []byte) (*LoadedZones, error) {
	var file ZoneFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse hotspot zones: %w", err)
	}
	if err := validateZones(file.Zones); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	return &LoadedZones{Zones: file.Zones, SHA256: hex.EncodeToString(sum[:])}, nil
}

func validateZones(zones []Zone) error {
	seen := make(map[string]struct{}, len(zones))
	for i, z := range zones {
		name := strings.TrimSpace(z.Name)
		if name == "" {
			return fmt.Errorf("hotspot zones: zone #%d: name is required", i+1)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("hotspot zones: duplicate zone name: %s", name)
		}
		seen[name] = struct{}{}

		if !geo.ValidCoordinates(z.Latitude, z.Longitude) {
			return fmt.Errorf("hotspot zones: %s: coordinates out of range", name)
		}
		if z.RadiusMeters <= 0 {
			return fmt.Errorf("hotspot zones: %s: radius_meters must be positive", name)
		}
	}
	return nil
}

// SyncZones записывает зоны в хранилище в порядке файла, сопоставляя по имени
func (a *Aggregator) SyncZones(ctx context.Context, loaded *LoadedZones) error {
	log := a.logger.WithFields(logrus.Fields{
		"service": "hotspot",
		"method":  "SyncZones",
		"sha256":  loaded.SHA256,
	})

	for _, z := range loaded.Zones {
		active := true
		if z.Active != nil {
			active = *z.Active
		}
		zone := &models.Hotspot{
			Name:         strings.TrimSpace(z.Name),
			Description:  z.Description,
			Latitude:     z.Latitude,
			Longitude:    z.Longitude,
			RadiusMeters: z.RadiusMeters,
			IsActive:     active,
		}
		if err := a.repo.UpsertZone(ctx, zone); err != nil {
			log.WithError(err).WithField("zone", zone.Name).Error("Failed to upsert hotspot zone")
			return fmt.Errorf("hotspot: could not upsert zone %s: %w", zone.Name, err)
		}
	}

	log.WithField("zones", len(loaded.Zones)).Info("Hotspot zones synchronized")
	return nil
}
