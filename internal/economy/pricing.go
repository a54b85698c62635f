package economy

import (
	"fmt"
	"math"

	"github.com/cxd309/metro-engine/internal/network"
)

// PriceConfig sets fares and construction costs.
type PriceConfig struct {
	BaseTicketPrice    float64                    `yaml:"baseTicketPrice" validate:"gte=0"`
	DistanceMultiplier float64                    `yaml:"distanceMultiplier" validate:"gte=0"`
	TransferBonus      float64                    `yaml:"transferBonus" validate:"gte=0"`
	ShapeMultipliers   [network.NumShapes]float64 `yaml:"shapeMultipliers"`

	NewLineBaseCost          float64 `yaml:"newLineBaseCost" validate:"gte=0"`
	LineExtensionCost        float64 `yaml:"lineExtensionCost" validate:"gte=0"`
	NewTrainCost             float64 `yaml:"newTrainCost" validate:"gte=0"`
	TrainCapacityUpgradeCost float64 `yaml:"trainCapacityUpgradeCost" validate:"gte=0"`
	TrainMaintenanceCost     float64 `yaml:"trainMaintenanceCost" validate:"gte=0"` // per train per sim minute

	NewLineCostMultiplier      float64 `yaml:"newLineCostMultiplier" validate:"gte=0"`
	ExtensionCostMultiplier    float64 `yaml:"extensionCostMultiplier" validate:"gte=0"`
	ModificationCostMultiplier float64 `yaml:"modificationCostMultiplier" validate:"gte=0"`
}

// DefaultPrices returns the standard price table.
func DefaultPrices() PriceConfig {
	return PriceConfig{
		BaseTicketPrice:    10,
		DistanceMultiplier: 5,
		TransferBonus:      3,
		ShapeMultipliers:   [network.NumShapes]float64{1.0, 1.2, 1.1, 1.5, 1.3},

		NewLineBaseCost:          200,
		LineExtensionCost:        100,
		NewTrainCost:             100,
		TrainCapacityUpgradeCost: 20,
		TrainMaintenanceCost:     1,

		NewLineCostMultiplier:      1.0,
		ExtensionCostMultiplier:    0.5,
		ModificationCostMultiplier: 1.0,
	}
}

func (p PriceConfig) NewLineCost() float64 {
	return math.Round(p.NewLineBaseCost * p.NewLineCostMultiplier)
}

func (p PriceConfig) ExtensionCost() float64 {
	return math.Round(p.LineExtensionCost * p.ExtensionCostMultiplier)
}

func (p PriceConfig) ModificationCost() float64 {
	return math.Round(p.NewLineBaseCost * p.ModificationCostMultiplier)
}

func (p PriceConfig) TrainCost() float64 { return p.NewTrainCost }

// CapacityUpgradeCost is the price of adding one seat to each of trains trains.
func (p PriceConfig) CapacityUpgradeCost(trains int) float64 {
	return p.TrainCapacityUpgradeCost * float64(trains)
}

// MaintenanceCost is the upkeep of trains trains over dt sim seconds.
func (p PriceConfig) MaintenanceCost(trains int, dt float64) float64 {
	return p.TrainMaintenanceCost * float64(trains) * dt / 60
}

// TicketPrice is the fare for a trip of stops stations (origin and
// destination inclusive) for a passenger of shape, with a surcharge when the
// trip passes a transfer station.
func (p PriceConfig) TicketPrice(stops int, shape network.Shape, viaTransfer bool) float64 {
	if stops <= 0 {
		return 0
	}
	price := (p.BaseTicketPrice + float64(stops-1)*p.DistanceMultiplier) * p.ShapeMultipliers[shape]
	if viaTransfer {
		price += p.TransferBonus
	}
	return math.Round(price)
}

// Trip is a completed passenger journey as seen by a fare policy.
type Trip struct {
	Shape       network.Shape
	Stops       int
	ViaTransfer bool
}

// FarePolicy turns completed trips into revenue. A world uses exactly one.
type FarePolicy interface {
	Name() string
	Revenue(trips []Trip) float64
}

// Fare policy names.
const (
	FlatPolicyName     = "flat"
	DistancePolicyName = "distance"
)

// FlatFare charges every completed trip the same average fare.
type FlatFare struct {
	Average float64
}

func (FlatFare) Name() string { return FlatPolicyName }

func (f FlatFare) Revenue(trips []Trip) float64 {
	return float64(len(trips)) * f.Average
}

// DistanceFare prices each trip with PriceConfig.TicketPrice.
type DistanceFare struct {
	Prices PriceConfig
}

func (DistanceFare) Name() string { return DistancePolicyName }

func (d DistanceFare) Revenue(trips []Trip) float64 {
	total := 0.0
	for _, t := range trips {
		total += d.Prices.TicketPrice(t.Stops, t.Shape, t.ViaTransfer)
	}
	return total
}

// NewFarePolicy builds the policy called name.
func NewFarePolicy(name string, average float64, prices PriceConfig) (FarePolicy, error) {
	switch name {
	case FlatPolicyName, "":
		return FlatFare{Average: average}, nil
	case DistancePolicyName:
		return DistanceFare{Prices: prices}, nil
	default:
		return nil, fmt.Errorf("unknown fare policy %q", name)
	}
}
