// Package calc derives economic metrics from the balanced fuel data.
//
// There is one calculator per ordered pair of units among distance, volume and
// price. Each keeps its per-group ratios in an invalidating cache, so a
// calculation after a data change rebuilds once and later ones are free.
package calc

import (
	"fmt"

	"carcost/internal/core"
)

// Unit is the quantity a metric takes or returns.
type Unit string

const (
	Distance Unit = "distance"
	Volume   Unit = "volume"
	Price    Unit = "price"
)

// Metric names a calculator as "<input>-<result>".
type Metric string

const (
	DistanceVolume Metric = "distance-volume"
	VolumeDistance Metric = "volume-distance"
	DistancePrice  Metric = "distance-price"
	PriceDistance  Metric = "price-distance"
	VolumePrice    Metric = "volume-price"
	PriceVolume    Metric = "price-volume"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{DistanceVolume, VolumeDistance, DistancePrice, PriceDistance, VolumePrice, PriceVolume}

// ratio picks the numerator and denominator of a group.
type ratio func(g group) (num, den float64)

func volumePerDistance(g group) (float64, float64) {
	return g.Volume, float64(g.Distance)
}

func pricePerDistance(g group) (float64, float64) {
	return g.Price.Float(), float64(g.Distance)
}

func pricePerVolume(g group) (float64, float64) {
	return g.Price.Float(), g.Volume
}

type definition struct {
	metric Metric
	input  Unit
	result Unit
	// perCategory groups by (car, category) instead of by car.
	perCategory bool
	ratio       ratio
	// multiply applies input × ratio; otherwise input ÷ ratio.
	multiply bool
}

// needsCosts reports whether other costs are folded into the price.
func (d definition) needsCosts() bool {
	return d.input == Price || d.result == Price
}

var definitions = map[Metric]definition{
	DistanceVolume: {DistanceVolume, Distance, Volume, true, volumePerDistance, true},
	VolumeDistance: {VolumeDistance, Volume, Distance, true, volumePerDistance, false},
	DistancePrice:  {DistancePrice, Distance, Price, false, pricePerDistance, true},
	PriceDistance:  {PriceDistance, Price, Distance, false, pricePerDistance, false},
	VolumePrice:    {VolumePrice, Volume, Price, false, pricePerVolume, true},
	PriceVolume:    {PriceVolume, Price, Volume, false, pricePerVolume, false},
}

// ParseMetric resolves a metric name.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if _, ok := definitions[m]; !ok {
		return "", fmt.Errorf("%w: %q", core.ErrUnknownMetric, s)
	}
	return m, nil
}

// Input returns the unit the metric takes.
func (m Metric) Input() Unit { return definitions[m].input }

// Result returns the unit the metric returns.
func (m Metric) Result() Unit { return definitions[m].result }
