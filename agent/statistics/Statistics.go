// Package statistics collects named series of training statistics
package statistics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Statistics records named series of values, such as losses, which are
// summarised by their mean when flushed
type Statistics struct {
	series map[string][]float64
}

// New returns a new, empty Statistics
func New() *Statistics {
	return &Statistics{series: make(map[string][]float64)}
}

// Append appends a value to the named series
func (s *Statistics) Append(name string, value float64) {
	s.series[name] = append(s.series[name], value)
}

// Extend appends values to the named series
func (s *Statistics) Extend(name string, values []float64) {
	s.series[name] = append(s.series[name], values...)
}

// Mean returns the mean of the named series, or NaN if the series is
// empty
func (s *Statistics) Mean(name string) float64 {
	values := s.series[name]
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// Names returns the sorted names of all recorded series
func (s *Statistics) Names() []string {
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush returns the mean of each series and clears all series
func (s *Statistics) Flush() map[string]float64 {
	means := make(map[string]float64, len(s.series))
	for name := range s.series {
		means[name] = s.Mean(name)
	}
	s.series = make(map[string][]float64)
	return means
}
