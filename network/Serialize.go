package network

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Save saves the weights of nets to a file. The weights can be loaded
// into networks of the same architecture with Load.
func Save(filename string, nets ...NeuralNet) error {
	weights := make([][][]float64, len(nets))
	for i, net := range nets {
		w, err := Snapshot(net)
		if err != nil {
			return fmt.Errorf("save: %v", err)
		}
		weights[i] = w
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(weights); err != nil {
		return fmt.Errorf("save: could not encode weights: %v", err)
	}
	return nil
}

// Load loads weights saved with Save into nets. The networks must be
// given in the same order as when saved.
func Load(filename string, nets ...NeuralNet) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("load: %v", err)
	}
	defer file.Close()

	var weights [][][]float64
	if err := gob.NewDecoder(file).Decode(&weights); err != nil {
		return fmt.Errorf("load: could not decode weights: %v", err)
	}

	if len(weights) != len(nets) {
		return fmt.Errorf("load: file holds %v networks, expected %v",
			len(weights), len(nets))
	}
	for i, net := range nets {
		if err := Restore(net, weights[i]); err != nil {
			return fmt.Errorf("load: network %v: %v", net.Prefix(), err)
		}
	}
	return nil
}
