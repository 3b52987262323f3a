package protocol

import (
	"fmt"
	"strings"
)

// LayerType tags one layer descriptor in a model definition.
type LayerType string

const (
	LayerInput     LayerType = "input"
	LayerConv2D    LayerType = "conv2d"
	LayerMaxPool2D LayerType = "maxpool2d"
	LayerFlatten   LayerType = "flatten"
	LayerDense     LayerType = "dense"
	LayerDropout   LayerType = "dropout"
	LayerOutput    LayerType = "output"
)

func (t LayerType) Known() bool {
	switch t {
	case LayerInput, LayerConv2D, LayerMaxPool2D, LayerFlatten, LayerDense, LayerDropout, LayerOutput:
		return true
	}
	return false
}

// ModelDefinition is the collaborator-produced document carried opaquely
// by init commands. The session layer never interprets it; the editor
// produces it and the backend consumes it.
type ModelDefinition struct {
	Metadata        ModelMetadata   `json:"metadata"`
	Dataset         string          `json:"dataset"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	Layers          []Layer         `json:"layers"`
}

type ModelMetadata struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// Hyperparameters holds the tunables attached to one architecture.
type Hyperparameters struct {
	Optimizer          NamedParams `json:"optimizer"`
	Scheduler          NamedParams `json:"scheduler,omitempty"`
	Loss               NamedParams `json:"loss"`
	Seed               int64       `json:"seed,omitempty"`
	Epochs             int         `json:"epochs,omitempty"`
	EarlyStopping      NamedParams `json:"earlyStopping,omitempty"`
	CheckpointInterval int         `json:"checkpointInterval,omitempty"`
}

// NamedParams is one named strategy plus its parameter mapping
// (optimizer, scheduler, loss, early-stop criterion).
type NamedParams struct {
	Name   string             `json:"name"`
	Params map[string]float64 `json:"params,omitempty"`
}

// Layer is one ordered layer descriptor.
type Layer struct {
	ID     string         `json:"id,omitempty"`
	Name   string         `json:"name"`
	Type   LayerType      `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Validate enforces the structural rules the backend requires before a
// model is registered: named, at least one layer, known layer types,
// input first and output last.
func (m ModelDefinition) Validate() error {
	if strings.TrimSpace(m.Metadata.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidModel)
	}
	if len(m.Layers) == 0 {
		return fmt.Errorf("%w: at least one layer required", ErrInvalidModel)
	}
	for i, layer := range m.Layers {
		if !layer.Type.Known() {
			return fmt.Errorf("%w: layer %d has unknown type %q", ErrInvalidModel, i, layer.Type)
		}
	}
	if m.Layers[0].Type != LayerInput {
		return fmt.Errorf("%w: first layer must be input, got %q", ErrInvalidModel, m.Layers[0].Type)
	}
	if last := m.Layers[len(m.Layers)-1].Type; last != LayerOutput {
		return fmt.Errorf("%w: last layer must be output, got %q", ErrInvalidModel, last)
	}
	return nil
}

// LayerByID finds one layer by id, falling back to name match.
func (m ModelDefinition) LayerByID(id string) (Layer, bool) {
	for _, layer := range m.Layers {
		if layer.ID == id || layer.Name == id {
			return layer, true
		}
	}
	return Layer{}, false
}
