package trainer

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/neuroforge/trainlink/internal/protocol"
)

// layerQueryResult builds the synthetic inspection payload for one
// layer. The same model seed and layer id always yield the same
// tensors, so repeated queries are comparable.
func layerQueryResult(model Model, layer protocol.Layer, queryType protocol.QueryType) (json.RawMessage, error) {
	rng := rand.New(rand.NewSource(layerSeed(model, layer)))

	switch queryType {
	case protocol.QuerySummary:
		return json.Marshal(map[string]any{
			"id":     layer.ID,
			"name":   layer.Name,
			"type":   layer.Type,
			"params": layer.Params,
		})
	case protocol.QueryWeights:
		return json.Marshal(map[string]any{
			"shape":   []int{8, 8},
			"weights": tensor(rng, 8, 8, 1.0),
		})
	case protocol.QueryGradients:
		return json.Marshal(map[string]any{
			"shape":     []int{8, 8},
			"gradients": tensor(rng, 8, 8, 0.01),
		})
	case protocol.QueryActivations:
		return json.Marshal(map[string]any{
			"shape":       []int{1, 8},
			"activations": tensor(rng, 1, 8, 1.0),
		})
	}
	return nil, fmt.Errorf("unsupported query type %q", queryType)
}

func layerSeed(model Model, layer protocol.Layer) int64 {
	seed := model.Definition.Hyperparameters.Seed
	if seed == 0 {
		seed = hashSeed(model.ID)
	}
	key := layer.ID
	if key == "" {
		key = layer.Name
	}
	return seed ^ hashSeed(key)
}

// tensor fills a rows x cols matrix with values in (-scale, scale).
func tensor(rng *rand.Rand, rows, cols int, scale float64) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		row := make([]float64, cols)
		for j := range row {
			row[j] = round4((rng.Float64()*2 - 1) * scale)
		}
		out[i] = row
	}
	return out
}
