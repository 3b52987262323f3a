package protocol

import "encoding/json"

// InitCommand asks the backend to register a model definition.
type InitCommand struct {
	Model ModelDefinition `json:"model"`
}

// TrainCommand starts one training run on a registered model.
type TrainCommand struct {
	ModelID         string  `json:"modelId"`
	Epochs          int     `json:"epochs"`
	DatasetID       string  `json:"datasetId"`
	ValidationSplit float64 `json:"validationSplit"`
}

// QueryCommand inspects one layer of a registered model.
type QueryCommand struct {
	ModelID   string    `json:"modelId"`
	LayerID   string    `json:"layerId"`
	QueryType QueryType `json:"queryType"`
}

// CloseCommand announces a client-initiated shutdown of the session.
type CloseCommand struct {
	Reason string `json:"reason"`
}

// InitResult answers an init command.
type InitResult struct {
	Status    Status `json:"status"`
	ModelID   string `json:"modelId,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// TrainResult is both the in_progress stream frame and the terminal
// answer of a train command.
type TrainResult struct {
	Status       Status             `json:"status"`
	Progress     float64            `json:"progress,omitempty"`
	CurrentEpoch int                `json:"currentEpoch,omitempty"`
	TotalEpochs  int                `json:"totalEpochs,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	FinalMetrics map[string]float64 `json:"finalMetrics,omitempty"`
	TrainingTime float64            `json:"trainingTime,omitempty"`
	Message      string             `json:"message,omitempty"`
	ErrorCode    string             `json:"errorCode,omitempty"`
}

// QueryResult answers a query command. Result stays raw: its shape
// depends on the query type and is interpreted by the caller.
type QueryResult struct {
	Status    Status          `json:"status"`
	LayerID   string          `json:"layerId,omitempty"`
	QueryType QueryType       `json:"queryType,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Message   string          `json:"message,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
}

// PingResult answers a ping command.
type PingResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CloseResult acknowledges a close command.
type CloseResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}
