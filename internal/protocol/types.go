package protocol

// MessageType discriminates the two envelope directions.
type MessageType string

const (
	MessageCommand  MessageType = "command"
	MessageResponse MessageType = "response"
)

func (t MessageType) Known() bool {
	switch t {
	case MessageCommand, MessageResponse:
		return true
	}
	return false
}

// CommandType identifies the operation an envelope carries.
type CommandType string

const (
	CommandInit  CommandType = "init"
	CommandTrain CommandType = "train"
	CommandQuery CommandType = "query"
	CommandPing  CommandType = "ping"
	CommandClose CommandType = "close"
)

func (t CommandType) Known() bool {
	switch t {
	case CommandInit, CommandTrain, CommandQuery, CommandPing, CommandClose:
		return true
	}
	return false
}

// Status is the outcome field carried by every response payload.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether a training status ends the run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// QueryType selects what a layer query inspects.
type QueryType string

const (
	QueryWeights     QueryType = "weights"
	QueryGradients   QueryType = "gradients"
	QueryActivations QueryType = "activations"
	QuerySummary     QueryType = "summary"
)

func (t QueryType) Known() bool {
	switch t {
	case QueryWeights, QueryGradients, QueryActivations, QuerySummary:
		return true
	}
	return false
}
