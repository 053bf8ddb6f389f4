package llm

// ToolCallRequest is a provider's request to invoke a named tool
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// Chunk is one unit received from a provider stream. Text carries an
// incremental content fragment; ToolCalls, when set, carry the fully
// assembled tool invocations for this round.
type Chunk struct {
	Text      string
	ToolCalls []ToolCallRequest
}

// Stream is an ordered sequence of chunks for one completion round.
// Recv returns io.EOF once the round is complete; any other error is a
// provider failure. Close releases the underlying connection and is safe
// to call more than once.
type Stream interface {
	Recv() (*Chunk, error)
	Close() error
}
