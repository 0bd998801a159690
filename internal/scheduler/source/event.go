package source

// ProblemRequest is a unified unit of work from any source: one
// catalogue entry to solve with a fresh engine instance.
type ProblemRequest struct {
	// Name is the catalogue problem name to select and solve.
	Name string

	// SourceType indicates which type of source this request came from.
	SourceType SourceType

	// SourceName is the name of the source instance.
	SourceName string

	// Priority indicates the request priority (higher value = higher priority).
	Priority int

	// Metadata holds source-specific metadata.
	Metadata map[string]string

	// AckToken is used for acknowledgment (e.g., a RunRecord ID for
	// DatabaseSource, an HTTP request context for HTTPSource).
	AckToken interface{}
}

// NewProblemRequest creates a new ProblemRequest for the given problem name.
func NewProblemRequest(name string, sourceType SourceType, sourceName string) *ProblemRequest {
	return &ProblemRequest{
		Name:       name,
		SourceType: sourceType,
		SourceName: sourceName,
		Metadata:   make(map[string]string),
	}
}

// WithMetadata adds metadata to the request and returns it for chaining.
func (r *ProblemRequest) WithMetadata(key, value string) *ProblemRequest {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
	return r
}

// WithAckToken sets the ack token and returns the request for chaining.
func (r *ProblemRequest) WithAckToken(token interface{}) *ProblemRequest {
	r.AckToken = token
	return r
}

// GetMetadata retrieves a metadata value by key.
func (r *ProblemRequest) GetMetadata(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}
