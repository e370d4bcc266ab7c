package apperr

// ChunkError is one failed batch submission inside a larger duplication.
type ChunkError struct {
	Phase      string   `json:"phase"`
	ChunkIndex int      `json:"chunk_index"`
	SourceIDs  []string `json:"source_ids"`
	Message    string   `json:"message"`
}

// PartialBatchFailure is a result shape, not an error: what was skipped and what failed.
// Untracked holds sources whose batch was accepted but cannot be followed, their outcome is unknown.
type PartialBatchFailure struct {
	ChunkErrors []ChunkError `json:"chunk_errors,omitempty"`
	Skipped     []string     `json:"skipped,omitempty"`
	Untracked   []string     `json:"untracked,omitempty"`
}

func (p *PartialBatchFailure) AddChunkError(phase string, index int, sourceIDs []string, err error) {
	p.ChunkErrors = append(p.ChunkErrors, ChunkError{
		Phase:      phase,
		ChunkIndex: index,
		SourceIDs:  sourceIDs,
		Message:    UserMessage(err),
	})
}

func (p *PartialBatchFailure) AddSkipped(ids ...string) {
	p.Skipped = append(p.Skipped, ids...)
}

func (p *PartialBatchFailure) AddUntracked(ids ...string) {
	p.Untracked = append(p.Untracked, ids...)
}

func (p *PartialBatchFailure) HasFailures() bool {
	return p != nil && (len(p.ChunkErrors) > 0 || len(p.Skipped) > 0 || len(p.Untracked) > 0)
}
