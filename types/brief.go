package types

import (
	"strings"
	"time"
)

// BriefConstraints carries per-brief execution limits.
type BriefConstraints struct {
	// Timeout overrides the service default job timeout.
	// Zero or negative means "use the service default".
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Brief is a caller-defined unit of delegated work. Briefs reference each
// other through DependsOn to form a directed acyclic graph within one request.
type Brief struct {
	// ID is the caller-assigned identifier, unique within a request.
	ID string `json:"id" yaml:"id"`
	// Title is a short human-readable description of the work.
	Title string `json:"title" yaml:"title"`
	// DependsOn lists IDs of briefs in the same request that must
	// complete successfully before this brief becomes eligible.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// Constraints holds per-brief execution limits.
	Constraints BriefConstraints `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	// Metadata carries opaque key/value pairs through to the executor.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Validate checks the structural shape of a single brief.
func (b *Brief) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return NewError(ErrInvalidRequest, "brief id must not be empty")
	}
	return nil
}

// Request is one delegation request: a set of briefs plus the originating
// user message, carried through for traceability.
type Request struct {
	// SessionID identifies the conversation this delegation belongs to.
	SessionID string `json:"session_id" yaml:"session_id"`
	// ParentMessage is the originating user request.
	ParentMessage string `json:"parent_message,omitempty" yaml:"parent_message,omitempty"`
	// Briefs is the ordered list of sub-tasks to execute.
	Briefs []Brief `json:"briefs" yaml:"briefs"`
}

// Validate checks the structural shape of the request before any graph
// construction happens. Graph-level invariants (duplicates, cycles, limits)
// are enforced by the graph builder.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return NewError(ErrInvalidRequest, "session id must not be empty")
	}
	if len(r.Briefs) == 0 {
		return NewError(ErrInvalidRequest, "request contains no briefs")
	}
	for i := range r.Briefs {
		if err := r.Briefs[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
