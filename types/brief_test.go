package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequest_Validate(t *testing.T) {
	valid := Request{
		SessionID: "s-1",
		Briefs: []Brief{
			{ID: "a", Title: "A"},
			{ID: "b", Title: "B", DependsOn: []string{"a"}},
		},
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		req  Request
		code ErrorCode
	}{
		{
			name: "empty session id",
			req:  Request{Briefs: []Brief{{ID: "a"}}},
			code: ErrInvalidRequest,
		},
		{
			name: "no briefs",
			req:  Request{SessionID: "s-1"},
			code: ErrInvalidRequest,
		},
		{
			name: "blank brief id",
			req:  Request{SessionID: "s-1", Briefs: []Brief{{ID: "  "}}},
			code: ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			assert.Error(t, err)
			assert.Equal(t, tt.code, GetErrorCode(err))
		})
	}
}

func TestBriefConstraints_Timeout(t *testing.T) {
	b := Brief{ID: "a", Constraints: BriefConstraints{Timeout: 50 * time.Millisecond}}
	assert.Equal(t, 50*time.Millisecond, b.Constraints.Timeout)

	// zero value means "use the service default"
	assert.Equal(t, time.Duration(0), Brief{ID: "b"}.Constraints.Timeout)
}
