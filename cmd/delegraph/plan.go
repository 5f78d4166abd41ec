package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/verdantlabs/delegraph/types"
)

// loadPlan reads a delegation plan from a YAML file. A plan is a Request
// in YAML form; the session ID may be omitted, in which case one is
// generated.
func loadPlan(path string) (*types.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	var req types.Request
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return &req, nil
}
