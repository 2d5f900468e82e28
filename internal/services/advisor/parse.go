package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/models"
)

// oracleResponse is the contract the prompt demands from the oracle.
type oracleResponse struct {
	Target  models.TargetProposal    `json:"target"`
	Signals []models.SignalCandidate `json:"signals"`
}

// parseResponse extracts the oracle response from raw model output. Models
// occasionally wrap JSON in markdown fences or leading prose despite the
// contract, so parsing trims to the outermost object before decoding.
func parseResponse(raw string) (*oracleResponse, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: oracle response contains no JSON object", common.ErrInvalidInput)
	}

	var resp oracleResponse
	decoder := json.NewDecoder(strings.NewReader(text[start : end+1]))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode oracle response: %v", common.ErrInvalidInput, err)
	}

	return &resp, nil
}
