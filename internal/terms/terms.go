// Package terms loads the versioned terms and conditions printed on rate
// confirmations.
package terms

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/nurpe/freight-booking/internal/model"
)

var ErrInvalidTerms = errors.New("invalid terms document")

// Load reads a document shaped like
//
//	{"version": "1.0", "lastUpdated": "2025-08-01", "terms_and_conditions": [{"title": "...", "body": "..."}]}
func Load(path string) (model.Terms, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Terms{}, fmt.Errorf("read terms: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (model.Terms, error) {
	var doc struct {
		Version     string               `json:"version"`
		LastUpdated string               `json:"lastUpdated"`
		Clauses     *[]model.TermsClause `json:"terms_and_conditions"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Terms{}, fmt.Errorf("%w: %v", ErrInvalidTerms, err)
	}
	if doc.Clauses == nil {
		return model.Terms{}, fmt.Errorf("%w: terms_and_conditions must be an array", ErrInvalidTerms)
	}
	if doc.Version == "" {
		doc.Version = "1.0"
	}
	return model.Terms{
		Version:     doc.Version,
		LastUpdated: doc.LastUpdated,
		Clauses:     *doc.Clauses,
	}, nil
}
