package server

import (
	"time"

	"github.com/sig-0/cardprice/storage/types"
)

type SourcesResponse struct {
	// Results are the registered marketplace adapters
	Results []types.Source `json:"results"`

	// History are the snapshot tags present in the price history
	History []string `json:"history"`
}

// RecordRequest is a manual price record
type RecordRequest struct {
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Currency   string     `json:"currency"`
	Source     string     `json:"source,omitempty"`
	Price      float64    `json:"price"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
