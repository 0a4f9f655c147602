package marketdata

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"marketreel/internal/services"
)

// IndexQuote is one major market index as captured by the scraper.
type IndexQuote struct {
	Name          string  `json:"name"`
	CurrentPoint  float64 `json:"current_point"`
	ChangeAmount  float64 `json:"change_amount"`
	ChangePercent float64 `json:"change_percent"`
	TurnoverCNYBn float64 `json:"turnover_value_cny_billion"`
	OpenPoint     float64 `json:"open_point"`
	HighPoint     float64 `json:"high_point"`
	LowPoint      float64 `json:"low_point"`
}

// SectorLeader is the strongest stock inside a ranked sector.
type SectorLeader struct {
	Name          string  `json:"name"`
	ChangePercent float64 `json:"change_percent"`
}

// Sector is one ranked industry or concept board.
type Sector struct {
	Name          string       `json:"sector_name"`
	ChangePercent float64      `json:"change_percent"`
	Leader        SectorLeader `json:"leader_stock"`
}

// Sentiment aggregates market-wide breadth and flow numbers.
type Sentiment struct {
	AdvancingCount        int     `json:"advancing_count"`
	DecliningCount        int     `json:"declining_count"`
	LimitUpCount          int     `json:"limit_up_count"`
	LimitDownCount        int     `json:"limit_down_count"`
	NorthboundInflowCNYBn float64 `json:"northbound_net_inflow_cny_billion"`
}

// Snapshot is the structured market-data input one run consumes. It mirrors
// the JSON the scraping collaborator persists per trading session.
type Snapshot struct {
	TradeDate string       `json:"trade_date"`
	Session   string       `json:"session"` // "morning" or "afternoon"
	Indices   []IndexQuote `json:"market_indices"`
	Sentiment Sentiment    `json:"market_sentiment"`
	Industry  []Sector     `json:"industry_top_10"`
	Concept   []Sector     `json:"concept_top_10"`
}

// Validate checks the snapshot carries enough substance to script from.
func (s *Snapshot) Validate() error {
	if s == nil {
		return services.Wrap(services.ErrValidation, "scraped", "validate snapshot", "snapshot is nil", nil)
	}
	if strings.TrimSpace(s.TradeDate) == "" {
		return services.Wrap(services.ErrValidation, "scraped", "validate snapshot", "trade_date is empty", nil)
	}
	if len(s.Indices) == 0 {
		return services.Wrap(services.ErrValidation, "scraped", "validate snapshot", "no market indices present", nil)
	}
	return nil
}

// Source produces a market snapshot. Live scraping lives behind this
// interface; the pipeline itself only consumes the contract.
type Source interface {
	Snapshot() (*Snapshot, error)
}

// FileSource loads a snapshot from a scraped JSON file.
type FileSource struct {
	Path string
}

// Snapshot reads and validates the snapshot file.
func (f FileSource) Snapshot() (*Snapshot, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", f.Path, err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", f.Path, err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Save writes the snapshot into the run directory so a resumed run does not
// depend on the original input file still existing.
func (s *Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
