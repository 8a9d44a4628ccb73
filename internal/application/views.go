package application

import "github.com/citescope/citescope/internal/domain"

// QueryDetail is the per-query view exposed to API consumers.
type QueryDetail struct {
	Query             string               `json:"query"`
	QueryType         string               `json:"queryType"`
	ResponseText      string               `json:"responseText"`
	HadGrounding      bool                 `json:"hadGrounding"`
	Domains           []domain.DomainCount `json:"domains"`
	GroundingSegments []domain.Segment     `json:"groundingSegments"`
}

// DomainPercentage is one row of the prevalence view: the share of queries
// in which the domain appeared at least once.
type DomainPercentage struct {
	Domain     string  `json:"domain"`
	Percentage float64 `json:"percentage"`
	QueryCount int     `json:"queryCount"`
}

// PercentageAnalysis is the prevalence view over a completed batch.
type PercentageAnalysis struct {
	NumOfQueries      int                `json:"numOfQueries"`
	DomainPercentages []DomainPercentage `json:"domainPercentages"`
}

// TotalLinkCount is one row of the raw-totals view: summed mention volume.
type TotalLinkCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// RawTotals is the total-mentions view over a completed batch.
type RawTotals struct {
	NumOfQueries    int              `json:"numOfQueries"`
	TotalLinkCounts []TotalLinkCount `json:"totalLinkCounts"`
}

// BreakdownView wraps the Direct/Generic breakdown rows.
type BreakdownView struct {
	DomainBreakdown []domain.DomainTypeBreakdown `json:"domainBreakdown"`
}

// QueryTypeSummary counts the generated queries by classification.
type QueryTypeSummary struct {
	Total             int     `json:"total"`
	Direct            int     `json:"direct"`
	Generic           int     `json:"generic"`
	DirectPercentage  float64 `json:"directPercentage"`
	GenericPercentage float64 `json:"genericPercentage"`
}

func percentageView(report domain.Report) PercentageAnalysis {
	view := PercentageAnalysis{
		NumOfQueries:      report.TotalQueries,
		DomainPercentages: make([]DomainPercentage, 0, len(report.Prevalence)),
	}
	for _, stat := range report.Prevalence {
		view.DomainPercentages = append(view.DomainPercentages, DomainPercentage{
			Domain:     stat.Domain,
			Percentage: stat.AppearancePercentage,
			QueryCount: stat.QueryAppearances,
		})
	}
	return view
}

func rawTotalsView(report domain.Report) RawTotals {
	view := RawTotals{
		NumOfQueries:    report.TotalQueries,
		TotalLinkCounts: make([]TotalLinkCount, 0, len(report.TotalMentions)),
	}
	for _, stat := range report.TotalMentions {
		view.TotalLinkCounts = append(view.TotalLinkCounts, TotalLinkCount{
			Domain: stat.Domain,
			Count:  stat.TotalMentions,
		})
	}
	return view
}
