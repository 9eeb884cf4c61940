package dto

import (
	"time"

	"debt-ledger/internal/domain/debt"
)

type AmountTotalsResponse struct {
	Total     string `json:"total"`
	Paid      string `json:"paid"`
	Remaining string `json:"remaining"`
}

type GroupTotalsResponse struct {
	Count     int    `json:"count"`
	Remaining string `json:"remaining"`
}

type StatsResponse struct {
	TotalClients  int                            `json:"totalClients"`
	ActiveClients int                            `json:"activeClients"`
	TotalDebts    int                            `json:"totalDebts"`
	OverdueCount  int                            `json:"overdueCount"`
	Amounts       AmountTotalsResponse           `json:"totalAmount"`
	ByStatus      map[string]int                 `json:"byStatus"`
	ByClientType  map[string]GroupTotalsResponse `json:"byClientType"`
	ByAgingBucket map[string]GroupTotalsResponse `json:"byAgingBucket"`
	AsOf          string                         `json:"asOf"`
}

func NewStatsResponse(s *debt.AggregateStats) StatsResponse {
	resp := StatsResponse{
		TotalClients:  s.TotalClients,
		ActiveClients: s.ActiveClients,
		TotalDebts:    s.TotalDebts,
		OverdueCount:  s.OverdueCount,
		Amounts: AmountTotalsResponse{
			Total:     s.Amounts.Total.StringFixed(2),
			Paid:      s.Amounts.Paid.StringFixed(2),
			Remaining: s.Amounts.Remaining.StringFixed(2),
		},
		ByStatus:      make(map[string]int, len(s.ByStatus)),
		ByClientType:  make(map[string]GroupTotalsResponse, len(s.ByClientType)),
		ByAgingBucket: make(map[string]GroupTotalsResponse, len(s.ByAgingBucket)),
		AsOf:          s.AsOf.Format(time.RFC3339),
	}
	for status, count := range s.ByStatus {
		resp.ByStatus[string(status)] = count
	}
	for clientType, g := range s.ByClientType {
		resp.ByClientType[string(clientType)] = GroupTotalsResponse{Count: g.Count, Remaining: g.Remaining.StringFixed(2)}
	}
	for bucket, g := range s.ByAgingBucket {
		resp.ByAgingBucket[string(bucket)] = GroupTotalsResponse{Count: g.Count, Remaining: g.Remaining.StringFixed(2)}
	}
	return resp
}
