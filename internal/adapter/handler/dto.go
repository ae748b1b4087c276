package handler

import (
	"errors"
	"time"

	"github.com/rl1809/store-sim/internal/core/domain"
)

const (
	ReportSourceJournal = "journal"
	ReportSourceStore   = "store"
)

var errReportSourceUnavailable = errors.New("report source unavailable")

type ReportRequest struct {
	Source string `json:"source,omitempty"`
}

type ReportRowResponse struct {
	ItemID        int64  `json:"item_id"`
	ItemName      string `json:"item_name"`
	TotalQuantity int    `json:"total_quantity"`
	TotalRevenue  string `json:"total_revenue"`
	Stock         int    `json:"stock"`
}

type ReportResponse struct {
	Source      string              `json:"source"`
	GeneratedAt time.Time           `json:"generated_at"`
	Rows        []ReportRowResponse `json:"rows"`
}

type StockRequest struct {
	ItemID int64 `json:"item_id"`
}

type ReplenishRequest struct {
	ItemID int64 `json:"item_id"`
	Amount int   `json:"amount"`
}

type StockResponse struct {
	ItemID int64  `json:"item_id"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	Stock  int    `json:"stock"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toReportResponse(source string, report domain.Report) ReportResponse {
	resp := ReportResponse{
		Source:      source,
		GeneratedAt: report.GeneratedAt,
		Rows:        make([]ReportRowResponse, len(report.Rows)),
	}
	for i, r := range report.Rows {
		resp.Rows[i] = ReportRowResponse{
			ItemID:        int64(r.ItemID),
			ItemName:      r.ItemName,
			TotalQuantity: r.TotalQuantity,
			TotalRevenue:  r.TotalRevenue.StringFixed(2),
			Stock:         r.Stock,
		}
	}
	return resp
}

func toStockResponse(item domain.Item, stock int) StockResponse {
	return StockResponse{
		ItemID: int64(item.ID),
		Name:   item.Name,
		Price:  item.Price.StringFixed(2),
		Stock:  stock,
	}
}
