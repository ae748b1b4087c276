package handler

import (
	"context"
	"time"

	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/service"
	"github.com/rl1809/store-sim/internal/port"
)

// storeView is the read and ops surface shared by the HTTP and gRPC
// handlers.
type storeView struct {
	engine  *service.Engine
	querier port.ReportQuerier
	now     func() time.Time
}

func (v storeView) report(ctx context.Context, source string) (ReportResponse, error) {
	switch source {
	case "", ReportSourceJournal:
		report, err := v.engine.Reporter.Report(ctx)
		if err != nil {
			return ReportResponse{}, err
		}
		return toReportResponse(ReportSourceJournal, report), nil
	case ReportSourceStore:
		if v.querier == nil {
			return ReportResponse{}, errReportSourceUnavailable
		}
		rows, err := v.querier.QueryReportRows(ctx)
		if err != nil {
			return ReportResponse{}, domain.Persistence("query_report_rows", err)
		}
		return toReportResponse(ReportSourceStore, domain.Report{GeneratedAt: v.now(), Rows: rows}), nil
	}
	return ReportResponse{}, errReportSourceUnavailable
}

func (v storeView) stock(ctx context.Context, id domain.ItemID) (StockResponse, error) {
	item, err := v.engine.Catalog.Item(id)
	if err != nil {
		return StockResponse{}, err
	}
	qty, err := v.engine.Ledger.StockOf(ctx, id)
	if err != nil {
		return StockResponse{}, err
	}
	return toStockResponse(item, qty), nil
}

func (v storeView) items(ctx context.Context) ([]StockResponse, error) {
	items := v.engine.Catalog.Items()
	out := make([]StockResponse, 0, len(items))
	for _, it := range items {
		qty, err := v.engine.Ledger.StockOf(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, toStockResponse(it, qty))
	}
	return out, nil
}

func (v storeView) replenish(ctx context.Context, id domain.ItemID, amount int) (StockResponse, error) {
	item, err := v.engine.Catalog.Item(id)
	if err != nil {
		return StockResponse{}, err
	}
	qty, err := v.engine.Replenish(ctx, id, amount)
	if err != nil {
		return StockResponse{}, err
	}
	return toStockResponse(item, qty), nil
}
