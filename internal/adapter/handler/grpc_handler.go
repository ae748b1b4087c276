package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/service"
	"github.com/rl1809/store-sim/internal/port"
)

const SimulationServiceName = "storesim.v1.SimulationService"

// SimulationServer is the gRPC contract of the read and ops surface.
type SimulationServer interface {
	GetReport(context.Context, *ReportRequest) (*ReportResponse, error)
	GetStock(context.Context, *StockRequest) (*StockResponse, error)
	Replenish(context.Context, *ReplenishRequest) (*StockResponse, error)
}

type GRPCHandler struct {
	view   storeView
	logger *zap.Logger
}

func NewGRPCHandler(engine *service.Engine, querier port.ReportQuerier, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{
		view:   storeView{engine: engine, querier: querier, now: time.Now},
		logger: logger,
	}
}

func (h *GRPCHandler) GetReport(ctx context.Context, req *ReportRequest) (*ReportResponse, error) {
	resp, err := h.view.report(ctx, req.Source)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &resp, nil
}

func (h *GRPCHandler) GetStock(ctx context.Context, req *StockRequest) (*StockResponse, error) {
	resp, err := h.view.stock(ctx, domain.ItemID(req.ItemID))
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &resp, nil
}

func (h *GRPCHandler) Replenish(ctx context.Context, req *ReplenishRequest) (*StockResponse, error) {
	resp, err := h.view.replenish(ctx, domain.ItemID(req.ItemID), req.Amount)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &resp, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownItem):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errReportSourceUnavailable):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, domain.ErrPersistenceFailure):
		h.logger.Error("rpc failed", zap.Error(err))
		return status.Error(codes.Unavailable, "persistence failure")
	}
	h.logger.Error("rpc failed", zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

func RegisterSimulationServer(s grpc.ServiceRegistrar, srv SimulationServer) {
	s.RegisterService(&simulationServiceDesc, srv)
}

var simulationServiceDesc = grpc.ServiceDesc{
	ServiceName: SimulationServiceName,
	HandlerType: (*SimulationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetReport", Handler: unaryHandler("GetReport", SimulationServer.GetReport)},
		{MethodName: "GetStock", Handler: unaryHandler("GetStock", SimulationServer.GetStock)},
		{MethodName: "Replenish", Handler: unaryHandler("Replenish", SimulationServer.Replenish)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: SimulationProtoPath,
}

func unaryHandler[Req, Resp any](method string, call func(SimulationServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	handle := func(srv any, ctx context.Context, req any) (any, error) {
		in := new(Req)
		if err := fromStruct(req.(*structpb.Struct), in); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "decode %s request: %v", method, err)
		}
		out, err := call(srv.(SimulationServer), ctx, in)
		if err != nil {
			return nil, err
		}
		msg, err := toStruct(out)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode %s response: %v", method, err)
		}
		return msg, nil
	}
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return handle(srv, ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + SimulationServiceName + "/" + method,
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return handle(srv, ctx, req)
		})
	}
}

// SimulationClient calls the service, converting DTOs to and from Struct
// messages.
type SimulationClient struct {
	cc grpc.ClientConnInterface
}

func NewSimulationClient(cc grpc.ClientConnInterface) *SimulationClient {
	return &SimulationClient{cc: cc}
}

func (c *SimulationClient) GetReport(ctx context.Context, req *ReportRequest, opts ...grpc.CallOption) (*ReportResponse, error) {
	out := new(ReportResponse)
	if err := c.invoke(ctx, "GetReport", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SimulationClient) GetStock(ctx context.Context, req *StockRequest, opts ...grpc.CallOption) (*StockResponse, error) {
	out := new(StockResponse)
	if err := c.invoke(ctx, "GetStock", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SimulationClient) Replenish(ctx context.Context, req *ReplenishRequest, opts ...grpc.CallOption) (*StockResponse, error) {
	out := new(StockResponse)
	if err := c.invoke(ctx, "Replenish", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SimulationClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	req, err := toStruct(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+SimulationServiceName+"/"+method, req, resp, opts...); err != nil {
		return err
	}
	return fromStruct(resp, out)
}
