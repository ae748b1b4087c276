package handler

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestConn(t *testing.T) *grpc.ClientConn {
	engine, gw := newTestEngine(t)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterSimulationServer(srv, NewGRPCHandler(engine, gw, zaptest.NewLogger(t)))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestClient(t *testing.T) *SimulationClient {
	return NewSimulationClient(newTestConn(t))
}

func TestGRPC_GetReport(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	resp, err := client.GetReport(ctx, &ReportRequest{})
	require.NoError(t, err)
	assert.Equal(t, ReportSourceJournal, resp.Source)
	require.Len(t, resp.Rows, 7)
	assert.Equal(t, "Eggs (Dozen)", resp.Rows[1].ItemName)

	resp, err = client.GetReport(ctx, &ReportRequest{Source: ReportSourceStore})
	require.NoError(t, err)
	assert.Equal(t, ReportSourceStore, resp.Source)

	_, err = client.GetReport(ctx, &ReportRequest{Source: "elsewhere"})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestGRPC_StockAndReplenish(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	stock, err := client.GetStock(ctx, &StockRequest{ItemID: 300000006})
	require.NoError(t, err)
	assert.Equal(t, "Whole Chicken Breast (4pc)", stock.Name)
	assert.Equal(t, 100, stock.Stock)

	stock, err = client.Replenish(ctx, &ReplenishRequest{ItemID: 300000006, Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, 110, stock.Stock)

	_, err = client.GetStock(ctx, &StockRequest{ItemID: 1})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Replenish(ctx, &ReplenishRequest{ItemID: 300000006, Amount: -3})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_ServiceDescriptorIsRegistered(t *testing.T) {
	desc, err := protoregistry.GlobalFiles.FindDescriptorByName(SimulationServiceName)
	require.NoError(t, err)
	svc, ok := desc.(protoreflect.ServiceDescriptor)
	require.True(t, ok)
	assert.Equal(t, SimulationProtoPath, svc.ParentFile().Path())

	methods := svc.Methods()
	require.Equal(t, 3, methods.Len())
	for i := 0; i < methods.Len(); i++ {
		m := methods.Get(i)
		assert.Equal(t, protoreflect.FullName("google.protobuf.Struct"), m.Input().FullName(), m.Name())
		assert.Equal(t, protoreflect.FullName("google.protobuf.Struct"), m.Output().FullName(), m.Name())
	}
}

func TestGRPC_AcceptsPlainProtobufCalls(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	req, err := structpb.NewStruct(map[string]any{"item_id": 300000006})
	require.NoError(t, err)
	resp := new(structpb.Struct)
	require.NoError(t, conn.Invoke(ctx, "/"+SimulationServiceName+"/GetStock", req, resp))

	assert.Equal(t, float64(100), resp.Fields["stock"].GetNumberValue())
	assert.Equal(t, float64(300000006), resp.Fields["item_id"].GetNumberValue())
	assert.Equal(t, "Whole Chicken Breast (4pc)", resp.Fields["name"].GetStringValue())

	bad, err := structpb.NewStruct(map[string]any{"item_id": "chicken"})
	require.NoError(t, err)
	err = conn.Invoke(ctx, "/"+SimulationServiceName+"/GetStock", bad, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
