package grpcsvc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	"github.com/vladislavdragonenkov/orderpipe/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/orderpipe/internal/service/grpc"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/notify"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/processor"
	"github.com/vladislavdragonenkov/orderpipe/internal/storage/async"
	"github.com/vladislavdragonenkov/orderpipe/internal/storage/memory"
	ordersv1 "github.com/vladislavdragonenkov/orderpipe/proto/orders/v1"
)

const bufSize = 1024 * 1024

type testEnv struct {
	client ordersv1.OrderServiceClient
	repo   domain.OrderRepository
	proc   *processor.Processor
	reg    *prometheus.Registry
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := loggerForTests()
	reg := prometheus.NewRegistry()
	m := metrics.NewOrderMetricsWithRegisterer(reg)
	repo := memory.NewOrderRepository()
	executor := async.NewExecutor(repo, 4, logger)
	proc := processor.New(executor, notify.NewDispatcher(nil, nil, m, logger),
		processor.WithLogger(logger), processor.WithMetrics(m))
	proc.Start()

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	ordersv1.RegisterOrderServiceServer(server, grpcsvc.NewOrderService(proc, m, logger))
	go func() {
		_ = server.Serve(listener)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = proc.Stop(ctx)
		_ = executor.Close(ctx)
	})

	return &testEnv{
		client: ordersv1.NewOrderServiceClient(conn),
		repo:   repo,
		proc:   proc,
		reg:    reg,
	}
}

func callCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCreateOrder_Completed(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.CreateOrder(callCtx(t), &ordersv1.CreateOrderRequest{
		OrderId:             "A1",
		CustomerId:          "C1",
		CustomerPhoneNumber: "+15550001",
		Items:               []string{"x", "y"},
	})
	require.NoError(t, err)
	require.Equal(t, "A1", resp.GetOrderId())
	require.Equal(t, "COMPLETED", resp.GetStatus())

	stored, err := env.repo.FindByOrderID(context.Background(), "A1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, stored.Status)
	require.Equal(t, []string{"x", "y"}, stored.Items)
}

func TestCreateOrder_InvalidRequestIsNotAnError(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.CreateOrder(callCtx(t), &ordersv1.CreateOrderRequest{
		OrderId:             "A2",
		CustomerId:          "C1",
		CustomerPhoneNumber: "+15550001",
	})
	require.NoError(t, err)
	require.Equal(t, "A2", resp.GetOrderId())
	require.Equal(t, "INVALID_REQUEST", resp.GetStatus())

	_, err = env.repo.FindByOrderID(context.Background(), "A2")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCreateOrder_ProcessorStopped(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.proc.Stop(ctx))

	_, err := env.client.CreateOrder(callCtx(t), &ordersv1.CreateOrderRequest{OrderId: "A3"})
	require.Equal(t, codes.Unavailable, status.Code(err))
}

func TestCreateOrder_NilRequest(t *testing.T) {
	svc := grpcsvc.NewOrderService(nil, nil, nil)
	_, err := svc.CreateOrder(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCreateOrder_RecordsOutcomeMetric(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.CreateOrder(callCtx(t), &ordersv1.CreateOrderRequest{OrderId: "A4"})
	require.NoError(t, err)

	families, err := env.reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() != "orders_grpc_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == "INVALID_REQUEST" {
					require.Equal(t, 1.0, metric.GetCounter().GetValue())
					found = true
				}
			}
		}
	}
	require.True(t, found)
}

type blockingSubmitter struct{}

func (blockingSubmitter) Submit(context.Context, domain.CreateOrderRequest) (*processor.Reply, error) {
	return processor.NewReply(), nil
}

func TestCreateOrder_ClientDeadline(t *testing.T) {
	svc := grpcsvc.NewOrderService(blockingSubmitter{}, nil, loggerForTests())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.CreateOrder(ctx, &ordersv1.CreateOrderRequest{OrderId: "A5"})
	require.Equal(t, codes.DeadlineExceeded, status.Code(err))
}

func TestReflectionResolvesOrderService(t *testing.T) {
	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	ordersv1.RegisterOrderServiceServer(server, &ordersv1.UnimplementedOrderServiceServer{})
	reflection.Register(server)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	stream, err := reflectionpb.NewServerReflectionClient(conn).ServerReflectionInfo(callCtx(t))
	require.NoError(t, err)
	require.NoError(t, stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_FileContainingSymbol{
			FileContainingSymbol: "orders.v1.OrderService",
		},
	}))
	resp, err := stream.Recv()
	require.NoError(t, err)

	files := resp.GetFileDescriptorResponse().GetFileDescriptorProto()
	require.NotEmpty(t, files)
	var fd descriptorpb.FileDescriptorProto
	require.NoError(t, proto.Unmarshal(files[0], &fd))
	require.Equal(t, "orders/v1/order_service.proto", fd.GetName())
	require.Equal(t, "CreateOrder", fd.GetService()[0].GetMethod()[0].GetName())
}
