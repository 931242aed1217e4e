package ordersv1

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

func TestCreateOrderRequest_WireLayout(t *testing.T) {
	req := &CreateOrderRequest{
		OrderId:             "A1",
		CustomerId:          "C1",
		CustomerPhoneNumber: "+1555",
		Items:               []string{"x", ""},
	}

	got, err := proto.MarshalOptions{Deterministic: true}.Marshal(req)
	require.NoError(t, err)

	var want []byte
	want = protowire.AppendTag(want, 1, protowire.BytesType)
	want = protowire.AppendString(want, "A1")
	want = protowire.AppendTag(want, 2, protowire.BytesType)
	want = protowire.AppendString(want, "C1")
	want = protowire.AppendTag(want, 3, protowire.BytesType)
	want = protowire.AppendString(want, "+1555")
	want = protowire.AppendTag(want, 4, protowire.BytesType)
	want = protowire.AppendString(want, "x")
	want = protowire.AppendTag(want, 4, protowire.BytesType)
	want = protowire.AppendString(want, "")
	require.Equal(t, want, got)
}

func TestCreateOrderRequest_KeepsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 99, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "A1")
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendString(b, "first")
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendString(b, "second")
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	b = protowire.AppendString(b, "a@b.c")

	var req CreateOrderRequest
	require.NoError(t, proto.Unmarshal(b, &req))
	require.Equal(t, "A1", req.GetOrderId())
	require.Equal(t, []string{"first", "second"}, req.GetItems())
	require.Equal(t, "a@b.c", req.GetCustomerEmail())
	require.Empty(t, req.GetCustomerId())
	require.NotEmpty(t, req.ProtoReflect().GetUnknown())
}

func TestCreateOrderRequest_RejectsMalformedInput(t *testing.T) {
	var req CreateOrderRequest

	truncated := protowire.AppendTag(nil, 2, protowire.BytesType)
	truncated = append(truncated, 10, 'a')
	require.Error(t, proto.Unmarshal(truncated, &req))

	badUTF8 := protowire.AppendTag(nil, 1, protowire.BytesType)
	badUTF8 = protowire.AppendBytes(badUTF8, []byte{0xff, 0xfe})
	require.Error(t, proto.Unmarshal(badUTF8, &req))
}

func TestNilMessageGetters(t *testing.T) {
	var req *CreateOrderRequest
	require.Empty(t, req.GetOrderId())
	require.Empty(t, req.GetCustomerId())
	require.Empty(t, req.GetCustomerPhoneNumber())
	require.Nil(t, req.GetItems())
	require.Empty(t, req.GetCustomerEmail())

	var resp *CreateOrderResponse
	require.Empty(t, resp.GetOrderId())
	require.Empty(t, resp.GetStatus())
}

func TestFileDescriptorRegistered(t *testing.T) {
	fd, err := protoregistry.GlobalFiles.FindFileByPath("orders/v1/order_service.proto")
	require.NoError(t, err)
	require.Same(t, File_orders_v1_order_service_proto, fd)
	require.Equal(t, protoreflect.FullName("orders.v1"), fd.Package())

	svc := fd.Services().ByName("OrderService")
	require.NotNil(t, svc)
	method := svc.Methods().ByName("CreateOrder")
	require.NotNil(t, method)
	require.Equal(t, protoreflect.FullName("orders.v1.CreateOrderRequest"), method.Input().FullName())
	require.Equal(t, protoreflect.FullName("orders.v1.CreateOrderResponse"), method.Output().FullName())

	items := (&CreateOrderRequest{}).ProtoReflect().Descriptor().Fields().ByName("items")
	require.Equal(t, protoreflect.Repeated, items.Cardinality())
	require.Equal(t, protoreflect.StringKind, items.Kind())

	raw, idx := (&CreateOrderResponse{}).Descriptor()
	require.NotEmpty(t, raw)
	require.Equal(t, []int{1}, idx)
}

func TestCreateOrderResponse_JSONNames(t *testing.T) {
	data, err := protojson.Marshal(&CreateOrderResponse{OrderId: "A1", Status: "COMPLETED"})
	require.NoError(t, err)
	require.JSONEq(t, `{"orderId":"A1","status":"COMPLETED"}`, string(data))

	clone := proto.Clone(&CreateOrderRequest{OrderId: "A1", Items: []string{"x"}}).(*CreateOrderRequest)
	require.Equal(t, []string{"x"}, clone.GetItems())
}
