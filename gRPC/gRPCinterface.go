package proto

import (
	"FrameAnnotator/annotator"
	iface "FrameAnnotator/interface"
	"FrameAnnotator/logger"
	"FrameAnnotator/monitor"
	"FrameAnnotator/node"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "annotator.FrameAnnotator"

// FrameAnnotatorServer is the server API for the FrameAnnotator service.
type FrameAnnotatorServer interface {
	Annotate(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
}

func RegisterFrameAnnotatorServer(s grpc.ServiceRegistrar, srv FrameAnnotatorServer) {
	s.RegisterService(&FrameAnnotator_ServiceDesc, srv)
}

var FrameAnnotator_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FrameAnnotatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Annotate", Handler: annotateHandler},
		{MethodName: "Status", Handler: statusHandler},
		{MethodName: "Shutdown", Handler: shutdownHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "annotator.proto",
}

func annotateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FrameAnnotatorServer).Annotate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Annotate"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FrameAnnotatorServer).Annotate(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FrameAnnotatorServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Status"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FrameAnnotatorServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func shutdownHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FrameAnnotatorServer).Shutdown(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Shutdown"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FrameAnnotatorServer).Shutdown(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is the client API for the FrameAnnotator service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Annotate(ctx context.Context, frame []byte, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Annotate", wrapperspb.Bytes(frame), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Status", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Shutdown(ctx context.Context, opts ...grpc.CallOption) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Shutdown", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

type Server struct {
	node *node.Node
	mon  *monitor.Monitor

	// CloseChannel is closed once a Shutdown call has been served.
	CloseChannel chan struct{}
	closeOnce    sync.Once
}

func NewServer(n *node.Node, mon *monitor.Monitor) *Server {
	return &Server{node: n, mon: mon, CloseChannel: make(chan struct{})}
}

func (s *Server) Annotate(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	s.mon.Request("grpc")
	res, err := s.node.Input(ctx, iface.Message{Payload: req.GetValue()})
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(ResultMap(res))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) Status(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	s.mon.Request("grpc")
	out, err := structpb.NewStruct(StatusMap(s.node.Status()))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Shutdown closes the node, returns the final frame and signals CloseChannel.
// Sink failures are logged; the frame is still returned.
func (s *Server) Shutdown(ctx context.Context, req *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	s.mon.Request("grpc")
	defer s.closeOnce.Do(func() {
		logger.Log().Warn("Shutdown requested over gRPC")
		close(s.CloseChannel)
	})
	msg, err := s.node.Close(ctx)
	data, ok := msg.Payload.([]byte)
	if err != nil && !ok {
		return nil, toStatus(err)
	}
	if err != nil {
		logger.Log().Warn("Final frame emitted with sink errors", zap.Error(err))
	}
	return wrapperspb.Bytes(data), nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, annotator.ErrDecode):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, annotator.ErrNoFrame), errors.Is(err, annotator.ErrClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ResultMap renders a frame result with structpb-compatible values.
func ResultMap(res annotator.Result) map[string]any {
	faces := make([]any, 0, len(res.Faces))
	for _, f := range res.Faces {
		faces = append(faces, map[string]any{
			"x": f.X, "y": f.Y, "width": f.Width, "height": f.Height,
		})
	}
	return map[string]any{
		"dropped":      res.Dropped,
		"width":        res.Width,
		"height":       res.Height,
		"detectWidth":  res.DetectWidth,
		"detectHeight": res.DetectHeight,
		"faces":        faces,
	}
}

func StatusMap(st node.Status) map[string]any {
	m := map[string]any{
		"id":         st.ID,
		"type":       st.Type,
		"name":       st.Name,
		"display":    st.Display,
		"busy":       st.Busy,
		"closed":     st.Closed,
		"processed":  st.Processed,
		"dropped":    st.Dropped,
		"failed":     st.Failed,
		"lastWidth":  st.LastWidth,
		"lastHeight": st.LastHeight,
		"lastFaces":  st.LastFaces,
	}
	if !st.LastFrameAt.IsZero() {
		m["lastFrameAt"] = st.LastFrameAt.Format("2006-01-02T15:04:05.000Z07:00")
	}
	return m
}

// StartGRPCServer listens on port and serves srv in the background.
func StartGRPCServer(port int, srv *Server) (*grpc.Server, error) {
	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %s: %w", addr, err)
	}
	s := grpc.NewServer()
	RegisterFrameAnnotatorServer(s, srv)
	go func() {
		logger.Log().Info("gRPC server listening", zap.String("addr", addr))
		if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Log().Error("Failed to serve gRPC server", zap.Error(err))
		}
	}()
	return s, nil
}
