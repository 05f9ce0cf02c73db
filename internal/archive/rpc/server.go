package rpc

import (
	"context"
	"errors"
	"net"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/starquake/horizon/internal/archive"
)

// Server exposes an archive.Client over gRPC.
type Server struct {
	srv *grpc.Server
}

// NewServer registers a on a new gRPC server.
func NewServer(a archive.Client, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(jsonCodec{})}, opts...)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&serviceDesc, a)
	return &Server{srv: srv}
}

// Serve accepts connections on lis until Stop or GracefulStop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

// GracefulStop waits for in-flight calls before stopping.
func (s *Server) GracefulStop() {
	s.srv.GracefulStop()
}

// Stop closes all connections immediately.
func (s *Server) Stop() {
	s.srv.Stop()
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*archive.Client)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: methodListRecordings,
			Handler: unary(methodListRecordings, func(ctx context.Context, a archive.Client, req *listRecordingsRequest) (*listRecordingsResponse, error) {
				recs, err := a.ListRecordings(ctx, req.FromRecordingID, req.RecordCount)
				return &listRecordingsResponse{Recordings: recs}, err
			}),
		},
		{
			MethodName: methodListRecordingsForURI,
			Handler: unary(methodListRecordingsForURI, func(ctx context.Context, a archive.Client, req *listRecordingsRequest) (*listRecordingsResponse, error) {
				recs, err := a.ListRecordingsForURI(ctx, req.FromRecordingID, req.RecordCount, req.Channel, req.StreamID)
				return &listRecordingsResponse{Recordings: recs}, err
			}),
		},
		{
			MethodName: methodListRecording,
			Handler: unary(methodListRecording, func(ctx context.Context, a archive.Client, req *recordingRequest) (*recordingResponse, error) {
				rec, err := a.ListRecording(ctx, req.RecordingID)
				return &recordingResponse{Recording: rec}, err
			}),
		},
		{
			MethodName: methodRecordingPosition,
			Handler: unary(methodRecordingPosition, func(ctx context.Context, a archive.Client, req *recordingRequest) (*positionResponse, error) {
				pos, err := a.RecordingPosition(ctx, req.RecordingID)
				return &positionResponse{Position: pos}, err
			}),
		},
		{
			MethodName: methodPurgeSegments,
			Handler: unary(methodPurgeSegments, func(ctx context.Context, a archive.Client, req *purgeSegmentsRequest) (*purgeSegmentsResponse, error) {
				n, err := a.PurgeSegments(ctx, req.RecordingID, req.NewStartPosition)
				return &purgeSegmentsResponse{DeletedSegments: n}, err
			}),
		},
		{
			MethodName: methodStopReplay,
			Handler: unary(methodStopReplay, func(ctx context.Context, a archive.Client, req *stopReplayRequest) (*emptyResponse, error) {
				return &emptyResponse{}, a.StopReplay(ctx, req.ReplaySessionID)
			}),
		},
		{
			MethodName: methodStartReplay,
			Handler: unary(methodStartReplay, func(ctx context.Context, a archive.Client, req *startReplayRequest) (*startReplayResponse, error) {
				id, err := a.StartReplay(ctx, req.RecordingID, req.Position, req.Length, req.ReplayChannel, req.ReplayStreamID)
				return &startReplayResponse{ReplaySessionID: id}, err
			}),
		},
	},
	Metadata: "horizon/archive/v1/archive.proto",
}

// unary adapts a typed archive call to a grpc.MethodHandler.
func unary[Req, Resp any](method string, call func(context.Context, archive.Client, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, r any) (any, error) {
			resp, err := call(ctx, srv.(archive.Client), r.(*Req))
			if err != nil {
				return nil, toStatus(ctx, err)
			}
			return resp, nil
		}
		if interceptor == nil {
			return handler(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		return interceptor(ctx, req, info, handler)
	}
}

func toStatus(ctx context.Context, err error) error {
	if se, ok := archive.AsServiceError(err); ok {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(
			trailerErrorCode, strconv.Itoa(int(se.Code)),
			trailerErrorOp, se.Op,
		))
		return status.Error(grpcCode(se.Code), se.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}

func grpcCode(c archive.Code) codes.Code {
	switch c {
	case archive.CodeUnknownRecording, archive.CodeUnknownReplay:
		return codes.NotFound
	case archive.CodeInvalidPosition:
		return codes.InvalidArgument
	default:
		return codes.FailedPrecondition
	}
}
