package grpc_control

import (
	"context"
	"sort"

	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/logger"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ControlService implements StreamAdminServer on top of the stream service.
type ControlService struct {
	Stream interfaces.IStreamService
	Logger *logger.Logger
}

// NewControlService creates a new instance of ControlService
func NewControlService(svc interfaces.IStreamService, log *logger.Logger) *ControlService {
	return &ControlService{
		Stream: svc,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.Stream.Stats()
	out, err := structpb.NewStruct(map[string]interface{}{
		"totalConnections":       st.TotalConnections,
		"symbolSubscriptions":    st.SymbolSubscriptions,
		"portfolioSubscriptions": st.PortfolioSubscriptions,
		"activeIntervals":        st.ActiveIntervals,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode stats: %v", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// ListSubscriptions returns the live sessions, each symbol's subscribers and
// the portfolio subscribers.
func (s *ControlService) ListSubscriptions(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap := s.Stream.Subscriptions()

	symbols := make(map[string]interface{}, len(snap.Symbols))
	for sym, ids := range snap.Symbols {
		symbols[sym] = toList(ids)
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"sessions":  toList(s.Stream.SessionIDs()),
		"symbols":   symbols,
		"portfolio": toList(snap.Portfolio),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode subscriptions: %v", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) DisconnectSession(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "session id is required")
	}

	ok := s.Stream.DisconnectSession(req.GetValue())
	if ok {
		s.Logger.Info("gRPC: disconnected session %s", req.GetValue())
	} else {
		s.Logger.Info("gRPC: session %s not connected", req.GetValue())
	}
	return wrapperspb.Bool(ok), nil
}

// -----------------------------------------------------------------------------

// structpb only accepts []interface{} for lists.
func toList(ids []string) []interface{} {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	out := make([]interface{}, len(sorted))
	for i, id := range sorted {
		out[i] = id
	}
	return out
}
