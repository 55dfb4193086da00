package backend

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// CompleteMethod is the sidecar's sampling RPC. Request and response are
// google.protobuf.Struct, so no generated stubs are needed on either side.
const CompleteMethod = "/sproto.v1.Sampler/Complete"

// #region client-struct

// Sidecar samples from a local model served by an inference sidecar over gRPC.
type Sidecar struct {
	conn grpc.ClientConnInterface
	cc   *grpc.ClientConn
}

// #endregion client-struct

// #region constructor

// NewSidecar connects to the inference sidecar at addr.
func NewSidecar(addr string) (*Sidecar, error) {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Sidecar{conn: cc, cc: cc}, nil
}

// NewSidecarWithConn creates a Sidecar over an injected connection.
// Used for testing without a real gRPC server.
func NewSidecarWithConn(conn grpc.ClientConnInterface) *Sidecar {
	return &Sidecar{conn: conn}
}

// #endregion constructor

// #region close

// Close shuts down the gRPC connection.
func (s *Sidecar) Close() error {
	if s.cc == nil {
		return nil
	}
	return s.cc.Close()
}

// #endregion close

// #region complete

// Complete asks the sidecar for samples sequences in one call.
func (s *Sidecar) Complete(ctx context.Context, p Prompt, samples int) ([]string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"prompt":               p.Text(),
		"num_return_sequences": samples,
		"max_new_tokens":       p.MaxTokens,
		"temperature":          float64(p.Temperature),
		"do_sample":            true,
	})
	if err != nil {
		return nil, Permanent(fmt.Errorf("build request: %w", err))
	}

	resp := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, CompleteMethod, req, resp); err != nil {
		return nil, ClassifyGRPC(fmt.Errorf("complete rpc: %w", err))
	}

	field, ok := resp.GetFields()["completions"]
	if !ok {
		return nil, Transient(errors.New("complete rpc: response has no completions"))
	}
	values := field.GetListValue().GetValues()
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, isStr := v.GetKind().(*structpb.Value_StringValue); isStr {
			out = append(out, v.GetStringValue())
		}
	}
	if len(out) > samples {
		out = out[:samples]
	}
	return out, nil
}

// #endregion complete
