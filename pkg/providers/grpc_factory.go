package providers

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ClientFactory opens gRPC connections to an external embedding/pulse
// backend: a small constructor the rest of the system goes through instead
// of dialing directly, so a real backend can be swapped in by changing
// config rather than code.
//
// Uses insecure (plaintext) transport on the assumption the backend runs as
// a sidecar or on localhost.
type ClientFactory struct {
	addr string
}

// NewClientFactory builds a factory that dials addr on demand.
func NewClientFactory(addr string) *ClientFactory {
	return &ClientFactory{addr: addr}
}

// Dial opens a connection to the configured backend. The caller owns the
// returned conn and must Close it.
func (f *ClientFactory) Dial() (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(f.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial provider backend %s: %w", f.addr, err)
	}
	return conn, nil
}
