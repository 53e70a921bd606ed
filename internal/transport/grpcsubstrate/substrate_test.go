package grpcsubstrate

import (
	"context"
	"net"
	"testing"

	"github.com/dledger/dlnode/internal/record"
	"github.com/dledger/dlnode/internal/transport"
	"github.com/dledger/dlnode/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type fakeHandler struct {
	records map[string]*record.Record
}

func (f *fakeHandler) OnInterest(ctx context.Context, name string) (*record.Record, bool) {
	r, ok := f.records[name]
	return r, ok
}

// newBufPeer spins up a Substrate's server half over an in-memory
// bufconn listener and returns it with a client connection dialed to
// it through the same listener, so the test never touches a real port.
func newBufPeer(t *testing.T, handler transport.Handler) (server *grpc.Server, clientConn *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)

	grpcServer := grpc.NewServer()
	rs := &rpcServer{dispatch: handler.OnInterest}
	grpcServer.RegisterService(&serviceDesc, rs)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return grpcServer, cc
}

func TestFetchRoundTripOverBufconn(t *testing.T) {
	rec := &record.Record{Name: "/dledger/node3/deadbeef", Content: "***/dledger/node3", Digest: "deadbeef"}
	_, cc := newBufPeer(t, &fakeHandler{records: map[string]*record.Record{rec.Name: rec}})

	resp := new(FetchResponse)
	err := cc.Invoke(context.Background(), fetchMethod, &FetchRequest{Name: rec.Name}, resp)
	require.NoError(t, err)
	require.True(t, resp.Found)
	got, err := wire.DecodeRecord(resp.Blob)
	require.NoError(t, err)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.Content, got.Content)
}

func TestFetchOverBufconnMissReportsNotFound(t *testing.T) {
	_, cc := newBufPeer(t, &fakeHandler{records: map[string]*record.Record{}})

	resp := new(FetchResponse)
	err := cc.Invoke(context.Background(), fetchMethod, &FetchRequest{Name: "/dledger/node3/unknown"}, resp)
	require.NoError(t, err)
	assert.False(t, resp.Found)
}

func TestNotifyAndSyncDeliverToHandler(t *testing.T) {
	seen := make(chan string, 2)
	handler := transport.HandlerFunc(func(ctx context.Context, name string) (*record.Record, bool) {
		seen <- name
		return nil, false
	})
	_, cc := newBufPeer(t, handler)

	require.NoError(t, cc.Invoke(context.Background(), notifyMethod, &InterestRequest{Name: "/dledger/NOTIF/node3/deadbeef"}, new(InterestResponse)))
	require.NoError(t, cc.Invoke(context.Background(), syncMethod, &InterestRequest{Name: "/dledger/SYNC"}, new(InterestResponse)))

	assert.Equal(t, "/dledger/NOTIF/node3/deadbeef", <-seen)
	assert.Equal(t, "/dledger/SYNC", <-seen)
}

func TestMulticastSelectsNotifyVsSyncMethod(t *testing.T) {
	seen := make(chan string, 2)
	handler := transport.HandlerFunc(func(ctx context.Context, name string) (*record.Record, bool) {
		seen <- name
		return nil, false
	})

	lis := bufconn.Listen(1024 * 1024)
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&serviceDesc, &rpcServer{dispatch: handler.OnInterest})
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }
	s := NewSubstrate([]string{"passthrough:///bufnet"})
	s.dial = func(addr string) (*grpc.ClientConn, error) {
		return grpc.NewClient(addr,
			grpc.WithContextDialer(dialer),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		)
	}

	require.NoError(t, s.Multicast(context.Background(), "/dledger/NOTIF/node3/deadbeef"))
	require.NoError(t, s.Multicast(context.Background(), "/dledger/SYNC"))

	assert.Equal(t, "/dledger/NOTIF/node3/deadbeef", <-seen)
	assert.Equal(t, "/dledger/SYNC", <-seen)
}
