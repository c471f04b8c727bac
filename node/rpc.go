package node

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/filecoin-project/go-jsonrpc"
	"golang.org/x/xerrors"

	logging "github.com/leviar-network/go-miniwallet/lib/log"
)

var logger = logging.Logger("node")

// rpcHandler mirrors the remote daemon's wallet-facing RPC namespace.
type rpcHandler struct {
	GetHeight    func(ctx context.Context) (uint64, error)
	SendRawTx    func(ctx context.Context, blob string) error
	GetTransfers func(ctx context.Context, addr string, since uint64) ([]ExternalTransfer, error)
}

// RPCProxy is a Proxy over the daemon's JSON-RPC endpoint.
type RPCProxy struct {
	host string
	port uint16

	handler rpcHandler
	closer  jsonrpc.ClientCloser
}

var _ Proxy = (*RPCProxy)(nil)

// NewRPCProxy builds an unconnected proxy for the daemon at host:port.
func NewRPCProxy(host string, port uint16) *RPCProxy {
	return &RPCProxy{host: host, port: port}
}

func (p *RPCProxy) Init(ctx context.Context) error {
	addr := fmt.Sprintf("http://%s:%d/rpc/v0", p.host, p.port)

	closer, err := jsonrpc.NewMergeClient(ctx, addr, "Leviar",
		[]interface{}{&p.handler}, nil)
	if err != nil {
		return xerrors.Errorf("failed to init node proxy at %s %w", addr, err)
	}
	p.closer = closer

	// probe the connection so a bad address fails startup, not the first poll
	if _, err := p.handler.GetHeight(ctx); err != nil {
		closer()
		p.closer = nil
		return xerrors.Errorf("node daemon at %s not responding %w", addr, err)
	}

	logger.Info("connected to node daemon at ", addr)
	return nil
}

func (p *RPCProxy) LastKnownHeight() (uint64, error) {
	return p.handler.GetHeight(context.Background())
}

func (p *RPCProxy) RelayTransaction(ctx context.Context, blob []byte) error {
	return p.handler.SendRawTx(ctx, hex.EncodeToString(blob))
}

func (p *RPCProxy) PollTransfers(ctx context.Context, addr string, since uint64) ([]ExternalTransfer, error) {
	return p.handler.GetTransfers(ctx, addr, since)
}

func (p *RPCProxy) Close() error {
	if p.closer != nil {
		p.closer()
		p.closer = nil
	}
	return nil
}
