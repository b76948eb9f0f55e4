package api

import (
	"context"
	"fmt"

	"github.com/cometbft/cometbft/libs/bytes"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
)

// ChainClient is the slice of the CometBFT RPC surface the gateway needs.
// *rpchttp.HTTP satisfies it; tests substitute a fake.
type ChainClient interface {
	ABCIQuery(ctx context.Context, path string, data bytes.HexBytes) (*ctypes.ResultABCIQuery, error)
	BroadcastTxCommit(ctx context.Context, tx cmttypes.Tx) (*ctypes.ResultBroadcastTxCommit, error)
}

// Dial connects to a CometBFT node's RPC endpoint.
func Dial(remote string) (*rpchttp.HTTP, error) {
	c, err := rpchttp.New(remote)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc %q: %w", remote, err)
	}
	return c, nil
}
