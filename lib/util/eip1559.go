package util

import (
	"context"
	"fmt"
)

// RPCCaller is satisfied by *rpc.Client.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// CheckEIP1559 reports whether the latest block carries a base fee.
func CheckEIP1559(ctx context.Context, c RPCCaller) (bool, error) {
	var head map[string]interface{}
	if err := c.CallContext(ctx, &head, "eth_getBlockByNumber", "latest", false); err != nil {
		return false, fmt.Errorf("get latest block: %w", err)
	}
	if head == nil {
		return false, fmt.Errorf("get latest block: empty response")
	}

	baseFee, exists := head["baseFeePerGas"]
	return exists && baseFee != nil, nil
}
