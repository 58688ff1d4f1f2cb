package evm

import "time"

const (
	// rpcTimeout bounds every JSON-RPC round trip.
	rpcTimeout = 10 * time.Second
)

// erc20ABI covers the ERC-20 surface the adapter touches: balance reads,
// transfers, and the privileged mint the test tokens expose.
var erc20ABI = []byte(`[
	{
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "mint",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)
