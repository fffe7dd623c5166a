package graph

import "time"

// getNodeTimeout resolves a node's effective execution deadline:
//  1. NodePolicy.Timeout, when the node declares one and it is positive.
//  2. defaultTimeout, the engine-wide Options.DefaultNodeTimeout.
//  3. 0, meaning unbounded execution.
//
// invokeNode is the sole caller: it wraps every Node.Run invocation in the
// timeout this resolves, so a per-node override always narrows or widens
// the engine default rather than being silently ignored.
func getNodeTimeout(policy *NodePolicy, defaultTimeout time.Duration) time.Duration {
	if policy != nil && policy.Timeout > 0 {
		return policy.Timeout
	}
	if defaultTimeout > 0 {
		return defaultTimeout
	}
	return 0
}
