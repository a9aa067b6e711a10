/*
Package probe decides whether a node endpoint is ready to accept work.

# Checkers

	ws://, wss://     WebSocketChecker  upgrade, send JSON-RPC "parameters",
	                                    accept any well-formed reply
	http://, https:// HTTPChecker       any status in 200-499
	host:port, tcp:// TCPChecker        connection accepted

NewChecker picks one from the endpoint's scheme. A JSON-RPC error reply
still counts as ready: the node parsed the request, which is all
deployment needs.

# Waiting

AwaitReady polls at a fixed interval (250ms by default) until a check
passes or the timeout expires. Each check runs under the remaining budget,
so the wait never overruns. Expiry yields a *types.TimedOutError naming the
endpoint and the last failure. Options.Abort lets the caller end the wait
early, for example when the process behind the endpoint has died.

Ping is the one-shot variant used as a precondition by deploy and monitor.
Its failure wraps types.ErrNetwork.
*/
package probe
