package providers

import (
	"github.com/orchestra-mcp/realtime/src/bridge"
	"github.com/orchestra-mcp/realtime/src/hub"
	"github.com/orchestra-mcp/realtime/src/service"
	"github.com/orchestra-mcp/realtime/src/transport"
	"github.com/orchestra-mcp/realtime/src/types"
)

// Compile-time interface assertions.
var (
	_ types.Conn             = (*transport.Conn)(nil)
	_ types.Dialer           = (*transport.Dialer)(nil)
	_ bridge.Bridge          = (*bridge.RedisBridge)(nil)
	_ bridge.BroadcastTarget = (*hub.Hub)(nil)
	_ hub.MessageBridge      = (*bridge.RedisBridge)(nil)
	_ service.Sequence       = (*bridge.RedisSequence)(nil)
	_ service.Sequence       = (*service.MemorySequence)(nil)
)
