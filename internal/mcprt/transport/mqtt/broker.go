package mqtt

import (
	"fmt"

	mqttserver "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"
)

// startEmbeddedBroker runs a self-contained mochi-mqtt broker on listen,
// for embedded mode: the runtime's own paho client then connects to it
// exactly as it would to an external broker. Access is restricted by an
// ACL ledger to the request/response topic tree under topicPrefix, so a
// client connected to the embedded broker can't subscribe to or publish
// on unrelated topics.
func startEmbeddedBroker(listen, topicPrefix string, logger *zap.Logger) (*mqttserver.Server, error) {
	broker := mqttserver.New(nil)
	ledger := &auth.Ledger{
		Auth: auth.AuthRules{
			{Allow: true},
		},
		ACL: auth.ACLRules{
			{
				Filters: auth.Filters{
					auth.RString(topicPrefix + "/rpc/#"): auth.ReadWrite,
				},
			},
		},
	}
	if err := broker.AddHook(new(auth.Hook), ledger); err != nil {
		return nil, fmt.Errorf("mqtt transport: add auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "mcprt-embedded", Address: listen})
	if err := broker.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("mqtt transport: add embedded listener: %w", err)
	}

	go func() {
		if err := broker.Serve(); err != nil {
			logger.Error("embedded mqtt broker stopped", zap.Error(err))
		}
	}()

	return broker, nil
}
