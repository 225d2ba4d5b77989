// Package mqtt implements the MQTT transport: a paho client subscribed
// to a per-client request topic, dispatching each payload exactly as a
// Streamable HTTP POST body, in either client mode (an external broker)
// or embedded mode (a self-hosted mochi-mqtt broker on loopback).
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqttclient "github.com/eclipse/paho.mqtt.golang"
	mqttserver "github.com/mochi-mqtt/server/v2"
	"go.uber.org/zap"

	"github.com/edgecomet/mcprt/internal/common/configtypes"
	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
	"github.com/edgecomet/mcprt/internal/mcprt/ratelimit"
	"github.com/edgecomet/mcprt/internal/mcprt/rpc"
)

const qos1 = byte(1)

// Server owns the paho client (and, in embedded mode, the in-process
// broker it talks to) for the MQTT transport.
type Server struct {
	cfg        configtypes.MQTTConfig
	dispatcher *rpc.Dispatcher
	limiter    *ratelimit.Limiter
	metrics    *metrics.Metrics
	logger     *zap.Logger

	broker *mqttserver.Server
	client mqttclient.Client
}

// New returns a Server. limiter may be nil to disable rate limiting.
// Call Start to connect (and, in embedded mode, boot the in-process
// broker).
func New(cfg configtypes.MQTTConfig, dispatcher *rpc.Dispatcher, limiter *ratelimit.Limiter, m *metrics.Metrics, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, dispatcher: dispatcher, limiter: limiter, metrics: m, logger: logger}
}

// Start connects the paho client (booting the embedded broker first, in
// embedded mode) and subscribes to the request topic.
func (s *Server) Start() error {
	brokerURL := s.cfg.BrokerURL
	if s.cfg.Mode == configtypes.MQTTModeEmbedded {
		broker, err := startEmbeddedBroker(s.cfg.EmbeddedListen, s.cfg.TopicPrefix, s.logger)
		if err != nil {
			return err
		}
		s.broker = broker
		brokerURL = fmt.Sprintf("tcp://%s", s.cfg.EmbeddedListen)
	}

	opts := mqttclient.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(c mqttclient.Client) {
		requestTopic := s.requestTopic()
		if token := c.Subscribe(requestTopic, qos1, s.onMessage); token.Wait() && token.Error() != nil {
			s.logger.Error("mqtt subscribe failed", zap.String("topic", requestTopic), zap.Error(token.Error()))
		}
	})

	client := mqttclient.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt transport: connect to %s: %w", brokerURL, token.Error())
	}
	s.client = client

	s.logger.Info("mqtt transport connected", zap.String("broker", brokerURL), zap.String("mode", s.cfg.Mode))
	return nil
}

// Close disconnects the paho client and, in embedded mode, stops the
// in-process broker.
func (s *Server) Close() error {
	if s.client != nil {
		s.client.Disconnect(250)
	}
	if s.broker != nil {
		return s.broker.Close()
	}
	return nil
}

func (s *Server) requestTopic() string {
	return fmt.Sprintf("%s/rpc/request/+", s.cfg.TopicPrefix)
}

func (s *Server) responseTopic(clientID string) string {
	return fmt.Sprintf("%s/rpc/response/%s", s.cfg.TopicPrefix, clientID)
}

// onMessage runs on paho's own callback goroutine. It dispatches the
// payload exactly as a Streamable HTTP POST body and publishes the
// result to that client's response topic.
func (s *Server) onMessage(c mqttclient.Client, msg mqttclient.Message) {
	if s.metrics != nil {
		s.metrics.MQTTMessagesReceived.Inc()
	}

	clientID := clientIDFromTopic(msg.Topic(), s.cfg.TopicPrefix)
	if clientID == "" {
		s.logger.Warn("mqtt message on malformed topic", zap.String("topic", msg.Topic()))
		return
	}

	if s.limiter != nil && !s.limiter.Allow(clientID) {
		if s.metrics != nil {
			s.metrics.RateLimitDeniedTotal.WithLabelValues(clientID).Inc()
		}
		s.logger.Warn("mqtt client rate limited", zap.String("client_id", clientID))
		return
	}
	if s.metrics != nil && s.limiter != nil {
		s.metrics.RateLimitAllowedTotal.WithLabelValues(clientID).Inc()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := s.dispatcher.Dispatch(ctx, msg.Payload())
	if err != nil {
		s.logger.Error("mqtt dispatch failed", zap.Error(err))
		return
	}
	if resp == nil {
		return
	}

	token := c.Publish(s.responseTopic(clientID), qos1, false, resp)
	if token.Wait() && token.Error() != nil {
		s.logger.Error("mqtt publish failed", zap.String("client_id", clientID), zap.Error(token.Error()))
		return
	}
	if s.metrics != nil {
		s.metrics.MQTTMessagesPublished.Inc()
	}
}

// clientIDFromTopic extracts the trailing path segment of a
// "<prefix>/rpc/request/<client-id>" topic.
func clientIDFromTopic(topic, prefix string) string {
	wantPrefix := prefix + "/rpc/request/"
	if !strings.HasPrefix(topic, wantPrefix) {
		return ""
	}
	return topic[len(wantPrefix):]
}
