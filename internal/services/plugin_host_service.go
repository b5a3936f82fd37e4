package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/benmeehan/location-bridge/internal/models"
	"github.com/benmeehan/location-bridge/internal/utils"
	"github.com/benmeehan/location-bridge/pkg/host"
	"github.com/benmeehan/location-bridge/pkg/mqtt"
	"github.com/benmeehan/location-bridge/pkg/plugin"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// PluginHostService loads a plugin and exposes it over MQTT. Method calls
// received on the methods topic run serially on the host main loop; signals
// emitted by the plugin are published on per-signal topics.
type PluginHostService struct {
	// Configuration fields
	topicPrefix string
	qos         int
	queueSize   int

	// Dependencies
	mqttClient mqtt.MQTTClient
	activity   host.Activity
	logger     zerolog.Logger

	// Internal state management
	plugin  plugin.Plugin
	methods map[string]struct{}
	signals cmap.ConcurrentMap[string, plugin.SignalInfo]
	looper  *utils.Looper
	running bool
}

// NewPluginHostService creates a new PluginHostService.
func NewPluginHostService(topicPrefix string, qos, queueSize int, mqttClient mqtt.MQTTClient,
	activity host.Activity, logger zerolog.Logger) *PluginHostService {
	return &PluginHostService{
		topicPrefix: topicPrefix,
		qos:         qos,
		queueSize:   queueSize,
		mqttClient:  mqttClient,
		activity:    activity,
		logger:      logger,
		signals:     cmap.New[plugin.SignalInfo](),
	}
}

// RegisterPlugin records the plugin's methods and signals. It must be called before Start.
func (h *PluginHostService) RegisterPlugin(p plugin.Plugin) error {
	if h.plugin != nil {
		return fmt.Errorf("plugin %s is already registered", h.plugin.Name())
	}

	h.plugin = p
	h.methods = utils.SliceToSet(p.Methods())
	for _, s := range p.Signals() {
		h.signals.Set(s.Name, s)
	}

	h.logger.Info().
		Str("plugin", p.Name()).
		Strs("methods", p.Methods()).
		Int("signals", h.signals.Count()).
		Msg("Plugin registered")
	return nil
}

// Start launches the main loop, subscribes to the methods topic and hands
// the activity to the plugin.
func (h *PluginHostService) Start() error {
	if h.running {
		h.logger.Warn().Msg("PluginHostService is already running")
		return errors.New("plugin host service is already running")
	}
	if h.plugin == nil {
		return errors.New("no plugin registered")
	}

	h.looper = utils.NewLooper(h.queueSize)
	p, activity := h.plugin, h.activity
	h.looper.Post(func() { p.OnMainCreate(activity) })

	topic := h.methodsTopic()
	token := h.mqttClient.Subscribe(topic, byte(h.qos), h.HandleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to methods topic")
		h.looper.Quit()
		h.looper = nil
		return err
	}

	h.running = true
	h.logger.Info().Str("topic", topic).Str("plugin", h.plugin.Name()).Msg("PluginHostService started")
	return nil
}

// Stop unsubscribes and drains the main loop.
func (h *PluginHostService) Stop() error {
	if !h.running {
		h.logger.Warn().Msg("PluginHostService is not running")
		return errors.New("plugin host service is not running")
	}
	h.running = false

	topic := h.methodsTopic()
	token := h.mqttClient.Unsubscribe(topic)
	token.Wait()
	err := token.Error()
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("Failed to unsubscribe from methods topic")
	}

	h.looper.Quit()

	h.logger.Info().Msg("PluginHostService stopped")
	return err
}

// Post runs task on the host main loop.
func (h *PluginHostService) Post(task func()) bool {
	if h.looper == nil {
		return false
	}
	return h.looper.Post(task)
}

// HandleMessage decodes a method call and queues it on the main loop.
func (h *PluginHostService) HandleMessage(_ MQTT.Client, msg MQTT.Message) {
	var cmd models.PluginCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		h.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to decode plugin command")
		return
	}

	if _, ok := h.methods[cmd.Method]; !ok {
		h.logger.Warn().Str("method", cmd.Method).Msg("Ignoring call to unregistered method")
		return
	}

	p := h.plugin
	posted := h.Post(func() {
		if err := p.Call(cmd.Method, plugin.Args(cmd.Args)); err != nil {
			h.logger.Error().Err(err).Str("method", cmd.Method).Msg("Plugin method failed")
		}
	})
	if !posted {
		h.logger.Warn().Str("method", cmd.Method).Msg("Main loop stopped, dropping plugin command")
		return
	}

	h.logger.Debug().Str("method", cmd.Method).Msg("Plugin command queued")
}

// EmitSignal publishes a registered signal. It may be called from any goroutine.
func (h *PluginHostService) EmitSignal(name string, args ...interface{}) error {
	info, ok := h.signals.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", plugin.ErrUnknownSignal, name)
	}
	if len(args) != len(info.Params) {
		return fmt.Errorf("%w: %s takes %d, got %d", plugin.ErrSignalArity, name, len(info.Params), len(args))
	}

	payload, err := json.Marshal(models.PluginSignal{
		Plugin: h.plugin.Name(),
		Signal: name,
		Args:   args,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize signal %s: %w", name, err)
	}

	topic := h.signalTopic(name)
	token := h.mqttClient.Publish(topic, byte(h.qos), false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish signal %s: %w", name, err)
	}

	h.logger.Debug().Str("topic", topic).Msg("Signal published")
	return nil
}

func (h *PluginHostService) methodsTopic() string {
	return fmt.Sprintf("%s/%s/methods", h.topicPrefix, h.plugin.Name())
}

func (h *PluginHostService) signalTopic(signal string) string {
	return fmt.Sprintf("%s/%s/signals/%s", h.topicPrefix, h.plugin.Name(), signal)
}
