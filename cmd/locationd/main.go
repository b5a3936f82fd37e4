package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/location-bridge/internal/service_registry"
	"github.com/benmeehan/location-bridge/internal/utils"
	"github.com/benmeehan/location-bridge/pkg/file"
	"github.com/benmeehan/location-bridge/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML or TOML configuration file")
	flag.Parse()

	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "locationd").Logger()

	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(config.Logging.Level)
	if err != nil {
		logger.Fatal().Err(err).Str("level", config.Logging.Level).Msg("Invalid log level")
	}
	logger = logger.Level(level)

	// Generate a unique MQTT Client ID by appending a UUID
	clientID := config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", clientID).Msg("Using MQTT client ID")

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(fileClient, logger)
	err = mqttClient.Initialize(mqtt.Options{
		Broker:             config.MQTT.Broker,
		ClientID:           clientID,
		Username:           config.MQTT.Username,
		Password:           config.MQTT.Password,
		CACertificate:      config.MQTT.CACertificate,
		InsecureSkipVerify: config.MQTT.InsecureSkipVerify,
		ConnectTimeout:     config.ConnectTimeout(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, logger)
	if err := serviceRegistry.RegisterServices(config); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Some services failed to stop")
	}
	mqttClient.Disconnect(250)
}
