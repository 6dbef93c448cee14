package main

import (
	"time"

	"github.com/atelierhq/evolink-http/internal/evolink"
	"github.com/atelierhq/evolink-http/internal/logger"
	"github.com/atelierhq/evolink-http/internal/orchestrator"
	"github.com/atelierhq/evolink-http/internal/server"
	"github.com/atelierhq/evolink-http/internal/server/handler"
	"github.com/atelierhq/evolink-http/internal/storage"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

type EvolinkConfig struct {
	BaseURL string `mapstructure:"baseURL"`
	APIKey  string `mapstructure:"apiKey"`
	Timeout int    `mapstructure:"timeoutSeconds"`
	Retries int    `mapstructure:"retries"`
}

type OrchestratorConfig struct {
	MaxConcurrent      int    `mapstructure:"maxConcurrent"`
	PollIntervalMillis int    `mapstructure:"pollIntervalMillis"`
	StoreBackend       string `mapstructure:"storeBackend"` // file or redis
	StorePath          string `mapstructure:"storePath"`
	RedisAddr          string `mapstructure:"redisAddr"`
	RedisKey           string `mapstructure:"redisKey"`
}

type StorageConfig struct {
	UploadDir     string `mapstructure:"uploadDir"`
	PublicBaseURL string `mapstructure:"publicBaseURL"`
}

func main() {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}
	var evolinkConfig EvolinkConfig
	if err := viper.UnmarshalKey("evolink", &evolinkConfig); err != nil {
		panic(err)
	}
	var orchestratorConfig OrchestratorConfig
	if err := viper.UnmarshalKey("orchestrator", &orchestratorConfig); err != nil {
		panic(err)
	}
	var storageConfig StorageConfig
	if err := viper.UnmarshalKey("storage", &storageConfig); err != nil {
		panic(err)
	}
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "9000")
	host := viper.GetString("server.host")
	port := viper.GetString("server.port")
	apiKey := viper.GetString("server.apiKey")

	client := evolink.NewClient(evolink.Options{
		BaseURL: evolinkConfig.BaseURL,
		APIKey:  evolinkConfig.APIKey,
		Timeout: time.Duration(evolinkConfig.Timeout) * time.Second,
		Retries: evolinkConfig.Retries,
	})

	var store orchestrator.TaskStore
	switch orchestratorConfig.StoreBackend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{Addr: orchestratorConfig.RedisAddr})
		store = orchestrator.NewRedisTaskStore(redisClient, orchestratorConfig.RedisKey)
	case "file", "":
		path := orchestratorConfig.StorePath
		if path == "" {
			path = "data/tasks.json"
		}
		store = orchestrator.NewFileTaskStore(path)
	default:
		logger.Warnf("unknown task store backend %q, using in-memory store", orchestratorConfig.StoreBackend)
		store = orchestrator.NewMemoryTaskStore()
	}

	orch := orchestrator.New(orchestrator.Options{
		Client:        client,
		Store:         store,
		MaxConcurrent: orchestratorConfig.MaxConcurrent,
		PollInterval:  time.Duration(orchestratorConfig.PollIntervalMillis) * time.Millisecond,
	})
	if err := orch.Restore(); err != nil {
		logger.Warnf("failed to restore persisted tasks: %s", err)
	}
	defer orch.Close()

	uploadDir := storageConfig.UploadDir
	if uploadDir == "" {
		uploadDir = "data/uploads"
	}
	blobs, err := storage.NewFileBlobStore(uploadDir, storageConfig.PublicBaseURL)
	if err != nil {
		panic(err)
	}

	logger.Infof("service is starting, host: %s, port: %s", host, port)
	server.Start(host, port, apiKey, handler.New(client, orch, blobs))
}
