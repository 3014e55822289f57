/*
Package container provides dependency injection capabilities for the dynamic cleaner backend.

This package implements a simple dependency injection container that helps manage
service dependencies and reduces tight coupling between components.
*/
package container

import (
	"fmt"
	"sync"

	"github.com/dynsweep/bili-dynamic-cleaner/biliapi"
	"github.com/dynsweep/bili-dynamic-cleaner/cache"
	"github.com/dynsweep/bili-dynamic-cleaner/config"
	"github.com/dynsweep/bili-dynamic-cleaner/engine"
	"github.com/dynsweep/bili-dynamic-cleaner/handlers"
	"github.com/dynsweep/bili-dynamic-cleaner/store"
	"github.com/sirupsen/logrus"
)

// Container holds all service dependencies
type Container struct {
	mu         sync.RWMutex
	services   map[string]interface{}
	factories  map[string]func() (interface{}, error)
	singletons map[string]interface{}
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		services:   make(map[string]interface{}),
		factories:  make(map[string]func() (interface{}, error)),
		singletons: make(map[string]interface{}),
	}
}

// Register registers a service instance
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterFactory registers a factory function for lazy service creation
func (c *Container) RegisterFactory(name string, factory func() (interface{}, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// RegisterSingleton registers a singleton service
func (c *Container) RegisterSingleton(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singletons[name] = service
}

// Get retrieves a service by name
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if service, exists := c.services[name]; exists {
		return service, nil
	}
	if singleton, exists := c.singletons[name]; exists {
		return singleton, nil
	}
	if factory, exists := c.factories[name]; exists {
		service, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to create service %s: %v", name, err)
		}
		return service, nil
	}

	return nil, fmt.Errorf("service %s not found", name)
}

// GetLogger retrieves the logger service
func (c *Container) GetLogger() (*logrus.Logger, error) {
	service, err := c.Get("logger")
	if err != nil {
		return nil, err
	}
	logger, ok := service.(*logrus.Logger)
	if !ok {
		return nil, fmt.Errorf("logger service is not of expected type")
	}
	return logger, nil
}

// GetClient retrieves the remote API client service
func (c *Container) GetClient() (*biliapi.Client, error) {
	service, err := c.Get("client")
	if err != nil {
		return nil, err
	}
	client, ok := service.(*biliapi.Client)
	if !ok {
		return nil, fmt.Errorf("client service is not of expected type")
	}
	return client, nil
}

// GetLotteryCache retrieves the lottery outcome cache service
func (c *Container) GetLotteryCache() (*cache.InMemoryCache, error) {
	service, err := c.Get("lottery_cache")
	if err != nil {
		return nil, err
	}
	lotteryCache, ok := service.(*cache.InMemoryCache)
	if !ok {
		return nil, fmt.Errorf("lottery_cache service is not of expected type")
	}
	return lotteryCache, nil
}

// GetUnfollowQueue retrieves the persisted unfollow queue service
func (c *Container) GetUnfollowQueue() (*store.UnfollowQueue, error) {
	service, err := c.Get("unfollow_queue")
	if err != nil {
		return nil, err
	}
	queue, ok := service.(*store.UnfollowQueue)
	if !ok {
		return nil, fmt.Errorf("unfollow_queue service is not of expected type")
	}
	return queue, nil
}

// GetController retrieves the run controller service
func (c *Container) GetController() (*engine.Controller, error) {
	service, err := c.Get("controller")
	if err != nil {
		return nil, err
	}
	controller, ok := service.(*engine.Controller)
	if !ok {
		return nil, fmt.Errorf("controller service is not of expected type")
	}
	return controller, nil
}

// GetHandler retrieves the handler service
func (c *Container) GetHandler() (*handlers.Handler, error) {
	service, err := c.Get("handler")
	if err != nil {
		return nil, err
	}
	handler, ok := service.(*handlers.Handler)
	if !ok {
		return nil, fmt.Errorf("handler service is not of expected type")
	}
	return handler, nil
}

// InitializeServices builds and registers all core services with proper dependencies
func (c *Container) InitializeServices(cfg *config.Config, logger *logrus.Logger) error {
	tokens := func() (config.Credentials, error) {
		return config.LoadCredentials(cfg.CredentialsFile)
	}
	client := biliapi.NewClient(cfg.BiliConfig, cfg.PipelineConfig, tokens, logger)

	lotteryCache := cache.NewInMemoryCache(cfg.PipelineConfig.LotteryCacheTTL)

	queue, err := store.OpenUnfollowQueue(cfg.QueueDBFile)
	if err != nil {
		return fmt.Errorf("failed to open unfollow queue: %w", err)
	}

	settings := config.NewSettingsStore(cfg.SettingsFile)
	journal := engine.NewJournal(cfg.PipelineConfig.JournalCapacity, logger)

	lottery := engine.NewCachedLotteryResolver(client, lotteryCache)
	dates := engine.NewForwardDateResolver(cfg.PipelineConfig.ForwardDateRetries, cfg.PipelineConfig.ForwardDateDelay)
	sweeper := engine.NewUnfollowExecutor(client, queue, cfg.PipelineConfig.UnfollowDelay, journal, logger)

	controller := engine.NewController(
		client,
		client,
		lottery,
		dates,
		queue,
		sweeper,
		settings,
		journal,
		cfg.PipelineConfig,
		cfg.BiliConfig.SubjectUserID,
		logger,
	)

	c.RegisterSingleton("logger", logger)
	c.RegisterSingleton("client", client)
	c.RegisterSingleton("lottery_cache", lotteryCache)
	c.RegisterSingleton("unfollow_queue", queue)
	c.RegisterSingleton("settings", settings)
	c.RegisterSingleton("journal", journal)
	c.RegisterSingleton("controller", controller)

	c.RegisterFactory("handler", func() (interface{}, error) {
		return handlers.NewHandler(controller, journal, settings, queue, logger), nil
	})

	return nil
}

// Close gracefully closes all service connections
func (c *Container) Close() error {
	if queue, err := c.GetUnfollowQueue(); err == nil && queue != nil {
		if err := queue.Close(); err != nil {
			return fmt.Errorf("failed to close unfollow queue: %v", err)
		}
	}
	if lotteryCache, err := c.GetLotteryCache(); err == nil && lotteryCache != nil {
		lotteryCache.Close()
	}
	return nil
}
