// Package di provides dependency injection configuration for Libroteca.
package di

import (
	"github.com/samber/do/v2"

	"github.com/libroteca/libroteca/internal/auth"
	"github.com/libroteca/libroteca/internal/catalog"
	"github.com/libroteca/libroteca/internal/config"
	"github.com/libroteca/libroteca/internal/di/providers"
	"github.com/libroteca/libroteca/internal/logger"
	"github.com/libroteca/libroteca/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Platform layer
	do.Provide(injector, providers.ProvideLiveManager)
	do.Provide(injector, providers.ProvideStore)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideFavoriteService)
	do.Provide(injector, providers.ProvideCommentService)

	// Reactive layer
	do.Provide(injector, providers.ProvideSessionTracker)
	do.Provide(injector, providers.ProvideFavoriteView)
	do.Provide(injector, providers.ProvideCommentAggregator)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle
// management. This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.LiveManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.LibraryService](injector)
	_ = do.MustInvoke[*service.FavoriteService](injector)
	_ = do.MustInvoke[*service.CommentService](injector)

	// Reactive layer
	_ = do.MustInvoke[*catalog.SessionTracker](injector)
	_ = do.MustInvoke[*catalog.FavoriteView](injector)
	_, err := do.Invoke[*catalog.CommentAggregator](injector)
	return err
}
