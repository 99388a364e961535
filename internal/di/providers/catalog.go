package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/libroteca/libroteca/internal/catalog"
	"github.com/libroteca/libroteca/internal/logger"
	"github.com/libroteca/libroteca/internal/service"
)

// ProvideSessionTracker provides the session tracker wired to the auth
// service's state channel.
func ProvideSessionTracker(i do.Injector) (*catalog.SessionTracker, error) {
	authService := do.MustInvoke[*service.AuthService](i)
	return catalog.NewSessionTracker(authService.States()), nil
}

// ProvideFavoriteView provides the signed-in user's favorites view.
func ProvideFavoriteView(i do.Injector) (*catalog.FavoriteView, error) {
	liveHandle := do.MustInvoke[*LiveManagerHandle](i)
	favorites := do.MustInvoke[*service.FavoriteService](i)
	session := do.MustInvoke[*catalog.SessionTracker](i)
	log := do.MustInvoke[*logger.Logger](i)

	return catalog.NewFavoriteView(context.Background(), liveHandle.Manager, favorites, session, log.Logger), nil
}

// ProvideCommentAggregator provides the per-book comment aggregator.
func ProvideCommentAggregator(i do.Injector) (*catalog.CommentAggregator, error) {
	liveHandle := do.MustInvoke[*LiveManagerHandle](i)
	comments := do.MustInvoke[*service.CommentService](i)
	session := do.MustInvoke[*catalog.SessionTracker](i)
	log := do.MustInvoke[*logger.Logger](i)

	return catalog.NewCommentAggregator(context.Background(), liveHandle.Manager, comments, session, log.Logger)
}
