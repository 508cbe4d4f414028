package directory

import (
	"github.com/smallbiznis/royalti/internal/cache"
	"github.com/smallbiznis/royalti/internal/directory/repository"
	"github.com/smallbiznis/royalti/internal/directory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("directory.service",
	fx.Provide(cache.NewOwnerCache),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
