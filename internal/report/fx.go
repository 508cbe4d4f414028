package report

import (
	"github.com/smallbiznis/royalti/internal/report/domain"
	"github.com/smallbiznis/royalti/internal/report/normalize"
	"github.com/smallbiznis/royalti/internal/report/repository"
	"github.com/smallbiznis/royalti/internal/report/schema"
	"github.com/smallbiznis/royalti/internal/report/service"
	"go.uber.org/fx"
)

var Module = fx.Module("report.service",
	fx.Provide(repository.Provide),
	fx.Provide(schema.NewValidator),
	fx.Provide(normalize.New),
	fx.Provide(service.New),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
	fx.Provide(func(s *service.Service) domain.Processor { return s }),
)
