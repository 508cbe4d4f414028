package payout

import (
	"github.com/smallbiznis/royalti/internal/payout/remittance"
	"github.com/smallbiznis/royalti/internal/payout/repository"
	"github.com/smallbiznis/royalti/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.Provide),
	fx.Provide(remittance.New),
	fx.Provide(service.New),
)
