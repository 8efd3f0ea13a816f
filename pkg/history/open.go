package history

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/battos/battdiag/pkg/config"
)

// Open builds the store selected by conf.
func Open(ctx context.Context, conf config.Config) (Store, error) {
	backend := conf.HistoryBackend()
	logrus.WithField("backend", backend).Info("opening history store")

	switch backend {
	case config.BackendMemory:
		return NewMemory(DefaultRetention), nil
	case config.BackendRedis:
		return NewRedis(ctx, RedisOptions{
			Addr:     conf.RedisAddr(),
			Password: conf.RedisPassword(),
			DB:       conf.RedisDB(),
		})
	case config.BackendPostgres:
		if conf.PostgresDSN() == "" {
			return nil, pkgerrors.New("postgres history backend needs postgresDSN")
		}
		return NewPostgres(ctx, conf.PostgresDSN(), DefaultRetention)
	default:
		return nil, pkgerrors.Errorf("unknown history backend %q", backend)
	}
}
