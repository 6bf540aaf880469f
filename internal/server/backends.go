package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskforge/apiserver/config"
	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/internal/mq"
	"github.com/taskforge/apiserver/internal/notify"
	"github.com/taskforge/apiserver/internal/services"
	"github.com/taskforge/apiserver/internal/storage"
	"github.com/taskforge/apiserver/internal/store"
)

// NewQueue connects to the broker selected by MQ_BACKEND and binds it to
// the notification channel.
func NewQueue(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	var (
		backend mq.Backend
		err     error
	)
	switch cfg.MQ.Backend {
	case config.MQBackendMemory:
		backend = mq.NewMemory(0)
	case config.MQBackendRabbitMQ:
		backend, err = mq.NewRabbitMQClient(cfg.RabbitMQ)
	case config.MQBackendPubSub:
		backend, err = mq.NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unsupported MQ_BACKEND %q", cfg.MQ.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.MQ.Backend, err)
	}
	return mq.New(backend, cfg.MQ.Channel), nil
}

// NewMailer delivers over SMTP when SMTP_HOST is set and logs the rendered
// emails otherwise.
func NewMailer(cfg config.SMTPConfig, log logging.Logger) (*notify.Mailer, error) {
	if cfg.Host == "" {
		return notify.NewMailer(cfg.From, notify.NewLogTransport(log)), nil
	}
	transport, err := notify.NewSMTPTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}
	return notify.NewMailer(cfg.From, transport), nil
}

type closingAvatars struct {
	*storage.Avatars
	close func() error
}

func (c closingAvatars) Close() error {
	return c.close()
}

// NewAvatarStore returns the avatar store selected by AVATAR_BACKEND. Object
// backends get their bucket created on first use.
func NewAvatarStore(ctx context.Context, cfg config.Config, dbConn *sql.DB) (services.AvatarStore, error) {
	switch cfg.Avatar.Backend {
	case "", config.AvatarBackendDB:
		return store.NewAvatarRepository(dbConn), nil
	case config.AvatarBackendMinio:
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		avatars := storage.NewAvatars(client)
		if err := avatars.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure minio bucket %s: %w", client.Bucket(), err)
		}
		return avatars, nil
	case config.AvatarBackendGCS:
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		avatars := storage.NewAvatars(client)
		if err := avatars.EnsureBucket(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ensure gcs bucket %s: %w", client.Bucket(), err)
		}
		return closingAvatars{Avatars: avatars, close: client.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported AVATAR_BACKEND %q", cfg.Avatar.Backend)
	}
}
