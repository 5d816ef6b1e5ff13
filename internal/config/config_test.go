package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessDuration)
	assert.Equal(t, 168*time.Hour, cfg.JWT.RefreshDuration)
	assert.Equal(t, "peerlearn", cfg.JWT.Issuer)
	assert.Equal(t, int64(5<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 8760*time.Hour, cfg.Onboarding.CookieMaxAge)
	assert.Equal(t, []string{"badword1", "badword2", "slur1", "slur2"}, cfg.Onboarding.BannedWords)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "memory", cfg.PubSub.Driver)
	assert.Equal(t, "local", cfg.Storage.Driver)
}

func TestFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("JWT_ACCESS_DURATION", "5m")
	t.Setenv("MONGODB_URI", "mongodb://mongo:27017")
	t.Setenv("S3_BUCKET", "media")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessDuration)
	assert.Equal(t, "mongodb://mongo:27017", cfg.Mongo.URI)
	assert.Equal(t, "media", cfg.Storage.S3.Bucket)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "redis", cfg.PubSub.Driver)
}

func TestFromViper_Validation(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := FromViper(viper.New())
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PUBSUB_DRIVER", "kafka")
	_, err = FromViper(viper.New())
	assert.Error(t, err)

	t.Setenv("PUBSUB_DRIVER", "")
	t.Setenv("STORAGE_DRIVER", "s3")
	_, err = FromViper(viper.New())
	assert.Error(t, err)
}
