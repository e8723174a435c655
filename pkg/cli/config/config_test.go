package config_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/vibes/pkg/cli/config"
)

func TestCryptoConfigure(t *testing.T) {
	t.Run("valid key material", func(t *testing.T) {
		cfg := config.NewCryptoForTest(strings.Repeat("ab", 32), "state-secret")
		svc, err := cfg.Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, svc).NotNil()
	})

	t.Run("short key is rejected", func(t *testing.T) {
		cfg := config.NewCryptoForTest("abcd", "state-secret")
		_, err := cfg.Configure()
		gt.Value(t, err).NotNil()
	})

	t.Run("missing state secret is rejected", func(t *testing.T) {
		cfg := config.NewCryptoForTest(strings.Repeat("ab", 32), "")
		_, err := cfg.Configure()
		gt.Value(t, err).NotNil()
	})
}

func TestSlackConfigure(t *testing.T) {
	t.Run("builds redirect URL from base URL", func(t *testing.T) {
		cfg := config.NewSlackForTest("client-id", "client-secret", "signing")
		app, err := cfg.Configure("https://vibes.example.com")
		gt.NoError(t, err).Required()
		gt.Value(t, app.RedirectURL).Equal("https://vibes.example.com/auth/slack")
		gt.Value(t, cfg.SigningSecret()).Equal("signing")
	})

	t.Run("missing credentials are rejected", func(t *testing.T) {
		cfg := config.NewSlackForTest("", "", "")
		_, err := cfg.Configure("https://vibes.example.com")
		gt.Value(t, err).NotNil()
	})

	t.Run("missing base URL is rejected", func(t *testing.T) {
		cfg := config.NewSlackForTest("client-id", "client-secret", "")
		_, err := cfg.Configure("")
		gt.Value(t, err).NotNil()
	})
}

func TestRepositoryConfigure(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		cfg := config.NewRepositoryForTest("memory", "", "")
		repo, err := cfg.Configure(context.Background())
		gt.NoError(t, err).Required()
		gt.Value(t, repo).NotNil()
	})

	t.Run("firestore without project is rejected", func(t *testing.T) {
		cfg := config.NewRepositoryForTest("firestore", "", "")
		_, err := cfg.Configure(context.Background())
		gt.Value(t, err).NotNil()
	})

	t.Run("unknown backend is rejected", func(t *testing.T) {
		cfg := config.NewRepositoryForTest("etcd", "", "")
		_, err := cfg.Configure(context.Background())
		gt.Value(t, err).NotNil()
	})
}
