package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yclw/dus-checkin-bot/internal/domain"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "configs.json")
	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	return s, path
}

func TestLazyCreationDefaults(t *testing.T) {
	s, _ := openTestStore(t)

	cfg := s.Get("42")
	require.Equal(t, domain.DefaultAutoTime, cfg.AutoTime)
	require.Equal(t, domain.DefaultJitterRadius, cfg.JitterRadius)
	require.NotNil(t, cfg.NotifyTargets)
	require.Empty(t, cfg.NotifyTargets)
	require.NotNil(t, cfg.NotifyAddressing)
}

func TestRoundTrip(t *testing.T) {
	s, path := openTestStore(t)

	_, err := s.Update("42", func(c *domain.UserConfig) {
		c.Cookie = "sessionid=abc"
		c.Lat = "39.908722"
		c.Lng = "116.397499"
		c.ClassID = "1234"
		c.AutoEnabled = true
		c.AutoTime = "7:45"
		c.JitterRadius = 0.0001
		c.NotifyTargets["-100555"] = domain.NotifyFailureOnly
		c.NotifyAddressing["-100555"] = domain.AddressMention
	})
	require.NoError(t, err)

	reloaded, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	got := reloaded.Get("42")
	require.Equal(t, s.Get("42"), got)
	require.Equal(t, domain.NotifyFailureOnly, got.NotifyTargets["-100555"])
	require.Equal(t, domain.AddressMention, got.NotifyAddressing["-100555"])
}

func TestLegacySingleTargetMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs.json")
	legacy := `{
		"42": {
			"cookie": "sessionid=abc",
			"lat": "39.9",
			"lng": "116.4",
			"notification_target": "987654",
			"notification_level": "failure_only"
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	cfg := s.Get("42")
	require.Len(t, cfg.NotifyTargets, 1)
	require.Equal(t, domain.NotifyFailureOnly, cfg.NotifyTargets["987654"])
	// Addressing was never tracked for legacy records.
	require.Empty(t, cfg.NotifyAddressing)
}

func TestMissingMapsDefaultEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs.json")
	raw := `{"42": {"cookie": "x", "lat": "1", "lng": "2"}}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	cfg := s.Get("42")
	require.NotNil(t, cfg.NotifyTargets)
	require.Empty(t, cfg.NotifyTargets)
	require.NotNil(t, cfg.NotifyAddressing)
	// Records written before the jitter radius existed get the default,
	// not zero.
	require.Equal(t, domain.DefaultJitterRadius, cfg.JitterRadius)
}

func TestExplicitZeroJitterRadiusSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs.json")
	raw := `{"42": {"cookie": "x", "lat": "1", "lng": "2", "offset": 0}}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.Zero(t, s.Get("42").JitterRadius)
}

func TestRemoveNotificationDropsBothEntries(t *testing.T) {
	s, _ := openTestStore(t)

	_, err := s.Update("42", func(c *domain.UserConfig) {
		c.NotifyTargets["555"] = domain.NotifyAlways
		c.NotifyAddressing["555"] = domain.AddressDirect
	})
	require.NoError(t, err)

	_, err = s.Update("42", func(c *domain.UserConfig) {
		delete(c.NotifyTargets, "555")
		delete(c.NotifyAddressing, "555")
	})
	require.NoError(t, err)

	cfg := s.Get("42")
	require.Empty(t, cfg.NotifyTargets)
	require.Empty(t, cfg.NotifyAddressing)
}
