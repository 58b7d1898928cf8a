package lib

import (
	"errors"
	"testing"
)

func TestConfigValid(t *testing.T) {
	t.Run("complete config", func(t *testing.T) {
		if err := testConfig().Valid(); err != nil {
			t.Fatal(err)
		}
	})

	for _, tt := range []struct {
		name   string
		mutate func(c *Config)
		err    error
	}{
		{
			name:   "missing client ID",
			mutate: func(c *Config) { c.ClientID = "" },
			err:    ErrNoClientID,
		},
		{
			name:   "missing guild ID",
			mutate: func(c *Config) { c.GuildID = "" },
			err:    ErrNoGuildID,
		},
		{
			name:   "missing admin ID",
			mutate: func(c *Config) { c.AdminID = "" },
			err:    ErrNoAdminID,
		},
		{
			name:   "missing verified role ID",
			mutate: func(c *Config) { c.VerifiedRoleID = "" },
			err:    ErrNoVerifiedRoleID,
		},
		{
			name:   "missing panel channel ID",
			mutate: func(c *Config) { c.PanelChannelID = "" },
			err:    ErrNoPanelChannelID,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			conf := testConfig()
			tt.mutate(&conf)

			if err := conf.Valid(); !errors.Is(err, tt.err) {
				t.Errorf("wanted %v but got: %v", tt.err, err)
			}
		})
	}
}
