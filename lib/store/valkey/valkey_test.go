package valkey

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/uvensys/cerberus/lib/store/storetest"
)

// TestImpl needs a live server. Point VALKEY_URL at one to run it, eg:
//
//	VALKEY_URL=redis://localhost:6379/0 go test ./lib/store/valkey
func TestImpl(t *testing.T) {
	url := os.Getenv("VALKEY_URL")
	if url == "" {
		t.Skip("set VALKEY_URL to run this test")
		return
	}

	data, err := json.Marshal(Config{URL: url})
	if err != nil {
		t.Fatal(err)
	}

	storetest.Common(t, Factory{}, json.RawMessage(data))
}

func TestConfigValid(t *testing.T) {
	for _, tt := range []struct {
		name string
		cfg  Config
		err  error
	}{
		{
			name: "missing url",
			cfg:  Config{},
			err:  ErrNoURL,
		},
		{
			name: "bad url",
			cfg:  Config{URL: "not a url"},
			err:  ErrBadURL,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Valid(); !errors.Is(err, tt.err) {
				t.Errorf("wanted %v but got: %v", tt.err, err)
			}
		})
	}

	t.Run("good url", func(t *testing.T) {
		cfg := Config{URL: fmt.Sprintf("redis://%s:6379/0", "localhost")}
		if err := cfg.Valid(); err != nil {
			t.Error(err)
		}
	})
}
