package config

import "testing"

func TestSetConfig(t *testing.T) {
	prev := GetConfig()
	t.Cleanup(func() { SetConfig(prev) })

	cfg := DefaultConfig()
	SetConfig(cfg)
	if GetConfig() != cfg {
		t.Error("GetConfig() did not return the installed config")
	}

	SetConfig(nil)
	if GetConfig() != nil {
		t.Error("GetConfig() after SetConfig(nil) is not nil")
	}
}
