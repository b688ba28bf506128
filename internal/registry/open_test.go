package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenKV(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     KVConfig
		wantErr bool
	}{
		{"default is memory", KVConfig{}, false},
		{"memory", KVConfig{Backend: BackendMemory}, false},
		{"sqlite", KVConfig{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "registries.db")}, false},
		{"sqlite without path", KVConfig{Backend: BackendSQLite}, true},
		{"redis without url", KVConfig{Backend: BackendRedis}, true},
		{"unknown", KVConfig{Backend: "etcd"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, err := OpenKV(ctx, tt.cfg)
			if tt.wantErr {
				if err == nil {
					kv.Close()
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenKV: %v", err)
			}
			defer kv.Close()

			_, err = kv.Get(ctx, "asn")
			if !errors.Is(err, ErrNotCached) {
				t.Errorf("Get on empty backend = %v, want ErrNotCached", err)
			}
		})
	}
}
