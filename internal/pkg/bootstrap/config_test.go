package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadLocal_DefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("lock:\n  backend: zookeeper\n  lease: 10s\noutbox:\n  max_checks: 3\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadLocal(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Lock.Backend != "zookeeper" || cfg.Lock.Lease != 10*time.Second {
		t.Fatalf("unexpected lock config %+v", cfg.Lock)
	}
	if cfg.Lock.ReleaseWait != 3*time.Second || cfg.Lock.CacheWait != 500*time.Millisecond {
		t.Fatalf("expected default waits, got %+v", cfg.Lock)
	}
	if cfg.Outbox.MaxChecks != 3 || cfg.Outbox.BatchSize != 100 {
		t.Fatalf("unexpected outbox config %+v", cfg.Outbox)
	}
	if cfg.Lack.Rule != "status == 40 && !lacked" {
		t.Fatalf("unexpected lack rule %q", cfg.Lack.Rule)
	}
}

func TestLoadLocal_EnvOverride(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ESHOP_LOCK_BACKEND", "local")

	cfg, err := loadLocal("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Infra.Kafka.Brokers) != 2 || cfg.Infra.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Infra.Kafka.Brokers)
	}
	if cfg.Lock.Backend != "local" {
		t.Fatalf("expected env override, got %s", cfg.Lock.Backend)
	}
}

func TestApplyRemote(t *testing.T) {
	if err := applyRemote("lack:\n  rule: \"status == 40\"\nlog:\n  level: debug\n"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	cfg := GetCurrentConfig()
	if cfg.Lack.Rule != "status == 40" {
		t.Fatalf("expected remote rule, got %q", cfg.Lack.Rule)
	}
	if cfg.Lock.Lease != 30*time.Second {
		t.Fatalf("expected local default to survive, got %v", cfg.Lock.Lease)
	}

	if err := applyRemote("lack: [broken"); err == nil {
		t.Fatalf("expected decode error")
	}
	if GetCurrentConfig().Lack.Rule != "status == 40" {
		t.Fatalf("invalid remote config must not replace snapshot")
	}
}

func TestCreateNacosServerConfigs(t *testing.T) {
	cfgs, err := createNacosServerConfigs("10.0.0.1:8848, 10.0.0.2:8848")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfgs) != 2 || cfgs[1].IpAddr != "10.0.0.2" || cfgs[1].Port != 8848 {
		t.Fatalf("unexpected configs %+v", cfgs)
	}
	if _, err := createNacosServerConfigs("nacos"); err == nil {
		t.Fatalf("expected format error")
	}
}
