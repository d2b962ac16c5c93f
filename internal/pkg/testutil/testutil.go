// Package testutil 为集成测试提供 MySQL/Redis/ZooKeeper 连接，依赖不可达时跳过测试。
package testutil

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"eshop/internal/pkg/persistence"
	"eshop/internal/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	defaultTestDSN       = "root:root@tcp(localhost:3306)/eshop_test?charset=utf8mb4&parseTime=true&loc=Local"
	defaultTestRedisAddr = "localhost:6379"
	defaultTestZkServer  = "localhost:2181"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewTestDB 连接测试库并迁移给定模型
func NewTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	db, err := persistence.Open(persistence.Config{DSN: getEnv("TEST_MYSQL_DSN", defaultTestDSN), MaxOpenConns: 8})
	if err != nil {
		t.Skipf("skipping MySQL integration tests: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("auto migrate: %v", err)
		}
	}
	return db
}

// Truncate 清空给定表
func Truncate(t *testing.T, db *gorm.DB, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}

// NewTestRedis 连接测试 Redis 并清空当前库
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := goredis.NewClient(&goredis.Options{Addr: getEnv("TEST_REDIS_ADDR", defaultTestRedisAddr)})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("skipping Redis integration tests: %v", err)
	}
	if err := rdb.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return redis.Wrap(rdb)
}

// ZkServers 返回可达的 ZooKeeper 地址，不可达时跳过
func ZkServers(t *testing.T) []string {
	t.Helper()
	servers := strings.Split(getEnv("TEST_ZK_SERVERS", defaultTestZkServer), ",")
	conn, err := net.DialTimeout("tcp", servers[0], time.Second)
	if err != nil {
		t.Skipf("skipping ZooKeeper integration tests: %v", err)
	}
	_ = conn.Close()
	return servers
}
