// Package redis 封装 go-redis 客户端与 Lua 脚本管理。
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// Client 持有底层 UniversalClient 以及按名字注册的 Lua 脚本
type Client struct {
	client  goredis.UniversalClient
	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient 根据逗号分隔的地址创建客户端，多个地址时使用集群模式
func NewClient(addrs string) (*Client, error) {
	addrList := strings.Split(addrs, ",")
	c := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs: addrList,
	})
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis %s: %w", addrs, err)
	}
	return Wrap(c), nil
}

// Wrap 包装一个已有的客户端，测试中用来接入本地实例
func Wrap(c goredis.UniversalClient) *Client {
	return &Client{client: c, scripts: make(map[string]*goredis.Script)}
}

// GetClient 返回底层客户端
func (c *Client) GetClient() goredis.UniversalClient {
	return c.client
}

// LoadScriptFromContent 注册脚本并预加载到服务端
func (c *Client) LoadScriptFromContent(name, src string) error {
	script := goredis.NewScript(src)
	if err := script.Load(context.Background(), c.client).Err(); err != nil {
		return fmt.Errorf("failed to load lua script %s: %w", name, err)
	}
	c.mu.Lock()
	c.scripts[name] = script
	c.mu.Unlock()
	return nil
}

// RunScript 执行已注册的脚本，服务端缓存丢失时 Run 会自动回退到 EVAL
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("lua script %s not loaded", name)
	}
	return script.Run(ctx, c.client, keys, args...).Result()
}

func (c *Client) Close() error {
	return c.client.Close()
}
