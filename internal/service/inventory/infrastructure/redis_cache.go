package infrastructure

import (
	"context"
	"strconv"

	"eshop/internal/pkg/redis"
	"eshop/internal/service/inventory/domain"

	pkgerrors "github.com/pkg/errors"
)

const (
	stockKeyPrefix = "inventory:stock:"

	fieldSaleStock  = "saleStockQuantity"
	fieldSaledStock = "saledStockQuantity"

	scriptWarmStock = "inventory_warm_stock"
)

// key 已存在时不覆盖，两个字段一次写入
const warmStockScript = `
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2], ARGV[3], ARGV[4])
return 1
`

// RedisStockCache 以 hash 保存库存镜像
type RedisStockCache struct {
	client *redis.Client
}

func NewRedisStockCache(client *redis.Client) (*RedisStockCache, error) {
	if err := client.LoadScriptFromContent(scriptWarmStock, warmStockScript); err != nil {
		return nil, err
	}
	return &RedisStockCache{client: client}, nil
}

func StockKey(skuCode string) string {
	return stockKeyPrefix + skuCode
}

func (c *RedisStockCache) Get(ctx context.Context, skuCode string) (*domain.StockRecord, bool, error) {
	values, err := c.client.GetClient().HGetAll(ctx, StockKey(skuCode)).Result()
	if err != nil {
		return nil, false, pkgerrors.Wrapf(err, "hgetall %s", StockKey(skuCode))
	}
	if len(values) == 0 {
		return nil, false, nil
	}
	sale, err := strconv.ParseInt(values[fieldSaleStock], 10, 64)
	if err != nil {
		return nil, false, pkgerrors.Wrapf(err, "parse %s of %s", fieldSaleStock, skuCode)
	}
	saled, err := strconv.ParseInt(values[fieldSaledStock], 10, 64)
	if err != nil {
		return nil, false, pkgerrors.Wrapf(err, "parse %s of %s", fieldSaledStock, skuCode)
	}
	return &domain.StockRecord{SkuCode: skuCode, SaleStockQuantity: sale, SaledStockQuantity: saled}, true, nil
}

func (c *RedisStockCache) Set(ctx context.Context, record *domain.StockRecord) error {
	err := c.client.GetClient().HSet(ctx, StockKey(record.SkuCode),
		fieldSaleStock, record.SaleStockQuantity,
		fieldSaledStock, record.SaledStockQuantity,
	).Err()
	return pkgerrors.Wrapf(err, "hset %s", StockKey(record.SkuCode))
}

func (c *RedisStockCache) SetIfAbsent(ctx context.Context, record *domain.StockRecord) (bool, error) {
	res, err := c.client.RunScript(ctx, scriptWarmStock, []string{StockKey(record.SkuCode)},
		fieldSaleStock, record.SaleStockQuantity, fieldSaledStock, record.SaledStockQuantity)
	if err != nil {
		return false, pkgerrors.Wrapf(err, "warm stock %s", record.SkuCode)
	}
	written, _ := res.(int64)
	return written == 1, nil
}

func (c *RedisStockCache) Delete(ctx context.Context, skuCode string) error {
	return pkgerrors.Wrapf(c.client.GetClient().Del(ctx, StockKey(skuCode)).Err(), "del %s", StockKey(skuCode))
}
