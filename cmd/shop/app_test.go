package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardians-shop/internal/infrastructure/payment"
)

func TestMetricPrefix(t *testing.T) {
	assert.Equal(t, "guardians_shop", metricPrefix("guardians-shop"))
	assert.Equal(t, "shop_v2", metricPrefix("shop.v2"))
}

func TestNewAppInMemory(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("PAYMENT_PROVIDER", "mock")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("LOG_LEVEL", "ERROR")

	a, err := newApp(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Nil(t, a.db)
	assert.Nil(t, a.dbHealth)
	assert.IsType(t, &payment.MockGateway{}, a.gateway)

	p, err := a.products.FindBySKU(context.Background(), "vip_oficial")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NotNil(t, a.orderService())
	assert.NotNil(t, a.deliveryWorker())
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("PAYMENT_PROVIDER", "mercadopago")
	t.Setenv("MP_ACCESS_TOKEN", "")

	_, err := newApp(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MP_ACCESS_TOKEN")
}
