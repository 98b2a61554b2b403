package order

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	committed   metric.Int64Counter
	redemptions metric.Int64Counter
	conflicts   metric.Int64Counter
	rejections  metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	var (
		m   metrics
		err error
	)
	if m.committed, err = meter.Int64Counter("storefront.orders.committed",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders committed counter")
	}
	if m.redemptions, err = meter.Int64Counter("storefront.coupons.redeemed",
		metric.WithDescription("Coupon redemptions recorded with an order"),
	); err != nil {
		return nil, errors.Wrap(err, "coupon redemptions counter")
	}
	if m.conflicts, err = meter.Int64Counter("storefront.coupons.redemption_conflicts",
		metric.WithDescription("Checkouts that lost the race for the last coupon use"),
	); err != nil {
		return nil, errors.Wrap(err, "redemption conflicts counter")
	}
	if m.rejections, err = meter.Int64Counter("storefront.coupons.rejected",
		metric.WithDescription("Coupon validations rejected by a business rule"),
	); err != nil {
		return nil, errors.Wrap(err, "coupon rejections counter")
	}
	return &m, nil
}
