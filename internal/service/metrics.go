package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Orders placed through checkout.",
	})
	orderRevenue = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_revenue_minor_units_total",
		Help: "Sum of order totals in minor units, by currency.",
	}, []string{"currency"})
	checkoutRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_rejections_total",
		Help: "Checkouts refused, by reason.",
	}, []string{"reason"})
	cartRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_rejections_total",
		Help: "Cart writes refused by the availability rules, by reason.",
	}, []string{"reason"})
	cartAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_adjustments_total",
		Help: "Lines changed by cart reconciliation, by kind.",
	}, []string{"kind"})
	orderStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_status_changes_total",
		Help: "Order status transitions, by target status.",
	}, []string{"status"})
)
