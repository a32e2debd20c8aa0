package worker

import (
	"context"
	"log"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes storefront events and acknowledges them on
// behalf of the notification side (order confirmations, welcome messages).
// Delivery itself is out of process; this worker records and logs.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	eventHandler.OnUserRegistered(w.handleUserRegistered)
	w.eventHandler = eventHandler

	return w
}

func (w *NotificationWorker) handleOrderPlaced(_ context.Context, event *models.OrderPlacedEvent) error {
	util.OrderNotificationsTotal.Inc()
	w.logger.Info("Order confirmation queued",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.Int64("total_price", event.TotalPrice),
		zap.Int("items", len(event.Items)))
	return nil
}

func (w *NotificationWorker) handleUserRegistered(_ context.Context, event *models.UserRegisteredEvent) error {
	w.logger.Info("Welcome notification queued",
		zap.Int64("user_id", event.UserID),
		zap.String("username", event.Username))
	return nil
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}
