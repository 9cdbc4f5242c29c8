package payment

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"

	"marketplace-backend/services/order"
)

// Module wires the orchestrator as the engine's payment trigger.
var Module = fx.Module("payment.orchestrator",
	fx.Provide(
		fx.Annotate(NewOrchestrator, fx.As(new(order.PaymentSubmitter))),
	),
)

// TaskModule registers the broadcast/confirm handlers on the worker's mux.
var TaskModule = fx.Module("task.payment",
	fx.Provide(NewTask),
	fx.Invoke(registerHandlers),
)

func registerHandlers(mux *asynq.ServeMux, t *Task) {
	mux.HandleFunc(TaskBroadcast, t.HandleBroadcast)
	mux.HandleFunc(TaskConfirm, t.HandleConfirm)
}
