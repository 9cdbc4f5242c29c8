package payment

const (
	TaskBroadcast = "payment:broadcast"
	TaskConfirm   = "payment:confirm"
)

type BroadcastPayload struct {
	OrderID          string `json:"order_id"`
	AppID            string `json:"app_id"`
	RecipientAddress string `json:"recipient_address"`
	Amount           int64  `json:"amount"`
}

type ConfirmPayload struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
}
