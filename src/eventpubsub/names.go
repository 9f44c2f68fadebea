package eventpubsub

const (
	OrderFilledEvent   = "OrderFilledEvent"
	OrderRejectedEvent = "OrderRejectedEvent"
	AccountResetEvent  = "AccountResetEvent"
	EquitySampledEvent = "EquitySampledEvent"
	SnapshotSavedEvent = "SnapshotSavedEvent"
	Error              = "DefaultError"
)
