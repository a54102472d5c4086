package market

// EventSink receives a notification for each mutating ledger operation.
// Observers may index these for discovery; they are not load-bearing for
// correctness and implementations must not fail the originating operation.
type EventSink interface {
	ItemListed(itemID int64, creator, blobHandle string)
	ItemPurchased(itemID int64, buyer string, amount int64)
	AccessGranted(itemID int64, principal string)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) ItemListed(int64, string, string)   {}
func (NopEvents) ItemPurchased(int64, string, int64) {}
func (NopEvents) AccessGranted(int64, string)        {}

// LogEvents forwards events to a structured logger.
type LogEvents struct {
	Logger Logger
}

func (e LogEvents) ItemListed(itemID int64, creator, blobHandle string) {
	e.Logger.Info("item listed", "item", itemID, "creator", creator, "blob", blobHandle)
}

func (e LogEvents) ItemPurchased(itemID int64, buyer string, amount int64) {
	e.Logger.Info("item purchased", "item", itemID, "buyer", buyer, "amount", amount)
}

func (e LogEvents) AccessGranted(itemID int64, principal string) {
	e.Logger.Info("access granted", "item", itemID, "principal", principal)
}
