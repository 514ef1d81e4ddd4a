package orders

const (
	TopicCheckoutCompleted = "book.checkout.completed"
	TopicContentGenerated  = "book.content.generated"
)

// Partition by owner key so one shopper's events stay ordered.
func PartitionKey(ownerKey string) []byte { return []byte(ownerKey) }
