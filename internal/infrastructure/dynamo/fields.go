package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldStatus       = "status"
	fieldBidStatus    = "bid_status"
	fieldAgreedPrice  = "agreed_price"
	fieldOfferedPrice = "offered_price"
	fieldReaded       = "readed"
	fieldUpdatedAt    = "updated_at"
)
