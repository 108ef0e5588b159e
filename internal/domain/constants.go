package domain

// RelayMode is the dispatch strategy for an API.
type RelayMode string

const (
	// RelayModeDirect forwards the call straight to the provider's public endpoint.
	RelayModeDirect RelayMode = "DIRECT"
	// RelayModeDouble forwards through the gateway's internal hop, which calls
	// the provider's hidden endpoint.
	RelayModeDouble RelayMode = "DOUBLE"
)

const (
	SettlementPending   = "PENDING"
	SettlementCompleted = "COMPLETED"
	SettlementFailed    = "FAILED"
	SettlementDirectP2P = "DIRECT_P2P"
)

// Gateway headers. The first three are stripped before any upstream hop.
const (
	HeaderDeveloperAddress = "X-Developer-Address"
	HeaderPayment          = "X-Payment"
	HeaderTokenHash        = "X-Token-Hash"
	HeaderInternalAuth     = "X-Internal-Auth"
	HeaderRequestID        = "X-Request-Id"
)
