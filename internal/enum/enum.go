package enum

// Order status codes seeded into the registry. The registry itself is
// data (admins can add codes); these are the codes the dashboard and the
// default filter know about.
const (
	StatusNew        = "NEW"
	StatusOrdered    = "ORDERED"
	StatusReceived   = "RECEIVED"
	StatusDelivering = "DELIVERING"
	StatusDone       = "DONE"
	StatusCancelled  = "CANCELLED"
)

// TerminalStatuses are excluded from the default all-orders filter and
// from pending-order counts.
var TerminalStatuses = []string{StatusDone, StatusCancelled}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Pricing calculation methods, recorded on every PriceCalc.
const (
	MethodDP         = "dp"
	MethodGreedyCeil = "greedy-ceil"
	MethodNone       = "fallback-none"
)

const DefaultCurrency = "VND"
