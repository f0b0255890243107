package observability

// Metric name prefixes
const (
	MetricPrefix = "lottery"
)

// Metric names
const (
	// Ledger metrics
	EntriesTotal   = MetricPrefix + ".ledger.entries_total"
	StakedWeiTotal = MetricPrefix + ".ledger.staked_wei_total"
	DrawsTotal     = MetricPrefix + ".ledger.draws_total"
	DrawEntrants   = MetricPrefix + ".ledger.draw_entrants"
	PaidOutWei     = MetricPrefix + ".ledger.paid_out_wei_total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Balance metrics
	BalanceTransactionsTotal = MetricPrefix + ".balance.transactions_total"

	// HTTP metrics
	HTTPRequestsTotal = MetricPrefix + ".http.requests_total"

	// Database metrics
	DatabaseQueriesTotal  = MetricPrefix + ".database.queries_total"
	DatabaseQueryDuration = MetricPrefix + ".database.query_duration"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelRoute     = "route"
	LabelStatus    = "status"

	// Database labels
	LabelRepository = "repository"
	LabelMethod     = "method"
)
