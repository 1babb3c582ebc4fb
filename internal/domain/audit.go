package domain

import "time"

// Audit actions recorded for every meaningful pipeline transition.
const (
	ActionDetected         = "DETECTED"
	ActionApproved         = "APPROVED"
	ActionRejected         = "REJECTED"
	ActionSniping          = "SNIPING"
	ActionSnipeSuccess     = "SNIPE_SUCCESS"
	ActionSnipeFailed      = "SNIPE_FAILED"
	ActionSnipeSkipped     = "SNIPE_SKIPPED"
	ActionTakeProfit       = "TAKE_PROFIT"
	ActionStopLoss         = "STOP_LOSS"
	ActionExitFailed       = "EXIT_FAILED"
	ActionManualSnipe      = "MANUAL_SNIPE"
	ActionManualDump       = "MANUAL_DUMP"
	ActionClaimFees        = "CLAIM_FEES"
	ActionSniperToggled    = "SNIPER_TOGGLED"
	ActionFeedConnected    = "FEED_CONNECTED"
	ActionFeedDisconnected = "FEED_DISCONNECTED"
)

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID              int64          `json:"id"`
	Event           string         `json:"action"`
	ContractAddress string         `json:"ca,omitempty"`
	Detail          map[string]any `json:"detail"`
	CreatedAt       time.Time      `json:"timestamp"`
}

// SystemStatus is the single status row pushed by the status loop.
type SystemStatus struct {
	Status         string    `json:"status"`
	WalletAddress  string    `json:"wallet_address,omitempty"`
	BalanceSol     float64   `json:"balance_sol"`
	SniperEnabled  bool      `json:"sniper_enabled"`
	TokensScanned  int64     `json:"tokens_scanned"`
	SnipesExecuted int64     `json:"snipes_executed"`
	Kills          int64     `json:"kills"`
	Deaths         int64     `json:"deaths"`
	TotalPnL       float64   `json:"total_pnl"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// System status labels.
const (
	SystemStarting = "STARTING"
	SystemHunting  = "HUNTING"
	SystemOffline  = "OFFLINE"
)
