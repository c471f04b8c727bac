package build

const (
	CoinName = "Leviar"
	CoinUnit = "LVR"

	// Amounts are carried as atomic units; one coin is 10^CoinDecimals units.
	CoinDecimals = 12

	// MinimumFee is the network minimum transaction fee in atomic units.
	MinimumFee uint64 = 1000000

	// DefaultDaemonPort is the RPC port of the remote node daemon.
	DefaultDaemonPort = 17082

	// PaymentIDLength is the hex length of a payment identifier.
	PaymentIDLength = 64

	// TransactionHashLength is the hex length of a transaction hash.
	TransactionHashLength = 64

	// UnconfirmedHeight marks a transaction not yet included in a block.
	UnconfirmedHeight uint64 = 1<<64 - 1
)
