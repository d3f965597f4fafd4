package algorand

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/TADebugs/ALGOLEND-AI/internal/credit"
	"github.com/TADebugs/ALGOLEND-AI/internal/logging"
	"github.com/TADebugs/ALGOLEND-AI/internal/pattern"
)

// MaxHistoryLimit caps a single transaction history page.
const MaxHistoryLimit = 1000

type algodAccount struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type indexerAccount struct {
	Account struct {
		CreatedAtRound uint64 `json:"created-at-round"`
	} `json:"account"`
}

type indexerBlock struct {
	Round     uint64 `json:"round"`
	Timestamp int64  `json:"timestamp"`
}

type indexerTransaction struct {
	ID                 string `json:"id"`
	Sender             string `json:"sender"`
	TxType             string `json:"tx-type"`
	RoundTime          int64  `json:"round-time"`
	ConfirmedRound     uint64 `json:"confirmed-round"`
	PaymentTransaction *struct {
		Receiver string `json:"receiver"`
		Amount   int64  `json:"amount"`
	} `json:"payment-transaction,omitempty"`
}

type indexerTransactions struct {
	Transactions []indexerTransaction `json:"transactions"`
}

// GetAccount returns the balance and creation time of address. It returns
// ErrAccountNotFound when algod has no record of it. A creation time that
// cannot be resolved is left nil rather than failing the call.
func (c *Client) GetAccount(ctx context.Context, address string) (*credit.AccountProfile, error) {
	var acct algodAccount
	path := "/v2/accounts/" + url.PathEscape(address)
	if err := c.get(ctx, UpstreamAlgod, "/v2/accounts/{address}", path, nil, &acct); err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("fetch account: %w", err)
	}

	profile := &credit.AccountProfile{
		Address:           address,
		BalanceMicroUnits: acct.Amount,
	}

	createdAt, err := c.creationTime(ctx, address)
	if err != nil {
		logging.Account(ctx, address).Warn("account creation time unavailable", "error", err)
	} else {
		profile.CreatedAt = createdAt
	}
	return profile, nil
}

// creationTime resolves the timestamp of the block in which address was
// created, via the indexer.
func (c *Client) creationTime(ctx context.Context, address string) (*time.Time, error) {
	var acct indexerAccount
	q := url.Values{"exclude": {"all"}}
	path := "/v2/accounts/" + url.PathEscape(address)
	if err := c.get(ctx, UpstreamIndexer, "/v2/accounts/{address}", path, q, &acct); err != nil {
		return nil, err
	}
	if acct.Account.CreatedAtRound == 0 {
		return nil, fmt.Errorf("indexer reported no creation round")
	}

	var block indexerBlock
	path = "/v2/blocks/" + strconv.FormatUint(acct.Account.CreatedAtRound, 10)
	q = url.Values{"header-only": {"true"}}
	if err := c.get(ctx, UpstreamIndexer, "/v2/blocks/{round}", path, q, &block); err != nil {
		return nil, err
	}
	if block.Timestamp <= 0 {
		return nil, fmt.Errorf("block %d has no timestamp", acct.Account.CreatedAtRound)
	}
	t := time.Unix(block.Timestamp, 0).UTC()
	return &t, nil
}

// GetTransactionHistory returns up to limit of the account's most recent
// transactions. It never fails: upstream errors are logged and yield an
// empty history. Only payments carry an amount and receiver.
func (c *Client) GetTransactionHistory(ctx context.Context, address string, limit int) []pattern.Transaction {
	limit = max(1, min(limit, MaxHistoryLimit))

	var page indexerTransactions
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	path := "/v2/accounts/" + url.PathEscape(address) + "/transactions"
	if err := c.get(ctx, UpstreamIndexer, "/v2/accounts/{address}/transactions", path, q, &page); err != nil {
		logging.Account(ctx, address).Warn("transaction history unavailable", "error", err)
		return []pattern.Transaction{}
	}

	txs := make([]pattern.Transaction, 0, len(page.Transactions))
	for _, t := range page.Transactions {
		tx := pattern.Transaction{
			Sender:            t.Sender,
			ConfirmedSequence: t.RoundTime,
		}
		if t.PaymentTransaction != nil {
			tx.Receiver = t.PaymentTransaction.Receiver
			tx.AmountMicroUnits = t.PaymentTransaction.Amount
		}
		txs = append(txs, tx)
	}
	return txs
}
