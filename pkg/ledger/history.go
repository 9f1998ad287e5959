package ledger

import (
	"context"
	"fmt"
)

// TransactionPage is one page of a wallet's history.
type TransactionPage struct {
	Transactions []Transaction
	Offset       int
	Limit        int
	// NextOffset is zero on the last page.
	NextOffset int
}

// ListTransactions returns a page of the wallet's transfers, reversals and fundings, newest first.
// A zero limit selects the default page size; larger limits are capped.
func (service *Service) ListTransactions(ctx context.Context, tenantID TenantID, walletID WalletID, filter TransactionFilter) (TransactionPage, error) {
	if tenantID.IsZero() {
		return TransactionPage{}, fmt.Errorf("%w: empty value", ErrInvalidTenantID)
	}
	if walletID.IsZero() {
		return TransactionPage{}, fmt.Errorf("%w: empty value", ErrInvalidWalletID)
	}
	if filter.Offset < 0 || filter.Limit < 0 {
		return TransactionPage{}, fmt.Errorf("%w: offset and limit must not be negative", ErrInvalidPage)
	}
	if filter.Kind != "" {
		if _, err := ParseTransactionKind(string(filter.Kind)); err != nil {
			return TransactionPage{}, err
		}
	}
	if filter.Status != "" {
		if _, err := ParseTransactionStatus(string(filter.Status)); err != nil {
			return TransactionPage{}, err
		}
	}
	switch {
	case filter.Limit == 0:
		filter.Limit = defaultPageSize
	case filter.Limit > maxPageSize:
		filter.Limit = maxPageSize
	}
	if _, err := service.store.GetWallet(ctx, tenantID, walletID); err != nil {
		return TransactionPage{}, err
	}

	pageSize := filter.Limit
	filter.Limit = pageSize + 1
	transactions, err := service.store.ListTransactions(ctx, tenantID, walletID, filter)
	if err != nil {
		return TransactionPage{}, err
	}
	page := TransactionPage{Offset: filter.Offset, Limit: pageSize}
	if len(transactions) > pageSize {
		transactions = transactions[:pageSize]
		page.NextOffset = filter.Offset + pageSize
	}
	page.Transactions = transactions
	return page, nil
}
