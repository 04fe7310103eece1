// Package web3test provides an in-memory Client implementation for tests.
package web3test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/TermiX-official/BscA2A-agent/internal/web3"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Wei converts a decimal amount into base units for test fixtures.
func Wei(value string, decimals uint8) *big.Int {
	return web3.MustParseUnits(value, decimals)
}

// ReadKey identifies a constant call for stubbing, one entry per method.
func ReadKey(to common.Address, method string) string {
	return to.Hex() + "/" + method
}

// FakeClient implements web3.Client with scripted responses.
type FakeClient struct {
	mu sync.Mutex

	AccountAddr common.Address
	Chain       *big.Int
	Explorer    string

	// Reads maps ReadKey(to, method) to the decoded return values.
	Reads map[string][]any
	// ReadErr, when set, fails every ReadCall.
	ReadErr error
	// Balances maps address hex to native balance.
	Balances map[string]*big.Int

	// SubmitErr fails SubmitTransaction when set.
	SubmitErr error
	// Submitted records every accepted TxRequest in order.
	Submitted []web3.TxRequest

	// ReceiptAfter is how many polls WaitForReceipt eats before answering.
	ReceiptAfter int
	// ReceiptStatus is the status of the receipt eventually returned.
	ReceiptStatus uint64
	// NeverConfirm forces WaitForReceipt to exhaust its budget.
	NeverConfirm bool

	// Signature is returned verbatim from SignText.
	Signature string

	polled int
}

// NewFakeClient returns a fake bound to a fixed test account on chain 56.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		AccountAddr:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Chain:         big.NewInt(56),
		Explorer:      "https://bscscan.com",
		Reads:         map[string][]any{},
		Balances:      map[string]*big.Int{},
		ReceiptStatus: types.ReceiptStatusSuccessful,
		Signature:     "0xsigned",
	}
}

func (f *FakeClient) ReadCall(_ context.Context, to common.Address, _ string, method string, _ ...any) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	values, ok := f.Reads[ReadKey(to, method)]
	if !ok {
		return nil, fmt.Errorf("未为 %s 的 %s 配置返回值", to.Hex(), method)
	}
	return values, nil
}

func (f *FakeClient) BalanceAt(_ context.Context, addr common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bal, ok := f.Balances[addr.Hex()]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (f *FakeClient) SubmitTransaction(_ context.Context, req web3.TxRequest) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return common.Hash{}, f.SubmitErr
	}
	f.Submitted = append(f.Submitted, req)
	f.polled = 0
	return common.BigToHash(big.NewInt(int64(len(f.Submitted)))), nil
}

func (f *FakeClient) WaitForReceipt(ctx context.Context, hash common.Hash, maxAttempts int, _ time.Duration) (*types.Receipt, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.polled++
		ready := !f.NeverConfirm && f.polled > f.ReceiptAfter
		status := f.ReceiptStatus
		f.mu.Unlock()
		if ready {
			return &types.Receipt{Status: status, TxHash: hash}, nil
		}
	}
	return nil, web3.ErrReceiptTimeout
}

func (f *FakeClient) SignText(_ []byte) (string, error) {
	return f.Signature, nil
}

func (f *FakeClient) FetchChainSnapshot(context.Context) (web3.ChainSnapshot, error) {
	return web3.ChainSnapshot{ChainID: f.Chain.String(), BlockNumber: "0x1"}, nil
}

func (f *FakeClient) Account() common.Address { return f.AccountAddr }
func (f *FakeClient) ChainID() *big.Int       { return new(big.Int).Set(f.Chain) }
func (f *FakeClient) ExplorerURL() string     { return f.Explorer }
func (f *FakeClient) Close()                  {}

// LastSubmitted returns the most recent accepted request, or nil.
func (f *FakeClient) LastSubmitted() *web3.TxRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Submitted) == 0 {
		return nil
	}
	return &f.Submitted[len(f.Submitted)-1]
}
