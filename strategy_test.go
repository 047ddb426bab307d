package rescache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/caiofalcao/rescache"
	"github.com/stretchr/testify/assert"
)

type fakeAddressProvider struct {
	name string
	addr *rescache.AddressData
	err  error
}

func (p *fakeAddressProvider) Name() string { return p.name }
func (p *fakeAddressProvider) FetchAddress(ctx context.Context, cep string) (*rescache.AddressData, error) {
	return p.addr, p.err
}

func callAddress(ctx context.Context, p rescache.Provider[*rescache.AddressData]) (*rescache.AddressData, error) {
	return p.(*fakeAddressProvider).FetchAddress(ctx, "01001000")
}

func TestExecuteStrategy_FirstSuccessWins(t *testing.T) {
	a := &fakeAddressProvider{name: "a", err: &rescache.NotFoundError{}}
	b := &fakeAddressProvider{name: "b", addr: &rescache.AddressData{UF: "SP"}}

	got, err := rescache.ExecuteStrategy(context.Background(),
		[]rescache.Provider[*rescache.AddressData]{a, b}, callAddress)

	assert.NoError(t, err)
	assert.Equal(t, "SP", got.UF)
}

func TestExecuteStrategy_AllNotFoundIsCacheableNotFound(t *testing.T) {
	a := &fakeAddressProvider{name: "a", err: &rescache.NotFoundError{}}
	b := &fakeAddressProvider{name: "b", err: &rescache.HTTPStatusError{StatusCode: 404, Err: errors.New("404")}}

	_, err := rescache.ExecuteStrategy(context.Background(),
		[]rescache.Provider[*rescache.AddressData]{a, b}, callAddress)

	assert.ErrorIs(t, err, rescache.ErrNotFound)
}

func TestExecuteStrategy_SystemErrorDominatesNotFound(t *testing.T) {
	a := &fakeAddressProvider{name: "a", err: errors.New("network failure")}
	b := &fakeAddressProvider{name: "b", err: nil, addr: nil} // nil value == not found

	_, err := rescache.ExecuteStrategy(context.Background(),
		[]rescache.Provider[*rescache.AddressData]{a, b}, callAddress)

	var pf *rescache.ProviderFailure
	assert.ErrorAs(t, err, &pf)
	assert.Equal(t, "a", pf.Provider)
}

func TestExecuteStrategy_NilValueWithNilErrorCountsAsNotFound(t *testing.T) {
	a := &fakeAddressProvider{name: "a", addr: nil, err: nil}
	b := &fakeAddressProvider{name: "b", addr: nil, err: nil}

	_, err := rescache.ExecuteStrategy(context.Background(),
		[]rescache.Provider[*rescache.AddressData]{a, b}, callAddress)

	assert.ErrorIs(t, err, rescache.ErrNotFound)
}

func TestExecuteStrategy_TimeoutShortCircuits(t *testing.T) {
	calls := 0
	a := &fakeAddressProvider{name: "a", err: rescache.ErrFetchTimeout}
	b := &fakeAddressProvider{name: "b", addr: &rescache.AddressData{UF: "RJ"}}

	_, err := rescache.ExecuteStrategy(context.Background(),
		[]rescache.Provider[*rescache.AddressData]{a, b},
		func(ctx context.Context, p rescache.Provider[*rescache.AddressData]) (*rescache.AddressData, error) {
			calls++
			return callAddress(ctx, p)
		})

	assert.ErrorIs(t, err, rescache.ErrFetchTimeout)
	assert.Equal(t, 1, calls)
}
