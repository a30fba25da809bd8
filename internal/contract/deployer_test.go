package contract

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-ledger/internal/domain"
	"currency-ledger/internal/keys"
	"currency-ledger/internal/registry"
)

type heldKeys map[keys.PublicKey]bool

func (h heldKeys) HasAuthority(pub keys.PublicKey) bool { return h[pub] }

func setup(t *testing.T) (*Deployer, heldKeys) {
	t.Helper()

	genesis := keys.FromPhrase("genesis").Public
	active := keys.FromPhrase("currency_active").Public
	held := heldKeys{genesis: true, active: true}

	reg := registry.New(held, genesis)
	_, err := reg.CreateAccount(domain.SystemAccount, "currency", keys.FromPhrase("currency_owner").Public, active)
	require.NoError(t, err)

	return NewDeployer(reg, held), held
}

func TestDeployer_CodeHashBeforeDeploy(t *testing.T) {
	d, _ := setup(t)

	_, ok := d.CodeHash("currency")
	assert.False(t, ok)

	_, ok = d.Deployment("currency")
	assert.False(t, ok)
	assert.Empty(t, d.Contracts())
}

func TestDeployer_DeployReplaces(t *testing.T) {
	d, _ := setup(t)

	first, err := d.Deploy("currency", []byte("code-v1"), []byte(`{"actions":[]}`))
	require.NoError(t, err)
	assert.Equal(t, Hash(sha256.Sum256([]byte("code-v1"))), first.CodeHash)

	hash, ok := d.CodeHash("currency")
	require.True(t, ok)
	assert.Equal(t, first.CodeHash, hash)

	second, err := d.Deploy("currency", []byte("code-v2"), []byte(`{"actions":[]}`))
	require.NoError(t, err)
	assert.NotEqual(t, first.CodeHash, second.CodeHash)
	assert.Equal(t, first.ABIHash, second.ABIHash)

	hash, ok = d.CodeHash("currency")
	require.True(t, ok)
	assert.Equal(t, second.CodeHash, hash)

	dep, ok := d.Deployment("currency")
	require.True(t, ok)
	assert.Equal(t, []byte("code-v2"), dep.Code)
	assert.Equal(t, []domain.Name{"currency"}, d.Contracts())
}

func TestDeployer_DeploySameCodeSameHash(t *testing.T) {
	d, _ := setup(t)

	a, err := d.Deploy("currency", []byte("same"), nil)
	require.NoError(t, err)
	b, err := d.Deploy("currency", []byte("same"), nil)
	require.NoError(t, err)
	assert.Equal(t, a.CodeHash, b.CodeHash)
}

func TestDeployer_Errors(t *testing.T) {
	d, held := setup(t)

	_, err := d.Deploy("nobody", []byte("code"), nil)
	assert.ErrorIs(t, err, domain.ErrUnknownAccount)

	key, err := d.Authorize("currency")
	require.NoError(t, err)
	assert.Equal(t, keys.FromPhrase("currency_active").Public, key)

	delete(held, keys.FromPhrase("currency_active").Public)
	_, err = d.Authorize("currency")
	assert.ErrorIs(t, err, domain.ErrAuthorization)
	_, err = d.Deploy("currency", []byte("code"), nil)
	assert.ErrorIs(t, err, domain.ErrAuthorization)

	_, ok := d.CodeHash("currency")
	assert.False(t, ok)
}

func TestHash_String(t *testing.T) {
	h := HashOf(nil)
	assert.Equal(t, Hash(sha256.Sum256(nil)), h)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", h.String())

	text, err := h.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, h.String(), string(text))
}
