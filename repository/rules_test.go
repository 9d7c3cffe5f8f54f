package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func openTestStore(t *testing.T) *RuleStore {
	t.Helper()
	store, err := Open(context.Background(), ":memory:", nil)
	assert.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSeededCodeRules(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	aba, err := store.SheetForCode(ctx, "1082")
	assert.NoError(t, err)
	assert.Equal(t, AbaServidor, aba)

	aba, err = store.SheetForCode(ctx, "1646")
	assert.NoError(t, err)
	assert.Equal(t, AbaPatronal, aba)

	// Unknown codes resolve to empty, not an error.
	aba, err = store.SheetForCode(ctx, "9999")
	assert.NoError(t, err)
	assert.Empty(t, aba)

	aba, err = store.SheetForCode(ctx, "")
	assert.NoError(t, err)
	assert.Empty(t, aba)
}

func TestSeededCNPJRules(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	uo, err := store.UOForCNPJ(ctx, "18.715.565/0001-10")
	assert.NoError(t, err)
	assert.Equal(t, "1071", uo)

	// Lookup normalizes bare digit strings to the stored format.
	uo, err = store.UOForCNPJ(ctx, "18715565000110")
	assert.NoError(t, err)
	assert.Equal(t, "1071", uo)

	uo, err = store.UOForCNPJ(ctx, "99.999.999/9999-99")
	assert.NoError(t, err)
	assert.Empty(t, uo)
}

func TestAddAndRemoveCode(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	assert.NoError(t, store.AddCode(ctx, "2100", AbaServidor))
	aba, err := store.SheetForCode(ctx, "2100")
	assert.NoError(t, err)
	assert.Equal(t, AbaServidor, aba)

	assert.NoError(t, store.RemoveCode(ctx, "2100"))
	aba, err = store.SheetForCode(ctx, "2100")
	assert.NoError(t, err)
	assert.Empty(t, aba)

	assert.ErrorIs(t, store.RemoveCode(ctx, "2100"), ErrRuleNotFound)
}

func TestAddCodeValidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	assert.Error(t, store.AddCode(ctx, "123", AbaServidor))
	assert.Error(t, store.AddCode(ctx, "12345", AbaServidor))
	assert.Error(t, store.AddCode(ctx, "abcd", AbaServidor))
	assert.Error(t, store.AddCode(ctx, "2100", "outra-aba"))

	// Duplicate primary key
	assert.Error(t, store.AddCode(ctx, "1082", AbaServidor))
}

func TestAddAndRemoveCNPJ(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Stored formatted regardless of input shape.
	assert.NoError(t, store.RemoveCNPJ(ctx, "18.715.565/0001-10"))
	assert.NoError(t, store.AddCNPJ(ctx, "18715565000110", "2071"))

	uo, err := store.UOForCNPJ(ctx, "18.715.565/0001-10")
	assert.NoError(t, err)
	assert.Equal(t, "2071", uo)

	assert.ErrorIs(t, store.RemoveCNPJ(ctx, "99.999.999/9999-99"), ErrRuleNotFound)
}

func TestAddCNPJValidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Bad check digits
	assert.Error(t, store.AddCNPJ(ctx, "18.715.565/0001-11", "1071"))
	// Non-numeric UO
	assert.Error(t, store.AddCNPJ(ctx, "18.715.565/0001-10", "uo-1071"))
}

func TestListRules(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	codes, err := store.ListCodes(ctx)
	assert.NoError(t, err)
	assert.Len(t, codes, 4)
	assert.Equal(t, "1082", codes[0].Codigo)

	cnpjs, err := store.ListCNPJs(ctx)
	assert.NoError(t, err)
	assert.Len(t, cnpjs, 19)
}
